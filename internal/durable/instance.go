package durable

import (
	"sync"

	"github.com/google/uuid"
)

// InstanceIDGenerator generates orchestration instance IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type InstanceIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 instance IDs.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined instance IDs in order.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
// Panics once all IDs have been consumed, to catch test misconfiguration.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all instance IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
