package testutil

import (
	"sync"
	"time"
)

// DefaultStart is the base time of a clock created by NewDeterministicClock.
var DefaultStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock provides a thread-safe monotonic logical clock for tests.
//
// Next hands out sequence numbers. Now advances the same sequence and maps
// it onto wall-clock time as base + seq*step, so simulated history events get
// timestamps that are identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	seq  int64
	base time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock starting at 0 with base DefaultStart
// and a one-second step.
//
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultStart, time.Second)
}

// NewDeterministicClockAt creates a clock with the given base and step.
func NewDeterministicClockAt(base time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{base: base.UTC(), step: step}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Now increments the sequence and returns its timestamp.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.base.Add(time.Duration(c.seq) * c.step)
}

// Base returns the time of sequence 0.
func (c *DeterministicClock) Base() time.Time {
	return c.base
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to 0.
//
// Used for test reuse. After Reset(), the next call to Next() returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
