package orchestration

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/history"
)

// ErrContextReused is returned when a Context is handed to Invoke twice.
// Every pass needs a fresh context and collector.
var ErrContextReused = errors.New("orchestration context already used for a pass")

// Context is the per-invocation state of one pass.
//
// It is built once from the host payload, handed to the logic, and dropped
// when the pass ends, whether it completed or suspended.
type Context struct {
	instanceID       string
	parentInstanceID string
	input            json.RawMessage
	isReplaying      bool
	history          history.History
	collector        *action.Collector

	mu              sync.Mutex
	currentTime     time.Time
	customStatus    any
	externalResult  any
	externalIsError bool

	used atomic.Bool
}

// NewContext builds a context over the payload's history.
// The history is borrowed, not copied.
func NewContext(p *history.Payload) *Context {
	return &Context{
		instanceID:       p.InstanceID,
		parentInstanceID: p.ParentInstanceID,
		input:            p.Input,
		isReplaying:      p.IsReplaying,
		history:          p.History,
		collector:        action.NewCollector(),
	}
}

// InstanceID returns the orchestration instance ID.
func (c *Context) InstanceID() string { return c.instanceID }

// ParentInstanceID returns the parent instance for sub-orchestrations.
func (c *Context) ParentInstanceID() string { return c.parentInstanceID }

// IsReplaying reports the host's replay flag.
func (c *Context) IsReplaying() bool { return c.isReplaying }

// History returns the borrowed history.
func (c *Context) History() history.History { return c.history }

// Collector returns the action collector of this pass.
func (c *Context) Collector() *action.Collector { return c.collector }

// Input decodes the orchestration input into v.
func (c *Context) Input(v any) error {
	if len(c.input) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.input, v); err != nil {
		return fmt.Errorf("decode orchestration input: %w", err)
	}
	return nil
}

// RawInput returns the orchestration input as sent by the host.
func (c *Context) RawInput() json.RawMessage { return c.input }

// CurrentTime returns the deterministic pass time, in UTC.
//
// It is fixed before the logic starts and never changes during the pass.
func (c *Context) CurrentTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

func (c *Context) setCurrentTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = t.UTC()
}

// SetCustomStatus sets the user-visible status carried into every result.
func (c *Context) SetCustomStatus(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customStatus = v
}

// CustomStatus returns the current custom status.
func (c *Context) CustomStatus() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customStatus
}

// SetExternalResult stores the outcome produced by an external invoker.
// When isError is true, result is the failure to surface.
func (c *Context) SetExternalResult(result any, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.externalResult = result
	c.externalIsError = isError
}

// ExternalResult returns the slot filled by SetExternalResult.
func (c *Context) ExternalResult() (result any, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.externalResult, c.externalIsError
}

func (c *Context) claim() error {
	if !c.used.CompareAndSwap(false, true) {
		return ErrContextReused
	}
	return nil
}
