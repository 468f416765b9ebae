package action

import (
	"errors"
	"sync"
)

// ErrCollectorStopped is returned by Record once the pass has been told to
// stop. Nothing recorded after the stop signal reaches the host.
var ErrCollectorStopped = errors.New("action collector stopped")

// Collector accumulates the action batches of exactly one pass.
//
// Thread-safety: Record and Stop may be called from the goroutine running
// the orchestration logic while WaitForActions blocks in the controller.
// Snapshots are taken under the lock, so a batch is either fully visible or
// not visible at all.
type Collector struct {
	mu      sync.Mutex
	batches []Batch
	stopped bool
	stop    chan struct{} // closed exactly once by Stop
}

// NewCollector creates an empty collector for one pass.
func NewCollector() *Collector {
	return &Collector{
		batches: make([]Batch, 0, 8),
		stop:    make(chan struct{}),
	}
}

// Record appends one batch.
//
// If blocked is true the logic has no further deterministic progress to make
// on the current history and the collector signals "should stop" after the
// batch is appended.
func (c *Collector) Record(batch Batch, blocked bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrCollectorStopped
	}

	cp := make(Batch, len(batch))
	copy(cp, batch)
	c.batches = append(c.batches, cp)

	if blocked {
		c.stopLocked()
	}
	return nil
}

// Stop signals that the pass must yield. Idempotent.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Collector) stopLocked() {
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stop)
}

// Stopped reports whether the stop signal has fired.
func (c *Collector) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Batches returns a snapshot of the batches recorded so far, in order.
// Never nil.
func (c *Collector) Batches() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

// WaitForActions blocks until done fires or the collector is stopped.
//
// shouldStop is true when the pass yielded. When both signals are ready the
// completion wins: a pass whose logic returned is reported as finished.
// There is no timeout; an orchestration may wait indefinitely.
func (c *Collector) WaitForActions(done <-chan struct{}) (shouldStop bool, batches []Batch) {
	select {
	case <-done:
		return false, c.Batches()
	case <-c.stop:
		select {
		case <-done:
			return false, c.Batches()
		default:
		}
		return true, c.Batches()
	}
}
