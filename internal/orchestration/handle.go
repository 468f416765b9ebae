package orchestration

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// ErrHandleBusy is returned when a handle is asked to start a second
// invocation before the first was cleared.
var ErrHandleBusy = errors.New("execution handle already running an invocation")

// Func is orchestration logic. It writes return values to out and must
// return promptly once ctx is cancelled.
type Func func(ctx context.Context, oc *Context, out *Output) error

// Invocation is an in-flight asynchronous run of orchestration logic.
type Invocation interface {
	// Done is closed when the logic has returned.
	Done() <-chan struct{}
}

// Handle hosts asynchronous invocations of orchestration logic.
//
// A handle is owned by one Invoke call at a time.
type Handle interface {
	// BeginInvoke starts the logic against oc, writing values to out.
	BeginInvoke(oc *Context, out *Output) (Invocation, error)

	// EndInvoke waits for inv and returns the logic's error.
	EndInvoke(inv Invocation) error

	// StopInvoke aborts the current invocation and waits for it to return.
	StopInvoke()

	// Clear drops all transient invocation state.
	Clear()
}

// PanicError wraps a panic raised by orchestration logic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("orchestration panicked: %v", e.Value)
}

type invocation struct {
	done chan struct{}
	err  error
}

func (inv *invocation) Done() <-chan struct{} { return inv.done }

// Runner is a Handle that runs a Func in a goroutine.
//
// StopInvoke cancels the goroutine's context and blocks until the logic
// returns. The durable task methods of Context observe the cancellation;
// logic that blocks elsewhere without watching ctx delays StopInvoke.
type Runner struct {
	fn Func

	mu      sync.Mutex
	current *invocation
	cancel  context.CancelFunc
}

// NewRunner creates a handle for fn.
func NewRunner(fn Func) *Runner {
	return &Runner{fn: fn}
}

// BeginInvoke implements Handle.
func (r *Runner) BeginInvoke(oc *Context, out *Output) (Invocation, error) {
	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return nil, ErrHandleBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	inv := &invocation{done: make(chan struct{})}
	r.current = inv
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		defer close(inv.done)
		defer func() {
			if p := recover(); p != nil {
				inv.err = &PanicError{Value: p, Stack: debug.Stack()}
			}
		}()
		inv.err = r.fn(ctx, oc, out)
	}()

	return inv, nil
}

// EndInvoke implements Handle.
func (r *Runner) EndInvoke(inv Invocation) error {
	i, ok := inv.(*invocation)
	if !ok {
		return fmt.Errorf("invocation %T was not started by this runner", inv)
	}
	<-i.done
	return i.err
}

// StopInvoke implements Handle.
func (r *Runner) StopInvoke() {
	r.mu.Lock()
	inv, cancel := r.current, r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if inv != nil {
		<-inv.done
	}
}

// Clear implements Handle.
func (r *Runner) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.current = nil
	r.cancel = nil
}
