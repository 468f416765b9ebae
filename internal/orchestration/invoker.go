package orchestration

import (
	"fmt"
	"log/slog"
	"sync"
)

// ExternalInvoker drives orchestration logic outside the standard
// asynchronous path. It runs synchronously and reports its outcome through
// Context.SetExternalResult.
type ExternalInvoker func(oc *Context, h Handle)

// Invoker executes replay passes.
//
// Thread-safety: Invoke may be called concurrently for different contexts
// and handles; a handle must not be shared between concurrent calls.
type Invoker struct {
	mu       sync.RWMutex
	external ExternalInvoker
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithExternalInvoker selects external-delegate mode.
func WithExternalInvoker(fn ExternalInvoker) InvokerOption {
	return func(i *Invoker) {
		i.external = fn
	}
}

// NewInvoker creates an invoker. Without options it runs in standard mode.
func NewInvoker(opts ...InvokerOption) *Invoker {
	i := &Invoker{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SetExternalInvoker registers fn, replacing any previous delegate.
// A nil fn returns the invoker to standard mode.
func (i *Invoker) SetExternalInvoker(fn ExternalInvoker) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.external = fn
}

func (i *Invoker) externalInvoker() ExternalInvoker {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.external
}

// Invoke runs one replay pass of oc on h.
//
// Returns a Message when the pass completed or suspended. Returns a
// *history.ContractError for a malformed history, a *FailureError when the
// logic failed in standard mode, and the delegate's error unchanged in
// external mode. The handle is cleared on every path.
func (i *Invoker) Invoke(oc *Context, h Handle) (*Message, error) {
	defer h.Clear()

	if err := oc.claim(); err != nil {
		return nil, err
	}

	start, err := oc.history.OrchestratorStarted()
	if err != nil {
		return nil, err
	}
	oc.setCurrentTime(start.Timestamp)
	start.IsProcessed = true

	slog.Debug("pass starting",
		"instance_id", oc.instanceID,
		"current_time", oc.CurrentTime(),
		"history_len", len(oc.history),
	)

	if external := i.externalInvoker(); external != nil {
		return invokeExternal(oc, h, external)
	}
	return invokeStandard(oc, h)
}

func invokeExternal(oc *Context, h Handle, external ExternalInvoker) (*Message, error) {
	external(oc, h)

	result, isError := oc.ExternalResult()
	if isError {
		slog.Debug("external pass failed", "instance_id", oc.instanceID)
		if err, ok := result.(error); ok {
			return nil, err
		}
		return nil, fmt.Errorf("%v", result)
	}

	var output any
	if items, ok := result.([]any); ok {
		output = ReturnValue(items)
	} else {
		output = result
	}

	slog.Debug("external pass completed", "instance_id", oc.instanceID)
	return NewMessage(true, nil, output, oc.CustomStatus()), nil
}

func invokeStandard(oc *Context, h Handle) (*Message, error) {
	out := NewOutput()

	inv, err := h.BeginInvoke(oc, out)
	if err != nil {
		return nil, fmt.Errorf("begin invoke: %w", err)
	}

	shouldStop, batches := oc.collector.WaitForActions(inv.Done())
	if shouldStop {
		h.StopInvoke()
		slog.Debug("pass suspended",
			"instance_id", oc.instanceID,
			"batches", len(batches),
		)
		return NewMessage(false, batches, nil, oc.CustomStatus()), nil
	}

	if err := h.EndInvoke(inv); err != nil {
		slog.Debug("pass failed",
			"instance_id", oc.instanceID,
			"batches", len(batches),
			"error", err,
		)
		return nil, &FailureError{
			Actions:      batches,
			CustomStatus: oc.CustomStatus(),
			Err:          err,
		}
	}

	slog.Debug("pass completed",
		"instance_id", oc.instanceID,
		"batches", len(batches),
	)
	return NewMessage(true, batches, ReturnValue(out.Items()), oc.CustomStatus()), nil
}
