package durable

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/durable/internal/history"
	"github.com/roach88/durable/internal/orchestration"
)

// ErrNoOrchestrationBinding is returned when an orchestrator function is
// invoked without its trigger binding.
var ErrNoOrchestrationBinding = errors.New("orchestrator invoked without an orchestration trigger binding")

// BindingInfo is the orchestration trigger binding of the current invocation.
type BindingInfo struct {
	ParameterName string
	Context       *orchestration.Context
}

// Controller drives durable behavior around one function.
//
// A Controller serves invocations of one function sequentially; the binding
// state it keeps is scoped to a single Before/After invocation bracket.
type Controller struct {
	info    FunctionInfo
	handle  orchestration.Handle
	invoker *orchestration.Invoker

	binding *BindingInfo
	client  json.RawMessage
}

// Option configures a Controller.
type Option func(*Controller)

// WithInvoker replaces the default standard-mode invoker.
func WithInvoker(inv *orchestration.Invoker) Option {
	return func(c *Controller) {
		c.invoker = inv
	}
}

// WithExternalInvoker runs orchestrations through fn instead of the handle.
func WithExternalInvoker(fn orchestration.ExternalInvoker) Option {
	return func(c *Controller) {
		c.invoker.SetExternalInvoker(fn)
	}
}

// New creates a controller for a function with the given classification.
// h hosts orchestration logic; it may be nil for non-orchestrator functions.
func New(info FunctionInfo, h orchestration.Handle, opts ...Option) *Controller {
	c := &Controller{
		info:    info,
		handle:  h,
		invoker: orchestration.NewInvoker(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Info returns the function classification.
func (c *Controller) Info() FunctionInfo {
	return c.info
}

// BeforeFunctionInvocation prepares durable state from the input bindings.
//
// A durable client captures its client binding. An orchestrator decodes the
// host payload of its trigger binding, always the first input, into a fresh
// orchestration context.
func (c *Controller) BeforeFunctionInvocation(inputs []ParameterBinding) error {
	switch {
	case c.info.IsDurableClient():
		for _, in := range inputs {
			if in.Name == c.info.DurableClientBindingName {
				c.client = in.Data
				return nil
			}
		}
		return fmt.Errorf("durable client binding %q not found in inputs", c.info.DurableClientBindingName)

	case c.info.IsOrchestrationFunction():
		if len(inputs) == 0 {
			return ErrNoOrchestrationBinding
		}
		trigger := inputs[0]
		payload, err := history.Decode(trigger.Data)
		if err != nil {
			return fmt.Errorf("orchestration binding %q: %w", trigger.Name, err)
		}
		c.binding = &BindingInfo{
			ParameterName: trigger.Name,
			Context:       orchestration.NewContext(payload),
		}
		slog.Debug("orchestration context created",
			"instance_id", payload.InstanceID,
			"binding", trigger.Name,
			"history_len", len(payload.History),
		)
	}
	return nil
}

// AfterFunctionInvocation drops the orchestration context of the invocation.
func (c *Controller) AfterFunctionInvocation() {
	c.binding = nil
}

// DurableClient returns the captured durable client binding data.
func (c *Controller) DurableClient() json.RawMessage {
	return c.client
}

// TryGetInputBindingParameterValue returns the orchestration context when
// name is the orchestration trigger parameter.
func (c *Controller) TryGetInputBindingParameterValue(name string) (any, bool) {
	if c.binding == nil || c.binding.ParameterName != name {
		return nil, false
	}
	return c.binding.Context, true
}

// AddPipelineOutputIfNecessary stores activity output under the reserved
// result key. Orchestrator output always goes through the replay result.
func (c *Controller) AddPipelineOutputIfNecessary(items []any, result map[string]any) {
	if !c.info.IsActivityFunction() {
		return
	}
	result[orchestration.ReturnKey] = orchestration.ReturnValue(items)
}

// TryInvokeOrchestrationFunction runs one replay pass when the function is
// an orchestrator. ok is false for every other function.
func (c *Controller) TryInvokeOrchestrationFunction() (result map[string]any, ok bool, err error) {
	if !c.info.IsOrchestrationFunction() {
		return nil, false, nil
	}
	if c.binding == nil {
		return nil, true, ErrNoOrchestrationBinding
	}

	msg, err := c.invoker.Invoke(c.binding.Context, c.handle)
	if err != nil {
		return nil, true, err
	}
	return orchestration.Envelope(msg), true, nil
}

// ShouldSuppressPipelineTraces reports whether pipeline output is a result
// rather than a trace. True for activities.
func (c *Controller) ShouldSuppressPipelineTraces() bool {
	return c.info.IsActivityFunction()
}
