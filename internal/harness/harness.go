package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/durable/internal/durable"
	"github.com/roach88/durable/internal/history"
	"github.com/roach88/durable/internal/orchestration"
	"github.com/roach88/durable/internal/schema"
	"github.com/roach88/durable/internal/store"
	"github.com/roach88/durable/internal/testutil"
)

// DefaultMaxPasses bounds scenarios that do not set max_passes.
const DefaultMaxPasses = 100

// triggerBinding is the parameter name the scripted orchestrator receives
// its context under.
const triggerBinding = "context"

// Harness drives one scenario through the durable controller.
// It runs scenarios with a deterministic clock and instance ID.
type Harness struct {
	store      *store.Store
	validator  *schema.Validator
	controller *durable.Controller
	clock      *testutil.DeterministicClock
	instanceID string
	logger     *slog.Logger
}

// Option configures a run.
type Option func(*options)

type options struct {
	store      *store.Store
	logger     *slog.Logger
	maxPasses  int
	instanceID string
}

// WithStore journals passes into st instead of a private in-memory store.
func WithStore(st *store.Store) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithLogger replaces the default discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithInstanceID runs the scenario as id, overriding its instance_id.
func WithInstanceID(id string) Option {
	return func(o *options) {
		o.instanceID = id
	}
}

// WithMaxPasses overrides the scenario's pass bound.
func WithMaxPasses(n int) Option {
	return func(o *options) {
		o.maxPasses = n
	}
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh in-memory journal unless one is supplied
//  2. Build a payload from the simulated host history
//  3. Validate it and run one pass through the durable controller
//  4. Journal the pass
//  5. If the pass suspended, let the host answer the new actions and repeat
//  6. Check the expect clause and assertions
//
// Run returns an error only when the scenario cannot be executed at all; a
// scenario that executes but does not meet its expectations yields a
// result with Pass false.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxPasses:  scenario.MaxPasses,
		instanceID: scenario.InstanceID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxPasses <= 0 {
		o.maxPasses = DefaultMaxPasses
	}

	st := o.store
	if st == nil {
		mem, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer mem.Close()
		st = mem
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:      st,
		validator:  validator,
		controller: newController(scenario),
		clock:      testutil.NewDeterministicClock(),
		instanceID: testutil.NewFixedInstanceGenerator(o.instanceID).Generate(),
		logger:     o.logger,
	}

	ctx := context.Background()
	result, err := h.drive(ctx, scenario, o.maxPasses)
	if err != nil {
		return nil, err
	}

	checkExpect(result, scenario.Expect)

	actx := &AssertionContext{
		Store:      st,
		Ctx:        ctx,
		InstanceID: h.instanceID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// drive runs passes until the instance completes, fails, or stops making
// progress.
func (h *Harness) drive(ctx context.Context, scenario *Scenario, maxPasses int) (*Result, error) {
	hst, err := newHost(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.InstanceID = h.instanceID

	for {
		seq := h.clock.Next()
		if seq > int64(maxPasses) {
			result.AddError(fmt.Sprintf("instance did not finish within %d passes", maxPasses))
			break
		}

		payload := hst.payload(h.instanceID, seq > 1)
		out, err := h.runPass(payload)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", seq, err)
		}

		trace := tracePass(seq, out)
		result.AddPass(trace)

		rec, err := store.NewPass(h.instanceID, seq, payload, out.msg, out.err)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", seq, err)
		}
		if _, err := h.store.WritePass(ctx, scenario.Name, rec); err != nil {
			h.logger.Error("journal write failed", "instance_id", h.instanceID, "seq", seq, "error", err)
			return nil, fmt.Errorf("pass %d: %w", seq, err)
		}

		h.logger.Info("pass finished",
			"instance_id", h.instanceID,
			"seq", seq,
			"outcome", trace.Outcome,
			"batches", len(trace.Actions),
		)

		if trace.Outcome != OutcomeSuspended {
			break
		}

		appended, err := hst.advance(out.msg.Actions)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", seq, err)
		}
		if appended == 0 {
			h.logger.Info("instance waiting on unanswered actions", "instance_id", h.instanceID, "seq", seq)
			break
		}
	}

	result.History = hst.history
	return result, nil
}

// newController hosts the scenario's scripted orchestrator.
func newController(s *Scenario) *durable.Controller {
	return durable.New(
		durable.FunctionInfo{Type: durable.FunctionTypeOrchestrator},
		orchestration.NewRunner(s.Orchestration()),
	)
}

// passOutcome is what the controller returned for one pass: a message, or
// the pass's own failure.
type passOutcome struct {
	msg *orchestration.Message
	err error
}

// runPass sends one payload through the controller the way the host would.
// The returned error reports harness problems, never pass failures.
func (h *Harness) runPass(p *history.Payload) (passOutcome, error) {
	data, err := history.Encode(p)
	if err != nil {
		return passOutcome{}, err
	}
	if errs := h.validator.Validate(data); len(errs) > 0 {
		return passOutcome{}, fmt.Errorf("host payload rejected: %w", errs[0])
	}

	if err := h.controller.BeforeFunctionInvocation([]durable.ParameterBinding{
		{Name: triggerBinding, Data: json.RawMessage(data)},
	}); err != nil {
		return passOutcome{}, err
	}
	defer h.controller.AfterFunctionInvocation()

	envelope, _, passErr := h.controller.TryInvokeOrchestrationFunction()
	if passErr != nil {
		return passOutcome{err: passErr}, nil
	}
	msg, ok := envelope[orchestration.ReturnKey].(*orchestration.Message)
	if !ok {
		return passOutcome{}, errors.New("controller returned no message")
	}
	return passOutcome{msg: msg}, nil
}

func tracePass(seq int64, out passOutcome) PassTrace {
	if out.err != nil {
		trace := PassTrace{Seq: seq, Outcome: OutcomeFailed, Error: out.err.Error()}
		var fe *orchestration.FailureError
		if errors.As(out.err, &fe) {
			trace.Actions = fe.Actions
			trace.CustomStatus = fe.CustomStatus
		}
		return trace
	}

	msg := out.msg
	trace := PassTrace{Seq: seq, Actions: msg.Actions, CustomStatus: msg.CustomStatus}
	if msg.IsDone {
		trace.Outcome = OutcomeCompleted
		trace.Output = msg.Output
	} else {
		trace.Outcome = OutcomeSuspended
	}
	return trace
}
