package harness

import (
	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/history"
)

// PassTrace records one replay pass for assertions and golden comparison.
type PassTrace struct {
	Seq          int64          `json:"seq"`
	Outcome      string         `json:"outcome"`
	Actions      []action.Batch `json:"actions"`
	Output       any            `json:"output,omitempty"`
	CustomStatus any            `json:"custom_status,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expect clause and all assertions match.
	Pass bool `json:"pass"`

	// InstanceID is the instance the scenario ran as.
	InstanceID string `json:"instance_id"`

	// Outcome is how the last pass ended.
	Outcome string `json:"outcome"`

	// Output and CustomStatus are taken from the last pass.
	Output       any `json:"output,omitempty"`
	CustomStatus any `json:"custom_status,omitempty"`

	// Error is the failure message when Outcome is failed.
	Error string `json:"error,omitempty"`

	// Trace contains every pass in order.
	Trace []PassTrace `json:"trace"`

	// History is the final simulated host history.
	History history.History `json:"history,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []PassTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPass appends a pass to the trace and makes it the current outcome.
func (r *Result) AddPass(p PassTrace) {
	r.Trace = append(r.Trace, p)
	r.Outcome = p.Outcome
	r.Output = p.Output
	r.CustomStatus = p.CustomStatus
	r.Error = p.Error
}

// Actions returns every action the last pass requested, in order.
// Replay re-requests earlier actions, so this is the complete request log.
func (r *Result) Actions() []action.Action {
	if len(r.Trace) == 0 {
		return nil
	}
	var out []action.Action
	for _, b := range r.Trace[len(r.Trace)-1].Actions {
		out = append(out, b...)
	}
	return out
}
