package orchestration

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/durable/internal/action"
)

// ReturnKey is the reserved result key the host reads the message from.
const ReturnKey = "$return"

// Message is the outcome of a pass that completed or suspended.
// Failures are never encoded here; they are returned as *FailureError.
type Message struct {
	IsDone       bool           `json:"isDone"`
	Actions      []action.Batch `json:"actions"`
	Output       any            `json:"output"`
	CustomStatus any            `json:"customStatus"`
}

// NewMessage builds a message. Output is dropped unless the pass is done,
// and Actions is never nil.
func NewMessage(isDone bool, batches []action.Batch, output, customStatus any) *Message {
	if batches == nil {
		batches = []action.Batch{}
	}
	if !isDone {
		output = nil
	}
	return &Message{
		IsDone:       isDone,
		Actions:      batches,
		Output:       output,
		CustomStatus: customStatus,
	}
}

// Envelope wraps the message under ReturnKey.
func Envelope(m *Message) map[string]any {
	return map[string]any{ReturnKey: m}
}

// FailureError reports an unhandled failure of orchestration logic.
//
// It carries the batches requested before the failure so the host still
// sees work already scheduled on this pass.
type FailureError struct {
	Actions      []action.Batch
	CustomStatus any
	Err          error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("orchestration failed: %v", e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// MarshalJSON encodes the failure for the host.
func (e *FailureError) MarshalJSON() ([]byte, error) {
	actions := e.Actions
	if actions == nil {
		actions = []action.Batch{}
	}
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Actions      []action.Batch `json:"actions"`
		CustomStatus any            `json:"customStatus"`
		Error        string         `json:"error"`
	}{actions, e.CustomStatus, msg})
}
