package store

import "encoding/json"

// Outcome is how a pass ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSuspended Outcome = "suspended"
	OutcomeFailed    Outcome = "failed"
)

// Pass is one journaled replay pass.
type Pass struct {
	// ID is the content address of (instance, seq, payload hash).
	ID         string
	InstanceID string
	Seq        int64

	// Payload is the canonical JSON of the host payload the pass ran on.
	Payload     json.RawMessage
	PayloadHash string

	Outcome Outcome

	// Result is the canonical JSON of the pass message, or of the failure
	// (partial actions and custom status) when the pass failed.
	Result     json.RawMessage
	ResultHash string

	// Error is the failure text. Empty unless Outcome is OutcomeFailed.
	Error string
}

// Instance is the journal summary of one orchestration instance.
type Instance struct {
	ID           string
	Orchestrator string
	Status       Outcome
	LastSeq      int64
}
