package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/durable/internal/history"
	"github.com/roach88/durable/internal/ir"
	"github.com/roach88/durable/internal/orchestration"
)

// NewPass builds the journal record of one pass from its inputs and outcome.
// Exactly one of msg and passErr is expected to be non-nil.
//
// Payload and result are stored as RFC 8785 canonical JSON so that the
// fingerprints are stable across runs.
func NewPass(instanceID string, seq int64, p *history.Payload, msg *orchestration.Message, passErr error) (Pass, error) {
	payload, err := marshalCanonical(p)
	if err != nil {
		return Pass{}, fmt.Errorf("new pass: payload: %w", err)
	}

	pass := Pass{
		InstanceID:  instanceID,
		Seq:         seq,
		Payload:     payload,
		PayloadHash: ir.MustFingerprint(ir.DomainPayload, payload),
	}

	var result any
	switch {
	case passErr != nil:
		pass.Outcome = OutcomeFailed
		pass.Error = passErr.Error()
		var fe *orchestration.FailureError
		if errors.As(passErr, &fe) {
			result = fe
		}
	case msg.IsDone:
		pass.Outcome = OutcomeCompleted
		result = msg
	default:
		pass.Outcome = OutcomeSuspended
		result = msg
	}

	pass.Result, err = marshalCanonical(result)
	if err != nil {
		return Pass{}, fmt.Errorf("new pass: result: %w", err)
	}
	pass.ResultHash = ir.MustFingerprint(ir.DomainMessage, pass.Result)

	pass.ID = ir.MustFingerprint(ir.DomainPass, map[string]any{
		"instance_id":  instanceID,
		"seq":          seq,
		"payload_hash": pass.PayloadHash,
	})
	return pass, nil
}

// marshalCanonical converts v to canonical JSON for storage.
func marshalCanonical(v any) (json.RawMessage, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
