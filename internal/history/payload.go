package history

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the host-supplied orchestration context for one invocation.
type Payload struct {
	InstanceID       string          `json:"instanceId"`
	ParentInstanceID string          `json:"parentInstanceId,omitempty"`
	Input            json.RawMessage `json:"input,omitempty"`
	IsReplaying      bool            `json:"isReplaying,omitempty"`
	History          History         `json:"history"`
}

// Decode parses a host payload.
//
// Decoding does not check the single start event invariant; that is done by
// the invoker when the pass begins, so that validation tooling can report
// both decoding and contract problems separately.
func Decode(data []byte) (*Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, &ContractError{Code: ErrCodeInvalidPayload, Message: "decode history payload", Err: err}
	}
	for i, e := range p.History {
		if e == nil {
			return nil, &ContractError{
				Code:    ErrCodeInvalidPayload,
				Message: fmt.Sprintf("history contains a null event at index %d", i),
			}
		}
	}
	return &p, nil
}

// Encode serializes a payload in the host encoding.
func Encode(p *Payload) ([]byte, error) {
	return json.Marshal(p)
}
