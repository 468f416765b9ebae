package history

import (
	"errors"
	"fmt"
)

// ContractErrorCode categorizes host contract violations.
type ContractErrorCode string

const (
	// ErrCodeEmptyHistory indicates the host sent no events at all.
	ErrCodeEmptyHistory ContractErrorCode = "EMPTY_HISTORY"

	// ErrCodeMissingStart indicates no OrchestratorStarted event was found.
	ErrCodeMissingStart ContractErrorCode = "MISSING_ORCHESTRATOR_STARTED"

	// ErrCodeDuplicateStart indicates more than one OrchestratorStarted event.
	ErrCodeDuplicateStart ContractErrorCode = "DUPLICATE_ORCHESTRATOR_STARTED"

	// ErrCodeInvalidPayload indicates the payload could not be decoded.
	ErrCodeInvalidPayload ContractErrorCode = "INVALID_PAYLOAD"
)

// ContractError reports a malformed history supplied by the host.
//
// It is not recoverable within a pass: the host must resend a well-formed
// history.
type ContractError struct {
	Code    ContractErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// IsContractError returns true if err is or wraps a ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}
