package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/durable/internal/history"
)

// Validation error codes (E200-E299)
const (
	ErrSchemaMismatch   = "E200" // payload does not match #Payload
	ErrInvalidPayload   = "E201" // payload could not be decoded
	ErrEmptyHistory     = "E202" // history has no events
	ErrMissingStart     = "E203" // no OrchestratorStarted event
	ErrDuplicateStart   = "E204" // more than one OrchestratorStarted event
	ErrUnknownEventType = "E205" // event type name not recognized
	ErrDanglingResult   = "E206" // task outcome without a matching TaskScheduled
	ErrDanglingTimer    = "E207" // TimerFired without a matching TimerCreated
)

//go:embed payload.cue
var payloadSchema string

// ValidationError describes one problem with a payload.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validator checks payloads against the compiled schema.
//
// Thread-safety: a Validator is not safe for concurrent use because CUE
// contexts are not. Create one per goroutine.
type Validator struct {
	ctx     *cue.Context
	payload cue.Value
}

// NewValidator compiles the embedded payload schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(payloadSchema, cue.Filename("payload.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Payload"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Payload: %w", err)
	}
	return &Validator{ctx: ctx, payload: def}, nil
}

// Validate checks a JSON payload and returns all problems found.
// A nil result means the payload is safe to hand to the replay core.
func (v *Validator) Validate(data []byte) []ValidationError {
	val := v.ctx.CompileBytes(data, cue.Filename("payload.json"))
	if err := val.Err(); err != nil {
		return fromCUE(err, ErrInvalidPayload)
	}
	if err := v.payload.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fromCUE(err, ErrSchemaMismatch)
	}

	p, err := history.Decode(data)
	if err != nil {
		return []ValidationError{{Field: "history", Message: err.Error(), Code: ErrInvalidPayload}}
	}
	return ValidateHistory(p.History)
}

// ValidateHistory checks the history contract of an already decoded payload.
func ValidateHistory(h history.History) []ValidationError {
	var errs []ValidationError

	if _, err := h.OrchestratorStarted(); err != nil {
		errs = append(errs, fromContract(err))
	}

	scheduled := map[int]bool{}
	timers := map[int]bool{}
	for _, e := range h {
		switch e.EventType {
		case history.EventTaskScheduled:
			scheduled[e.EventID] = true
		case history.EventTimerCreated:
			timers[e.EventID] = true
		}
	}

	for i, e := range h {
		field := fmt.Sprintf("history[%d]", i)
		switch e.EventType {
		case history.EventTaskCompleted, history.EventTaskFailed:
			if !scheduled[e.TaskScheduledID] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("%s refers to unknown taskScheduledId %d", e.EventType, e.TaskScheduledID),
					Code:    ErrDanglingResult,
				})
			}
		case history.EventTimerFired:
			if !timers[e.TimerID] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("TimerFired refers to unknown timerId %d", e.TimerID),
					Code:    ErrDanglingTimer,
				})
			}
		default:
			if !e.EventType.Known() {
				errs = append(errs, ValidationError{
					Field:   field + ".eventType",
					Message: fmt.Sprintf("unknown event type %d", int(e.EventType)),
					Code:    ErrUnknownEventType,
				})
			}
		}
	}
	return errs
}

func fromContract(err error) ValidationError {
	code := ErrInvalidPayload
	var ce *history.ContractError
	if errors.As(err, &ce) {
		switch ce.Code {
		case history.ErrCodeEmptyHistory:
			code = ErrEmptyHistory
		case history.ErrCodeMissingStart:
			code = ErrMissingStart
		case history.ErrCodeDuplicateStart:
			code = ErrDuplicateStart
		}
	}
	return ValidationError{Field: "history", Message: err.Error(), Code: code}
}

// fromCUE flattens CUE errors, keeping the first position of each.
func fromCUE(err error, code string) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: e.Error(),
			Code:    code,
		}
		if ve.Field == "" {
			ve.Field = "payload"
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 && pos[0].IsValid() {
			ve.Line = pos[0].Line()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "payload", Message: err.Error(), Code: code})
	}
	return out
}
