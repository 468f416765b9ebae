package action

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type tags the variant of an Action.
//
// The host vocabulary is open; values outside the named set are carried
// through untouched.
type Type int

const (
	TypeCallActivity Type = iota
	TypeCreateTimer
	TypeWaitForExternalEvent
	TypeCallActivityWithRetry
	TypeCallSubOrchestrator
	TypeCallSubOrchestratorWithRetry
	TypeContinueAsNew
	TypeCallHTTP
)

var typeNames = map[Type]string{
	TypeCallActivity:                 "CallActivity",
	TypeCreateTimer:                  "CreateTimer",
	TypeWaitForExternalEvent:         "WaitForExternalEvent",
	TypeCallActivityWithRetry:        "CallActivityWithRetry",
	TypeCallSubOrchestrator:          "CallSubOrchestrator",
	TypeCallSubOrchestratorWithRetry: "CallSubOrchestratorWithRetry",
	TypeContinueAsNew:                "ContinueAsNew",
	TypeCallHTTP:                     "CallHttp",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// RetryOptions configures host-side retries of an activity call.
// The replay core never retries; it only forwards the policy.
type RetryOptions struct {
	FirstRetryInterval  time.Duration `json:"firstRetryIntervalInMilliseconds"`
	MaxNumberOfAttempts int           `json:"maxNumberOfAttempts"`
}

// MarshalJSON encodes the interval in milliseconds, as hosts expect.
func (r RetryOptions) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FirstRetryIntervalMS int64 `json:"firstRetryIntervalInMilliseconds"`
		MaxNumberOfAttempts  int   `json:"maxNumberOfAttempts"`
	}{r.FirstRetryInterval.Milliseconds(), r.MaxNumberOfAttempts})
}

// Action is one durable operation requested during a pass.
type Action struct {
	Type Type `json:"actionType"`

	// CallActivity, CallActivityWithRetry, CallSubOrchestrator
	FunctionName string        `json:"functionName,omitempty"`
	Input        any           `json:"input,omitempty"`
	RetryOptions *RetryOptions `json:"retryOptions,omitempty"`
	InstanceID   string        `json:"instanceId,omitempty"`

	// CreateTimer
	FireAt     *time.Time `json:"fireAt,omitempty"`
	IsCanceled bool       `json:"isCanceled,omitempty"`

	// WaitForExternalEvent
	ExternalEventName string `json:"externalEventName,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// CallActivity requests an activity invocation.
func CallActivity(name string, input any) Action {
	return Action{Type: TypeCallActivity, FunctionName: name, Input: input}
}

// CallActivityWithRetry requests an activity invocation the host retries.
func CallActivityWithRetry(name string, input any, retry RetryOptions) Action {
	return Action{Type: TypeCallActivityWithRetry, FunctionName: name, Input: input, RetryOptions: &retry}
}

// CreateTimer requests a durable timer firing at fireAt (UTC).
func CreateTimer(fireAt time.Time) Action {
	at := fireAt.UTC()
	return Action{Type: TypeCreateTimer, FireAt: &at}
}

// WaitForExternalEvent requests delivery of a named external event.
func WaitForExternalEvent(name string) Action {
	return Action{Type: TypeWaitForExternalEvent, ExternalEventName: name, Reason: "WaitForExternalEvent"}
}

// Batch is the set of actions requested at one yield point.
type Batch []Action
