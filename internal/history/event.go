package history

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the kind of a history event.
//
// The set is open: hosts may send kinds this package does not name. Only
// OrchestratorStarted carries meaning for the replay core; the task kinds are
// read by the durable task API when it resolves requested work.
type EventType int

const (
	EventExecutionStarted EventType = iota
	EventExecutionCompleted
	EventExecutionFailed
	EventExecutionTerminated
	EventTaskScheduled
	EventTaskCompleted
	EventTaskFailed
	EventSubOrchestrationInstanceCreated
	EventSubOrchestrationInstanceCompleted
	EventSubOrchestrationInstanceFailed
	EventTimerCreated
	EventTimerFired
	EventOrchestratorStarted
	EventOrchestratorCompleted
	EventEventSent
	EventEventRaised
	EventContinueAsNew
	EventGenericEvent
	EventHistoryState
	EventExecutionSuspended
	EventExecutionResumed
)

var eventTypeNames = map[EventType]string{
	EventExecutionStarted:                  "ExecutionStarted",
	EventExecutionCompleted:                "ExecutionCompleted",
	EventExecutionFailed:                   "ExecutionFailed",
	EventExecutionTerminated:               "ExecutionTerminated",
	EventTaskScheduled:                     "TaskScheduled",
	EventTaskCompleted:                     "TaskCompleted",
	EventTaskFailed:                        "TaskFailed",
	EventSubOrchestrationInstanceCreated:   "SubOrchestrationInstanceCreated",
	EventSubOrchestrationInstanceCompleted: "SubOrchestrationInstanceCompleted",
	EventSubOrchestrationInstanceFailed:    "SubOrchestrationInstanceFailed",
	EventTimerCreated:                      "TimerCreated",
	EventTimerFired:                        "TimerFired",
	EventOrchestratorStarted:               "OrchestratorStarted",
	EventOrchestratorCompleted:             "OrchestratorCompleted",
	EventEventSent:                         "EventSent",
	EventEventRaised:                       "EventRaised",
	EventContinueAsNew:                     "ContinueAsNew",
	EventGenericEvent:                      "GenericEvent",
	EventHistoryState:                      "HistoryState",
	EventExecutionSuspended:                "ExecutionSuspended",
	EventExecutionResumed:                  "ExecutionResumed",
}

// String returns the host name of the event type, or "EventType(n)" for
// kinds outside the known vocabulary.
func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Known reports whether t is a recognized event type.
func (t EventType) Known() bool {
	_, ok := eventTypeNames[t]
	return ok
}

// ParseEventType resolves a host event type name.
func ParseEventType(name string) (EventType, error) {
	for t, n := range eventTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", name)
}

// UnmarshalJSON accepts either the numeric host encoding or the type name.
func (t *EventType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*t = EventType(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("event type must be a number or a name: %s", data)
	}
	parsed, err := ParseEventType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Event is one recorded fact about a past pass.
//
// EventType, Timestamp and IsProcessed are the attributes the replay core
// inspects. The remaining fields are carried for the durable task API, which
// matches scheduled work to its outcome.
type Event struct {
	EventType   EventType `json:"eventType"`
	Timestamp   time.Time `json:"timestamp"`
	IsProcessed bool      `json:"isProcessed,omitempty"`

	EventID         int             `json:"eventId"`
	Name            string          `json:"name,omitempty"`
	Input           json.RawMessage `json:"input,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Details         string          `json:"details,omitempty"`
	TaskScheduledID int             `json:"taskScheduledId,omitempty"`
	TimerID         int             `json:"timerId,omitempty"`
	FireAt          *time.Time      `json:"fireAt,omitempty"`
}
