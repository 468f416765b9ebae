package harness

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/history"
	"github.com/roach88/durable/internal/testutil"
)

// host simulates the durable host between passes.
//
// It owns the instance history and, after each suspended pass, appends the
// outcome of every action the pass requested for the first time. The single
// OrchestratorStarted event is written once with the scenario start time, so
// the pass time and every timer derived from it stay stable across passes.
type host struct {
	scenario *Scenario
	clock    *testutil.DeterministicClock
	history  history.History
	input    json.RawMessage

	// applied marks requested actions, by position, already materialized in
	// history. Replay is deterministic, so each pass requests the previous
	// pass's actions again, in the same order, before any new ones.
	applied map[int]bool
}

func newHost(s *Scenario) (*host, error) {
	start := testutil.DefaultStart
	if s.StartTime != nil {
		start = s.StartTime.UTC()
	}

	var input json.RawMessage
	if s.Input != nil {
		data, err := json.Marshal(s.Input)
		if err != nil {
			return nil, fmt.Errorf("encode scenario input: %w", err)
		}
		input = data
	}

	return &host{
		scenario: s,
		clock:    testutil.NewDeterministicClockAt(start, time.Second),
		input:    input,
		applied:  map[int]bool{},
		history: history.History{
			{EventType: history.EventExecutionStarted, Timestamp: start, EventID: -1, Input: input},
			{EventType: history.EventOrchestratorStarted, Timestamp: start, EventID: -1},
		},
	}, nil
}

// payload returns a fresh payload for the next pass.
func (h *host) payload(instanceID string, replaying bool) *history.Payload {
	return &history.Payload{
		InstanceID:  instanceID,
		Input:       h.input,
		IsReplaying: replaying,
		History:     h.history.Clone(),
	}
}

// advance appends outcomes for newly requested actions.
// Returns the number of events appended; zero means the instance is stuck.
func (h *host) advance(batches []action.Batch) (int, error) {
	var requested []action.Action
	for _, b := range batches {
		requested = append(requested, b...)
	}
	if len(requested) < len(h.applied) {
		return 0, fmt.Errorf("pass requested %d actions, fewer than the %d already applied", len(requested), len(h.applied))
	}

	before := len(h.history)
	for i, a := range requested {
		if h.applied[i] {
			continue
		}
		ok, err := h.apply(a)
		if err != nil {
			return 0, err
		}
		if ok {
			h.applied[i] = true
		}
	}
	return len(h.history) - before, nil
}

// apply materializes one action. Returns false when the host has nothing to
// answer it with.
func (h *host) apply(a action.Action) (bool, error) {
	switch a.Type {
	case action.TypeCallActivity, action.TypeCallActivityWithRetry:
		stub, ok := h.scenario.Activities[a.FunctionName]
		if !ok {
			return false, fmt.Errorf("no stub for activity %q", a.FunctionName)
		}
		input, err := marshalOptional(a.Input)
		if err != nil {
			return false, err
		}
		id := h.history.NextEventID()
		h.append(&history.Event{EventType: history.EventTaskScheduled, EventID: id, Name: a.FunctionName, Input: input})

		if stub.Error != "" {
			h.append(&history.Event{
				EventType:       history.EventTaskFailed,
				EventID:         id + 1,
				TaskScheduledID: id,
				Reason:          stub.Error,
				Details:         stub.Details,
			})
			return true, nil
		}
		result, err := marshalOptional(stub.Result)
		if err != nil {
			return false, err
		}
		h.append(&history.Event{EventType: history.EventTaskCompleted, EventID: id + 1, TaskScheduledID: id, Result: result})
		return true, nil

	case action.TypeCreateTimer:
		id := h.history.NextEventID()
		h.append(&history.Event{EventType: history.EventTimerCreated, EventID: id, FireAt: a.FireAt})
		h.append(&history.Event{EventType: history.EventTimerFired, EventID: id + 1, TimerID: id, FireAt: a.FireAt})
		return true, nil

	case action.TypeWaitForExternalEvent:
		value, ok := h.scenario.Events[a.ExternalEventName]
		if !ok {
			return false, nil
		}
		input, err := marshalOptional(value)
		if err != nil {
			return false, err
		}
		h.append(&history.Event{
			EventType: history.EventEventRaised,
			EventID:   h.history.NextEventID(),
			Name:      a.ExternalEventName,
			Input:     input,
		})
		return true, nil

	default:
		return false, fmt.Errorf("host cannot simulate %s actions", a.Type)
	}
}

func (h *host) append(e *history.Event) {
	e.Timestamp = h.clock.Now()
	h.history = append(h.history, e)
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode stub value: %w", err)
	}
	return data, nil
}
