package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/history"
	"github.com/roach88/durable/internal/orchestration"
)

// createTestStore creates a new file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// createTestPayload creates a minimal payload with n scheduled activities.
func createTestPayload(instanceID string, n int) *history.Payload {
	h := history.History{
		{EventType: history.EventExecutionStarted, Timestamp: testStart, EventID: -1},
		{EventType: history.EventOrchestratorStarted, Timestamp: testStart, EventID: -1},
	}
	for i := 0; i < n; i++ {
		h = append(h, &history.Event{EventType: history.EventTaskScheduled, Timestamp: testStart, EventID: i, Name: "Step"})
	}
	return &history.Payload{InstanceID: instanceID, Input: json.RawMessage(`"in"`), History: h}
}

// createTestPass builds a pass record for the given outcome.
func createTestPass(t *testing.T, instanceID string, seq int64, outcome Outcome) Pass {
	t.Helper()

	var (
		msg *orchestration.Message
		err error
	)
	batches := []action.Batch{{action.CallActivity("Step", seq)}}
	switch outcome {
	case OutcomeCompleted:
		msg = orchestration.NewMessage(true, batches, "done", nil)
	case OutcomeSuspended:
		msg = orchestration.NewMessage(false, batches, nil, "waiting")
	case OutcomeFailed:
		err = &orchestration.FailureError{Actions: batches, Err: errTest}
	}

	p, perr := NewPass(instanceID, seq, createTestPayload(instanceID, int(seq)-1), msg, err)
	if perr != nil {
		t.Fatalf("NewPass() failed: %v", perr)
	}
	return p
}

var errTest = errors.New("step exploded")
