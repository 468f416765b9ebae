package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/durable/internal/history"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_ValidPayload(t *testing.T) {
	v := newValidator(t)
	errs := v.Validate([]byte(`{
		"instanceId": "inst-1",
		"input": [1, 2],
		"history": [
			{"eventType": 0, "timestamp": "2024-03-01T09:30:00Z", "eventId": -1},
			{"eventType": "OrchestratorStarted", "timestamp": "2024-03-01T09:30:00Z", "eventId": -1},
			{"eventType": 4, "timestamp": "2024-03-01T09:30:00Z", "eventId": 0, "name": "A"},
			{"eventType": 5, "timestamp": "2024-03-01T09:30:01Z", "eventId": 1, "taskScheduledId": 0, "result": 3},
			{"eventType": 10, "timestamp": "2024-03-01T09:30:01Z", "eventId": 2, "fireAt": "2024-03-01T10:00:00Z"},
			{"eventType": 11, "timestamp": "2024-03-01T10:00:00Z", "eventId": 3, "timerId": 2}
		]
	}`))
	assert.Empty(t, errs)
}

func TestValidate_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing instanceId", `{"history": []}`},
		{"history not a list", `{"instanceId": "x", "history": {}}`},
		{"bad timestamp", `{"instanceId": "x", "history": [{"eventType": 12, "timestamp": "yesterday"}]}`},
		{"negative event type", `{"instanceId": "x", "history": [{"eventType": -1, "timestamp": "2024-03-01T09:30:00Z"}]}`},
		{"eventId not int", `{"instanceId": "x", "history": [{"eventType": 12, "timestamp": "2024-03-01T09:30:00Z", "eventId": "one"}]}`},
	}
	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate([]byte(tt.payload))
			require.NotEmpty(t, errs)
			for _, e := range errs {
				assert.Equal(t, ErrSchemaMismatch, e.Code, e.Error())
			}
		})
	}
}

func TestValidate_NotJSON(t *testing.T) {
	errs := newValidator(t).Validate([]byte(`{"instanceId": `))
	require.NotEmpty(t, errs)
	assert.Equal(t, ErrInvalidPayload, errs[0].Code)
}

func TestValidate_UnknownEventTypeName(t *testing.T) {
	errs := newValidator(t).Validate([]byte(`{"instanceId": "x", "history": [
		{"eventType": "Teleported", "timestamp": "2024-03-01T09:30:00Z"}
	]}`))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidPayload, errs[0].Code)
}

func TestValidate_StartEventContract(t *testing.T) {
	tests := []struct {
		name    string
		history string
		want    string
	}{
		{"empty", `[]`, ErrEmptyHistory},
		{"missing", `[{"eventType": 0, "timestamp": "2024-03-01T09:30:00Z"}]`, ErrMissingStart},
		{"duplicate", `[
			{"eventType": 12, "timestamp": "2024-03-01T09:30:00Z"},
			{"eventType": 12, "timestamp": "2024-03-01T09:31:00Z"}
		]`, ErrDuplicateStart},
	}
	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate([]byte(`{"instanceId": "x", "history": ` + tt.history + `}`))
			assert.Equal(t, []string{tt.want}, codes(errs))
		})
	}
}

func TestValidateHistory_ReportsAllProblems(t *testing.T) {
	h := history.History{
		{EventType: history.EventTaskCompleted, EventID: 1, TaskScheduledID: 9},
		{EventType: history.EventTimerFired, EventID: 2, TimerID: 7},
		{EventType: history.EventType(99), EventID: 3},
	}

	errs := ValidateHistory(h)
	assert.Equal(t, []string{ErrMissingStart, ErrDanglingResult, ErrDanglingTimer, ErrUnknownEventType}, codes(errs))
	assert.Equal(t, "history[2].eventType", errs[3].Field)
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Field: "history", Message: "no start", Code: ErrMissingStart}
	assert.Equal(t, "[E203] history: no start", e.Error())

	e.Line = 4
	assert.Equal(t, "[E203] line 4: history: no start", e.Error())
}
