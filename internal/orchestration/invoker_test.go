package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/history"
)

var startTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newPayload(events ...*history.Event) *history.Payload {
	h := history.History{
		{EventType: history.EventExecutionStarted, Timestamp: startTime, EventID: -1},
		{EventType: history.EventOrchestratorStarted, Timestamp: startTime, EventID: -1},
	}
	h = append(h, events...)
	return &history.Payload{InstanceID: "inst-1", History: h}
}

func scheduled(id int, name string) *history.Event {
	return &history.Event{EventType: history.EventTaskScheduled, Timestamp: startTime, EventID: id, Name: name}
}

func completed(id, scheduledID int, result string) *history.Event {
	return &history.Event{
		EventType:       history.EventTaskCompleted,
		Timestamp:       startTime,
		EventID:         id,
		TaskScheduledID: scheduledID,
		Result:          json.RawMessage(result),
	}
}

// countingHandle wraps a Runner and records how it was driven.
type countingHandle struct {
	*Runner
	begins atomic.Int32
	stops  atomic.Int32
	clears atomic.Int32
}

func newCountingHandle(fn Func) *countingHandle {
	return &countingHandle{Runner: NewRunner(fn)}
}

func (h *countingHandle) BeginInvoke(oc *Context, out *Output) (Invocation, error) {
	h.begins.Add(1)
	return h.Runner.BeginInvoke(oc, out)
}

func (h *countingHandle) StopInvoke() {
	h.stops.Add(1)
	h.Runner.StopInvoke()
}

func (h *countingHandle) Clear() {
	h.clears.Add(1)
	h.Runner.Clear()
}

func invoke(t *testing.T, p *history.Payload, fn Func) (*Message, *Context, error) {
	t.Helper()
	oc := NewContext(p)
	msg, err := NewInvoker().Invoke(oc, NewRunner(fn))
	return msg, oc, err
}

func TestInvoke_CompletesWithoutOutput(t *testing.T) {
	msg, _, err := invoke(t, newPayload(), func(ctx context.Context, oc *Context, out *Output) error {
		return nil
	})
	require.NoError(t, err)

	assert.True(t, msg.IsDone)
	assert.Nil(t, msg.Output)
	assert.NotNil(t, msg.Actions)
	assert.Empty(t, msg.Actions)
}

func TestInvoke_OutputNormalization(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   any
	}{
		{"zero values", nil, nil},
		{"one value", []any{"hello"}, "hello"},
		{"one slice value", []any{[]any{1, 2}}, []any{1, 2}},
		{"many values", []any{"a", 2, true}, []any{"a", 2, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, _, err := invoke(t, newPayload(), func(ctx context.Context, oc *Context, out *Output) error {
				out.Emit(tt.values...)
				return nil
			})
			require.NoError(t, err)
			assert.True(t, msg.IsDone)
			assert.Equal(t, tt.want, msg.Output)
		})
	}
}

func TestInvoke_CurrentTimeFromStartEvent(t *testing.T) {
	local := time.Date(2024, 3, 1, 11, 30, 0, 0, time.FixedZone("EET", 2*3600))
	p := &history.Payload{History: history.History{
		{EventType: history.EventOrchestratorStarted, Timestamp: local, EventID: -1},
	}}

	var seen time.Time
	msg, oc, err := invoke(t, p, func(ctx context.Context, oc *Context, out *Output) error {
		seen = oc.CurrentTime()
		return nil
	})
	require.NoError(t, err)
	require.True(t, msg.IsDone)

	assert.Equal(t, time.UTC, seen.Location())
	assert.True(t, seen.Equal(local))
	assert.Equal(t, seen, oc.CurrentTime())
	assert.True(t, p.History[0].IsProcessed, "start event must be marked processed")
}

func TestInvoke_ProcessedStartEventStillDeterminesTime(t *testing.T) {
	p := newPayload()
	p.History[1].IsProcessed = true

	var first, second time.Time
	_, _, err := invoke(t, p, func(ctx context.Context, oc *Context, out *Output) error {
		first = oc.CurrentTime()
		return nil
	})
	require.NoError(t, err)

	_, _, err = invoke(t, p, func(ctx context.Context, oc *Context, out *Output) error {
		second = oc.CurrentTime()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, startTime, first)
	assert.Equal(t, first, second)
	assert.True(t, p.History[1].IsProcessed)
}

func TestInvoke_RejectsBadStartEvents(t *testing.T) {
	tests := []struct {
		name string
		h    history.History
	}{
		{"no start event", history.History{
			{EventType: history.EventExecutionStarted, Timestamp: startTime},
		}},
		{"two start events", history.History{
			{EventType: history.EventOrchestratorStarted, Timestamp: startTime},
			{EventType: history.EventOrchestratorStarted, Timestamp: startTime.Add(time.Hour)},
		}},
		{"empty history", history.History{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oc := NewContext(&history.Payload{History: tt.h})
			h := newCountingHandle(func(ctx context.Context, oc *Context, out *Output) error {
				_, err := oc.CallActivity(ctx, "A1", nil)
				return err
			})

			msg, err := NewInvoker().Invoke(oc, h)
			require.Error(t, err)
			assert.Nil(t, msg)
			assert.True(t, history.IsContractError(err))
			assert.Equal(t, int32(0), h.begins.Load(), "logic must not run")
			assert.Empty(t, oc.Collector().Batches(), "no action may be recorded")
			assert.Equal(t, int32(1), h.clears.Load())
		})
	}
}

func TestInvoke_SuspendsWhenBlocked(t *testing.T) {
	var afterStop atomic.Bool
	h := newCountingHandle(func(ctx context.Context, oc *Context, out *Output) error {
		_, err := oc.CallActivity(ctx, "A1", "x")
		if !errors.Is(err, ErrSuspended) {
			return errors.New("expected suspension")
		}
		// Misbehaving logic keeps going; nothing it requests may be recorded.
		_, _ = oc.CallActivity(ctx, "A2", nil)
		out.Emit("ignored")
		afterStop.Store(true)
		return err
	})

	oc := NewContext(newPayload())
	msg, err := NewInvoker().Invoke(oc, h)
	require.NoError(t, err)

	assert.False(t, msg.IsDone)
	assert.Nil(t, msg.Output)
	require.Len(t, msg.Actions, 1)
	assert.Equal(t, action.Batch{action.CallActivity("A1", "x")}, msg.Actions[0])

	assert.Equal(t, int32(1), h.stops.Load(), "in-flight invocation must be aborted")
	assert.True(t, afterStop.Load(), "StopInvoke waits for the logic to return")
	assert.Len(t, oc.Collector().Batches(), 1)
	assert.Equal(t, int32(1), h.clears.Load())
}

func TestInvoke_ReplaysCompletedActivity(t *testing.T) {
	p := newPayload(scheduled(0, "Hello"), completed(1, 0, `"Hello Tokyo!"`))

	msg, _, err := invoke(t, p, func(ctx context.Context, oc *Context, out *Output) error {
		raw, err := oc.CallActivity(ctx, "Hello", "Tokyo")
		if err != nil {
			return err
		}
		var greeting string
		if err := json.Unmarshal(raw, &greeting); err != nil {
			return err
		}
		out.Emit(greeting)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, msg.IsDone)
	assert.Equal(t, "Hello Tokyo!", msg.Output)
	assert.Equal(t, []action.Batch{{action.CallActivity("Hello", "Tokyo")}}, msg.Actions)
	assert.True(t, p.History[2].IsProcessed)
	assert.True(t, p.History[3].IsProcessed)
}

func TestInvoke_FailureCarriesPartialState(t *testing.T) {
	boom := errors.New("boom")
	p := newPayload(scheduled(0, "A1"), completed(1, 0, `1`))

	msg, _, err := invoke(t, p, func(ctx context.Context, oc *Context, out *Output) error {
		oc.SetCustomStatus("before failure")
		if _, err := oc.CallActivity(ctx, "A1", nil); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.Nil(t, msg)

	var fe *FailureError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []action.Batch{{action.CallActivity("A1", nil)}}, fe.Actions)
	assert.Equal(t, "before failure", fe.CustomStatus)

	data, jerr := json.Marshal(fe)
	require.NoError(t, jerr)
	assert.JSONEq(t, `{"actions":[[{"actionType":0,"functionName":"A1"}]],"customStatus":"before failure","error":"boom"}`, string(data))
}

func TestInvoke_PanicIsFailure(t *testing.T) {
	_, _, err := invoke(t, newPayload(), func(ctx context.Context, oc *Context, out *Output) error {
		panic("kaboom")
	})

	var fe *FailureError
	require.ErrorAs(t, err, &fe)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestInvoke_ActivityFailureVisibleToLogic(t *testing.T) {
	p := newPayload(
		scheduled(0, "Charge"),
		&history.Event{EventType: history.EventTaskFailed, EventID: 1, TaskScheduledID: 0, Reason: "card declined"},
	)

	msg, _, err := invoke(t, p, func(ctx context.Context, oc *Context, out *Output) error {
		_, err := oc.CallActivity(ctx, "Charge", 10)
		var afe *ActivityFailedError
		if errors.As(err, &afe) {
			out.Emit("compensated: " + afe.Reason)
			return nil
		}
		return err
	})
	require.NoError(t, err)
	assert.True(t, msg.IsDone)
	assert.Equal(t, "compensated: card declined", msg.Output)
}

func TestInvoke_FanOutPartiallyComplete(t *testing.T) {
	p := newPayload(
		scheduled(0, "Work"), scheduled(1, "Work"),
		completed(2, 0, `"a"`),
	)

	msg, _, err := invoke(t, p, func(ctx context.Context, oc *Context, out *Output) error {
		_, err := oc.WaitAll(ctx, ActivityTask("Work", "a"), ActivityTask("Work", "b"))
		return err
	})
	require.NoError(t, err)

	assert.False(t, msg.IsDone)
	require.Len(t, msg.Actions, 1)
	assert.Len(t, msg.Actions[0], 2)
}

func TestInvoke_TimerAndExternalEvent(t *testing.T) {
	fireAt := startTime.Add(time.Hour)
	p := newPayload(
		&history.Event{EventType: history.EventTimerCreated, EventID: 0, FireAt: &fireAt},
		&history.Event{EventType: history.EventTimerFired, EventID: 1, TimerID: 0, FireAt: &fireAt},
		&history.Event{EventType: history.EventEventRaised, EventID: 2, Name: "Approval", Input: json.RawMessage(`{"ok":true}`)},
	)

	msg, _, err := invoke(t, p, func(ctx context.Context, oc *Context, out *Output) error {
		if err := oc.CreateTimer(ctx, oc.CurrentTime().Add(time.Hour)); err != nil {
			return err
		}
		raw, err := oc.WaitForExternalEvent(ctx, "Approval")
		if err != nil {
			return err
		}
		out.Emit(string(raw))
		return nil
	})
	require.NoError(t, err)

	assert.True(t, msg.IsDone)
	assert.Equal(t, `{"ok":true}`, msg.Output)
	require.Len(t, msg.Actions, 2)
	assert.Equal(t, action.CreateTimer(fireAt), msg.Actions[0][0])
	assert.Equal(t, action.WaitForExternalEvent("Approval"), msg.Actions[1][0])
}

func TestInvoke_Deterministic(t *testing.T) {
	raw, err := history.Encode(newPayload(scheduled(0, "Hello"), completed(1, 0, `"hi"`)))
	require.NoError(t, err)

	logic := func(ctx context.Context, oc *Context, out *Output) error {
		if _, err := oc.CallActivity(ctx, "Hello", "Tokyo"); err != nil {
			return err
		}
		_, err := oc.WaitAll(ctx,
			ActivityTask("Fan", 1),
			ActivityTask("Fan", 2),
			TimerTask(oc.CurrentTime().Add(30*time.Minute)),
		)
		return err
	}

	run := func() (*Message, time.Time) {
		p, err := history.Decode(raw)
		require.NoError(t, err)
		oc := NewContext(p)
		msg, err := NewInvoker().Invoke(oc, NewRunner(logic))
		require.NoError(t, err)
		return msg, oc.CurrentTime()
	}

	msg1, time1 := run()
	msg2, time2 := run()

	assert.Equal(t, time1, time2)
	assert.Equal(t, msg1.Actions, msg2.Actions)
	assert.False(t, msg1.IsDone)
	require.Len(t, msg1.Actions, 2)
}

func TestInvoke_ContextReuseRejected(t *testing.T) {
	oc := NewContext(newPayload())
	fn := func(ctx context.Context, oc *Context, out *Output) error { return nil }

	_, err := NewInvoker().Invoke(oc, NewRunner(fn))
	require.NoError(t, err)

	_, err = NewInvoker().Invoke(oc, NewRunner(fn))
	assert.ErrorIs(t, err, ErrContextReused)
}

func TestInvoke_ExternalModeResult(t *testing.T) {
	h := newCountingHandle(func(ctx context.Context, oc *Context, out *Output) error {
		t.Fatal("standard path must not run in external mode")
		return nil
	})
	inv := NewInvoker(WithExternalInvoker(func(oc *Context, _ Handle) {
		oc.SetCustomStatus("external")
		oc.SetExternalResult(map[string]any{"answer": 42}, false)
	}))

	oc := NewContext(newPayload())
	msg, err := inv.Invoke(oc, h)
	require.NoError(t, err)

	assert.True(t, msg.IsDone)
	assert.Empty(t, msg.Actions)
	assert.NotNil(t, msg.Actions)
	assert.Equal(t, map[string]any{"answer": 42}, msg.Output)
	assert.Equal(t, "external", msg.CustomStatus)
	assert.Equal(t, int32(0), h.begins.Load())
	assert.Equal(t, int32(1), h.clears.Load())
	assert.Equal(t, startTime, oc.CurrentTime())
}

func TestInvoke_ExternalModeNormalizesValueLists(t *testing.T) {
	inv := NewInvoker(WithExternalInvoker(func(oc *Context, _ Handle) {
		oc.SetExternalResult([]any{"only"}, false)
	}))

	msg, err := inv.Invoke(NewContext(newPayload()), NewRunner(nil))
	require.NoError(t, err)
	assert.Equal(t, "only", msg.Output)
}

func TestInvoke_ExternalModeError(t *testing.T) {
	cause := errors.New("sdk failure")
	inv := NewInvoker()
	inv.SetExternalInvoker(func(oc *Context, _ Handle) {
		oc.SetExternalResult(cause, true)
	})

	msg, err := inv.Invoke(NewContext(newPayload()), NewRunner(nil))
	assert.Nil(t, msg)
	assert.Same(t, cause, err)

	var fe *FailureError
	assert.False(t, errors.As(err, &fe), "external failures carry no actions")
}

func TestInvoke_ExternalModeNonErrorFailure(t *testing.T) {
	inv := NewInvoker(WithExternalInvoker(func(oc *Context, _ Handle) {
		oc.SetExternalResult("bad input", true)
	}))

	_, err := inv.Invoke(NewContext(newPayload()), NewRunner(nil))
	require.Error(t, err)
	assert.Equal(t, "bad input", err.Error())
}

func TestSetExternalInvoker_ReplacesAndClears(t *testing.T) {
	inv := NewInvoker()
	inv.SetExternalInvoker(func(oc *Context, _ Handle) { oc.SetExternalResult("first", false) })
	inv.SetExternalInvoker(func(oc *Context, _ Handle) { oc.SetExternalResult("second", false) })

	msg, err := inv.Invoke(NewContext(newPayload()), NewRunner(nil))
	require.NoError(t, err)
	assert.Equal(t, "second", msg.Output)

	inv.SetExternalInvoker(nil)
	msg, err = inv.Invoke(NewContext(newPayload()), NewRunner(func(ctx context.Context, oc *Context, out *Output) error {
		out.Emit("standard")
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "standard", msg.Output)
}

func TestEnvelope(t *testing.T) {
	msg := NewMessage(false, nil, "dropped", "status")
	env := Envelope(msg)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"$return":{"isDone":false,"actions":[],"output":null,"customStatus":"status"}}`, string(data))
}
