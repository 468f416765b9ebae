package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/history"
)

// ErrSuspended is returned by the task methods once the pass has yielded.
// Logic should return it (or any error) without further durable calls.
var ErrSuspended = errors.New("orchestration pass suspended")

// ActivityFailedError is the failure an activity reported to the host.
type ActivityFailedError struct {
	Name    string
	Reason  string
	Details string
}

func (e *ActivityFailedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("activity %s failed: %s (%s)", e.Name, e.Reason, e.Details)
	}
	return fmt.Sprintf("activity %s failed: %s", e.Name, e.Reason)
}

// outcome is what the history says about a task.
type outcome struct {
	result json.RawMessage
	err    error
}

// Task is a durable operation that can be awaited alone or with others.
type Task struct {
	action  action.Action
	resolve func(h history.History) (outcome, bool)
}

// Action returns the operation the task requests from the host.
func (t Task) Action() action.Action { return t.action }

// ActivityTask calls the named activity.
func ActivityTask(name string, input any) Task {
	return activityTask(action.CallActivity(name, input))
}

// ActivityTaskWithRetry calls the named activity with a host retry policy.
func ActivityTaskWithRetry(name string, input any, retry action.RetryOptions) Task {
	return activityTask(action.CallActivityWithRetry(name, input, retry))
}

func activityTask(a action.Action) Task {
	name := a.FunctionName
	return Task{
		action: a,
		resolve: func(h history.History) (outcome, bool) {
			scheduled, ok := h.FindUnprocessed(func(e *history.Event) bool {
				return e.EventType == history.EventTaskScheduled && e.Name == name
			})
			if !ok {
				return outcome{}, false
			}
			scheduled.IsProcessed = true

			done, ok := h.FindUnprocessed(func(e *history.Event) bool {
				return (e.EventType == history.EventTaskCompleted || e.EventType == history.EventTaskFailed) &&
					e.TaskScheduledID == scheduled.EventID
			})
			if !ok {
				return outcome{}, false
			}
			done.IsProcessed = true

			if done.EventType == history.EventTaskFailed {
				return outcome{err: &ActivityFailedError{Name: name, Reason: done.Reason, Details: done.Details}}, true
			}
			return outcome{result: done.Result}, true
		},
	}
}

// TimerTask waits until fireAt.
func TimerTask(fireAt time.Time) Task {
	return Task{
		action: action.CreateTimer(fireAt),
		resolve: func(h history.History) (outcome, bool) {
			created, ok := h.FindUnprocessed(func(e *history.Event) bool {
				return e.EventType == history.EventTimerCreated
			})
			if !ok {
				return outcome{}, false
			}
			created.IsProcessed = true

			fired, ok := h.FindUnprocessed(func(e *history.Event) bool {
				return e.EventType == history.EventTimerFired && e.TimerID == created.EventID
			})
			if !ok {
				return outcome{}, false
			}
			fired.IsProcessed = true
			return outcome{}, true
		},
	}
}

// ExternalEventTask waits for the named external event.
func ExternalEventTask(name string) Task {
	return Task{
		action: action.WaitForExternalEvent(name),
		resolve: func(h history.History) (outcome, bool) {
			raised, ok := h.FindUnprocessed(func(e *history.Event) bool {
				return e.EventType == history.EventEventRaised && e.Name == name
			})
			if !ok {
				return outcome{}, false
			}
			raised.IsProcessed = true
			return outcome{result: raised.Input}, true
		},
	}
}

// CallActivity runs one activity and returns its raw JSON result.
func (c *Context) CallActivity(ctx context.Context, name string, input any) (json.RawMessage, error) {
	results, err := c.WaitAll(ctx, ActivityTask(name, input))
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// CreateTimer waits until fireAt. Use CurrentTime to derive fireAt.
func (c *Context) CreateTimer(ctx context.Context, fireAt time.Time) error {
	_, err := c.WaitAll(ctx, TimerTask(fireAt))
	return err
}

// WaitForExternalEvent waits for the named event and returns its payload.
func (c *Context) WaitForExternalEvent(ctx context.Context, name string) (json.RawMessage, error) {
	results, err := c.WaitAll(ctx, ExternalEventTask(name))
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// WaitAll requests every task as one batch and waits for all of them.
//
// Results are returned in task order. If any task failed, the first failure
// in task order is returned. If the history cannot resolve every task the
// pass yields: the batch is recorded as blocked, the call waits for ctx to
// be cancelled by the controller and returns ErrSuspended.
func (c *Context) WaitAll(ctx context.Context, tasks ...Task) ([]json.RawMessage, error) {
	if len(tasks) == 0 {
		return []json.RawMessage{}, nil
	}

	batch := make(action.Batch, len(tasks))
	results := make([]json.RawMessage, len(tasks))
	var firstErr error
	complete := true

	for i, t := range tasks {
		batch[i] = t.action
		o, ok := t.resolve(c.history)
		if !ok {
			complete = false
			continue
		}
		results[i] = o.result
		if o.err != nil && firstErr == nil {
			firstErr = o.err
		}
	}

	if err := c.collector.Record(batch, !complete); err != nil || !complete {
		<-ctx.Done()
		return nil, ErrSuspended
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
