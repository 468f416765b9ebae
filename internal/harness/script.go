package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/orchestration"
)

// Orchestration compiles the scenario steps into orchestration logic.
//
// String values beginning with "$" refer to saved step results; "$input" is
// the orchestration input. References resolve anywhere inside step inputs,
// statuses and emitted values.
func (s *Scenario) Orchestration() orchestration.Func {
	steps := s.Steps
	return func(ctx context.Context, oc *orchestration.Context, out *orchestration.Output) error {
		var input any
		if err := oc.Input(&input); err != nil {
			return err
		}
		vars := map[string]any{"input": input}

		for i, step := range steps {
			if err := runStep(ctx, oc, out, step, vars); err != nil {
				if errors.Is(err, orchestration.ErrSuspended) {
					return err
				}
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
		return nil
	}
}

func runStep(ctx context.Context, oc *orchestration.Context, out *orchestration.Output, step Step, vars map[string]any) error {
	switch step.Kind() {
	case StepSetStatus:
		oc.SetCustomStatus(resolve(step.SetStatus, vars))
		return nil

	case StepEmit:
		out.Emit(resolve(step.Emit, vars))
		return nil

	case StepFail:
		return errors.New(step.Fail)

	case StepParallel:
		tasks := make([]orchestration.Task, len(step.Parallel))
		for i, child := range step.Parallel {
			t, err := taskFor(oc, child, vars)
			if err != nil {
				return err
			}
			tasks[i] = t
		}
		raw, err := oc.WaitAll(ctx, tasks...)
		if err != nil {
			return err
		}
		results := make([]any, len(raw))
		for i, r := range raw {
			if results[i], err = decodeResult(r); err != nil {
				return err
			}
		}
		save(vars, step.SaveAs, results)
		return nil

	default:
		t, err := taskFor(oc, step, vars)
		if err != nil {
			return err
		}
		raw, err := oc.WaitAll(ctx, t)
		if err != nil {
			return err
		}
		result, err := decodeResult(raw[0])
		if err != nil {
			return err
		}
		save(vars, step.SaveAs, result)
		return nil
	}
}

// taskFor builds the durable task of a call_activity, timer or wait_event step.
func taskFor(oc *orchestration.Context, step Step, vars map[string]any) (orchestration.Task, error) {
	switch step.Kind() {
	case StepCallActivity:
		input := resolve(step.Input, vars)
		if step.Retry == nil {
			return orchestration.ActivityTask(step.CallActivity, input), nil
		}
		first, err := time.ParseDuration(step.Retry.FirstInterval)
		if err != nil {
			return orchestration.Task{}, err
		}
		return orchestration.ActivityTaskWithRetry(step.CallActivity, input, action.RetryOptions{
			FirstRetryInterval:  first,
			MaxNumberOfAttempts: step.Retry.MaxAttempts,
		}), nil

	case StepTimer:
		d, err := time.ParseDuration(step.Timer)
		if err != nil {
			return orchestration.Task{}, err
		}
		return orchestration.TimerTask(oc.CurrentTime().Add(d)), nil

	case StepWaitEvent:
		return orchestration.ExternalEventTask(step.WaitEvent), nil

	default:
		return orchestration.Task{}, fmt.Errorf("step %q does not produce a task", step.Kind())
	}
}

func decodeResult(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode task result: %w", err)
	}
	return v, nil
}

func save(vars map[string]any, name string, v any) {
	if name != "" {
		vars[name] = v
	}
}

// resolve substitutes "$name" references in v.
// Unknown references are left as literal strings.
func resolve(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		if name, ok := strings.CutPrefix(val, "$"); ok {
			if ref, found := vars[name]; found {
				return ref
			}
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = resolve(elem, vars)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = resolve(elem, vars)
		}
		return out
	default:
		return v
	}
}
