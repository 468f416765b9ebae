package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a replay test scenario.
//
// A scenario scripts an orchestration as a list of steps, stubs the outcome
// of every activity and external event it touches, and states what the
// instance should end with once the simulated host has driven it as far as
// it can go.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// InstanceID is an optional fixed instance ID.
	// If empty, defaults to testutil.DefaultInstanceID.
	InstanceID string `yaml:"instance_id,omitempty"`

	// Input is the orchestration input.
	Input any `yaml:"input,omitempty"`

	// StartTime is the OrchestratorStarted timestamp. Defaults to
	// testutil.DefaultStart.
	StartTime *time.Time `yaml:"start_time,omitempty"`

	// MaxPasses bounds the number of replay passes. Defaults to 100.
	MaxPasses int `yaml:"max_passes,omitempty"`

	// Steps is the scripted orchestration logic, run in order on every pass.
	Steps []Step `yaml:"steps"`

	// Activities stubs activity outcomes by function name.
	Activities map[string]ActivityStub `yaml:"activities,omitempty"`

	// Events stubs external events by name. An event without a stub is
	// never raised and leaves the instance suspended.
	Events map[string]any `yaml:"events,omitempty"`

	// Expect states the final outcome.
	Expect Expect `yaml:"expect"`

	// Assertions validate the requested actions and the pass journal.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scripted operation. Exactly one operation field is set.
type Step struct {
	CallActivity string     `yaml:"call_activity,omitempty"`
	Input        any        `yaml:"input,omitempty"`
	Retry        *RetrySpec `yaml:"retry,omitempty"`

	// Parallel fans out call_activity, timer and wait_event steps as one
	// batch and waits for all of them.
	Parallel []Step `yaml:"parallel,omitempty"`

	// Timer waits for a duration after the pass time, e.g. "30m".
	Timer string `yaml:"timer,omitempty"`

	WaitEvent string `yaml:"wait_event,omitempty"`
	SetStatus any    `yaml:"set_status,omitempty"`
	Emit      any    `yaml:"emit,omitempty"`
	Fail      string `yaml:"fail,omitempty"`

	// SaveAs names the step result so later steps can refer to it as "$name".
	SaveAs string `yaml:"save_as,omitempty"`
}

// RetrySpec is the retry policy of an activity step.
type RetrySpec struct {
	FirstInterval string `yaml:"first_interval"`
	MaxAttempts   int    `yaml:"max_attempts"`
}

// ActivityStub is the stubbed outcome of an activity.
type ActivityStub struct {
	Result  any    `yaml:"result,omitempty"`
	Error   string `yaml:"error,omitempty"`
	Details string `yaml:"details,omitempty"`
}

// Expect specifies the final outcome of the instance.
type Expect struct {
	// Outcome is completed, suspended or failed.
	Outcome string `yaml:"outcome"`

	// Output is compared by canonical JSON when set.
	Output any `yaml:"output,omitempty"`

	// CustomStatus is compared by canonical JSON when set.
	CustomStatus any `yaml:"custom_status,omitempty"`

	// Error is a substring of the failure message.
	Error string `yaml:"error,omitempty"`

	// Passes is the exact number of passes when non-zero.
	Passes int `yaml:"passes,omitempty"`
}

// Step kinds.
const (
	StepCallActivity = "call_activity"
	StepParallel     = "parallel"
	StepTimer        = "timer"
	StepWaitEvent    = "wait_event"
	StepSetStatus    = "set_status"
	StepEmit         = "emit"
	StepFail         = "fail"
)

// Expected outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeSuspended = "suspended"
	OutcomeFailed    = "failed"
)

// Kind returns which operation the step performs, or "" when none or
// several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.CallActivity != "" {
		kinds = append(kinds, StepCallActivity)
	}
	if len(s.Parallel) > 0 {
		kinds = append(kinds, StepParallel)
	}
	if s.Timer != "" {
		kinds = append(kinds, StepTimer)
	}
	if s.WaitEvent != "" {
		kinds = append(kinds, StepWaitEvent)
	}
	if s.SetStatus != nil {
		kinds = append(kinds, StepSetStatus)
	}
	if s.Emit != nil {
		kinds = append(kinds, StepEmit)
	}
	if s.Fail != "" {
		kinds = append(kinds, StepFail)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxPasses < 0 {
		return fmt.Errorf("max_passes must not be negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step, false); err != nil {
			return err
		}
	}

	switch s.Expect.Outcome {
	case OutcomeCompleted, OutcomeSuspended, OutcomeFailed:
	case "":
		return fmt.Errorf("expect.outcome is required")
	default:
		return fmt.Errorf("expect.outcome: unknown outcome %q", s.Expect.Outcome)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(path string, step Step, inParallel bool) error {
	kind := step.Kind()
	if kind == "" {
		return fmt.Errorf("%s: exactly one operation is required", path)
	}

	if inParallel {
		switch kind {
		case StepCallActivity, StepTimer, StepWaitEvent:
		default:
			return fmt.Errorf("%s: %s cannot run in parallel", path, kind)
		}
		if step.SaveAs != "" {
			return fmt.Errorf("%s: save_as is not allowed inside parallel", path)
		}
	}

	switch kind {
	case StepTimer:
		if _, err := time.ParseDuration(step.Timer); err != nil {
			return fmt.Errorf("%s: invalid timer duration: %w", path, err)
		}
	case StepParallel:
		for i, child := range step.Parallel {
			if err := validateStep(fmt.Sprintf("%s.parallel[%d]", path, i), child, true); err != nil {
				return err
			}
		}
	}

	if step.Retry != nil {
		if kind != StepCallActivity {
			return fmt.Errorf("%s: retry only applies to call_activity", path)
		}
		if _, err := time.ParseDuration(step.Retry.FirstInterval); err != nil {
			return fmt.Errorf("%s.retry: invalid first_interval: %w", path, err)
		}
		if step.Retry.MaxAttempts < 1 {
			return fmt.Errorf("%s.retry: max_attempts must be at least 1", path)
		}
	}
	return nil
}
