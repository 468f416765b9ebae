package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/durable/internal/ir"
)

// TraceSnapshot captures the complete pass trace of a scenario execution.
// Serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario_name"`
	InstanceID   string      `json:"instance_id"`
	Outcome      string      `json:"outcome"`
	Trace        []PassTrace `json:"trace"`
}

// Snapshot returns the canonical JSON snapshot of a result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(TraceSnapshot{
		ScenarioName: scenarioName,
		InstanceID:   result.InstanceID,
		Outcome:      result.Outcome,
		Trace:        result.Trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
