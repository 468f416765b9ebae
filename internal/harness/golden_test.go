package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files hold the canonical JSON trace snapshot. Regenerate with:
//
//	go test ./internal/harness -run TestRunWithGolden -update

func TestRunWithGolden_Checkout(t *testing.T) {
	result, err := RunWithGolden(t, checkoutScenario())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_Declined(t *testing.T) {
	scenario := &Scenario{
		Name:        "declined",
		Description: "Charge fails after status update",
		Steps: []Step{
			{SetStatus: "charging"},
			{CallActivity: "Charge"},
		},
		Activities: map[string]ActivityStub{"Charge": {Error: "card declined"}},
		Expect:     Expect{Outcome: OutcomeFailed},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_Approval(t *testing.T) {
	scenario := &Scenario{
		Name:        "approval",
		Description: "Approval, then a one hour cooling-off timer",
		InstanceID:  "approval-1",
		Steps: []Step{
			{WaitEvent: "Approved", SaveAs: "answer"},
			{Timer: "1h"},
			{Emit: "$answer"},
		},
		Events: map[string]any{"Approved": "yes"},
		Expect: Expect{Outcome: OutcomeCompleted, Output: "yes", Passes: 3},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	result, err := Run(checkoutScenario())
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "checkout", result))
}

func TestSnapshot_Canonical(t *testing.T) {
	result, err := Run(checkoutScenario())
	require.NoError(t, err)

	data, err := Snapshot("checkout", result)
	require.NoError(t, err)

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, "checkout", snapshot["scenario_name"])
	assert.Equal(t, "completed", snapshot["outcome"])
	assert.Len(t, snapshot["trace"], 3)

	// Keys are sorted and there is no insignificant whitespace
	assert.Regexp(t, `^\{"instance_id":"test-instance-default","outcome":"completed","scenario_name":"checkout","trace":\[`, string(data))
	assert.NotContains(t, string(data), "\n")
}
