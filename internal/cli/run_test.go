package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/durable/internal/durable"
	"github.com/roach88/durable/internal/store"
)

func TestRunScenario(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cmd := NewRunCommand(defaultRootOptions("text"))
	out, err := execute(cmd, "--db", dbPath, "--instance", "test-instance-default", harnessScenario("checkout"))
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: checkout")
	assert.Contains(t, out, "Instance: test-instance-default")
	assert.Contains(t, out, "Outcome: completed after 3 pass(es)")
	assert.Contains(t, out, `Output: "r-1"`)
	assert.Contains(t, out, "✓ Scenario passed")
}

func TestRunScenario_Journaled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cmd := NewRunCommand(defaultRootOptions("text"))
	_, err := execute(cmd, "--db", dbPath, "--instance", "order-7", writeScenario(t, t.TempDir(), "greet", greetScenario))
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	inst, err := st.ReadInstance(context.Background(), "order-7")
	require.NoError(t, err)
	assert.Equal(t, "greet", inst.Orchestrator)
	assert.Equal(t, store.OutcomeCompleted, inst.Status)
	assert.Equal(t, int64(2), inst.LastSeq)

	passes, err := st.ReadPasses(context.Background(), "order-7")
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, store.OutcomeSuspended, passes[0].Outcome)
	assert.Equal(t, store.OutcomeCompleted, passes[1].Outcome)
}

func TestRunScenario_GeneratedInstance(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cmd := newRunCommand(&RunOptions{
		RootOptions:       defaultRootOptions("text"),
		InstanceGenerator: durable.NewFixedGenerator("generated-1"),
	})
	out, err := execute(cmd, "--db", dbPath, writeScenario(t, t.TempDir(), "greet", greetScenario))
	require.NoError(t, err)
	assert.Contains(t, out, "Instance: generated-1")
}

func TestRunScenario_JSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cmd := NewRunCommand(defaultRootOptions("json"))
	out, err := execute(cmd, "--db", dbPath, "--instance", "order-7", writeScenario(t, t.TempDir(), "greet", greetScenario))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "order-7", resp.Data.InstanceID)
	assert.Equal(t, "completed", resp.Data.Outcome)
	assert.Equal(t, 2, resp.Data.Passes)
	assert.Equal(t, "hello world", resp.Data.Output)
	assert.True(t, resp.Data.Pass)
}

func TestRunScenario_ExpectationsNotMet(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	scenario := strings.Replace(greetScenario, "output: hello world", "output: goodbye", 1)

	cmd := NewRunCommand(defaultRootOptions("text"))
	out, err := execute(cmd, "--db", dbPath, "--instance", "order-7", writeScenario(t, t.TempDir(), "greet", scenario))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Scenario failed")
	assert.Contains(t, out, "expect.output")
}

func TestRunScenario_ExpectationsNotMetJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	scenario := strings.Replace(greetScenario, "output: hello world", "output: goodbye", 1)

	cmd := NewRunCommand(defaultRootOptions("json"))
	out, err := execute(cmd, "--db", dbPath, "--instance", "order-7", writeScenario(t, t.TempDir(), "greet", scenario))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRunFailed, resp.Error.Code)
}

func TestRunMissingScenario(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cmd := NewRunCommand(defaultRootOptions("text"))
	_, err := execute(cmd, "--db", dbPath, "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunRequiresScenarioArg(t *testing.T) {
	cmd := NewRunCommand(defaultRootOptions("text"))
	_, err := execute(cmd)
	require.Error(t, err)
}

func TestRunScenario_InstanceAlreadyJournaled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	file := writeScenario(t, t.TempDir(), "greet", greetScenario)

	_, err := execute(NewRunCommand(defaultRootOptions("text")), "--db", dbPath, "--instance", "order-7", file)
	require.NoError(t, err)

	_, err = execute(NewRunCommand(defaultRootOptions("text")), "--db", dbPath, "--instance", "order-7", file)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "already has 2 journaled pass(es)")

	out, err := execute(NewRunCommand(defaultRootOptions("text")), "--db", dbPath, "--instance", "order-7", "--fresh", file)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Scenario passed")
}
