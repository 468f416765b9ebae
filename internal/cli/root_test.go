package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/durable/internal/config"
)

// defaultRootOptions mirrors what PersistentPreRunE loads from an empty
// environment, for commands constructed without the root.
func defaultRootOptions(format string) *RootOptions {
	return &RootOptions{
		Format: format,
		Config: config.Config{DB: "durable.db", LogLevel: "info", MaxPasses: 100, Format: "text"},
	}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "durable", cmd.Use)
	assert.Contains(t, cmd.Long, "deterministic replay")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "validate", "replay", "test", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	dbFlag := runCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	// Falls back to DURABLE_DB, so default is empty
	assert.Equal(t, "", dbFlag.DefValue)

	require.NotNil(t, runCmd.Flags().Lookup("instance"))
	require.NotNil(t, runCmd.Flags().Lookup("fresh"))
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	replayCmd, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)

	require.NotNil(t, replayCmd.Flags().Lookup("db"))
	require.NotNil(t, replayCmd.Flags().Lookup("instance"))
	require.NotNil(t, replayCmd.Flags().Lookup("incomplete"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
}

func TestTraceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	traceCmd, _, err := cmd.Find([]string{"trace"})
	require.NoError(t, err)

	require.NotNil(t, traceCmd.Flags().Lookup("db"))
	require.NotNil(t, traceCmd.Flags().Lookup("instance"))
	require.NotNil(t, traceCmd.Flags().Lookup("action"))
}

func TestCommandHelp(t *testing.T) {
	cmd := NewRootCommand()

	assert.Contains(t, cmd.Short, "orchestration")
	assert.Contains(t, cmd.Long, "DURABLE_DB")
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "validate", "x.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("DURABLE_MAX_PASSES", "0")

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "x.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFormatFromEnvironment(t *testing.T) {
	t.Setenv("DURABLE_FORMAT", "json")

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"test", t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"status": "ok"`)
}

func TestDatabaseFallback(t *testing.T) {
	opts := defaultRootOptions("text")
	assert.Equal(t, "x.db", opts.database("x.db"))
	assert.Equal(t, "durable.db", opts.database(""))

	opts.Config.DB = "/var/lib/durable/journal.db"
	assert.Equal(t, "/var/lib/durable/journal.db", opts.database(""))

	assert.Equal(t, "durable.db", (&RootOptions{}).database(""))
}
