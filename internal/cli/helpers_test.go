package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// greetScenario completes in two passes without assertions, so it passes
// under any instance ID.
const greetScenario = `name: greet
description: "Greet the world"
steps:
  - call_activity: Hello
    input: world
    save_as: greeting
  - emit: $greeting
activities:
  Hello:
    result: hello world
expect:
  outcome: completed
  output: hello world
  passes: 2
`

// harnessScenario returns a scenario file shipped with the harness tests.
func harnessScenario(name string) string {
	return filepath.Join("..", "harness", "testdata", "scenarios", name+".yaml")
}

// writeScenario writes a scenario file into dir and returns its path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns everything written to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
