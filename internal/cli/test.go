package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/durable/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// TestResult holds the overall test result.
type TestResult = harness.SuiteResult

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario suite",
		Long: `Run every scenario file in a directory through the host simulator.

Each scenario is judged by its expect clause and assertions. A scenario with
a golden file at <dir>/golden/<name>.golden must also reproduce its trace
snapshot byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  durable test ./scenarios
  durable test ./scenarios --filter "checkout*"
  durable test ./scenarios --update
  durable test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	result, err := harness.RunSuite(scenariosDir, harness.SuiteOptions{
		Filter:     opts.Filter,
		Update:     opts.Update,
		RunOptions: []harness.Option{harness.WithLogger(slog.Default())},
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd.OutOrStdout(), result)
	}
	return outputTestText(cmd.OutOrStdout(), result)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(w io.Writer, result *TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := writeJSON(w, response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(w io.Writer, result *TestResult) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, s := range result.Scenarios {
		switch {
		case s.Pass && s.GoldenUpdated:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
		case s.Pass:
			fmt.Fprintf(w, "✓ %s\n", s.Name)
		default:
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
