package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/durable/internal/durable"
	"github.com/roach88/durable/internal/harness"
	"github.com/roach88/durable/internal/ir"
	"github.com/roach88/durable/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	InstanceID string
	Fresh      bool // replace an instance that is already journaled

	// InstanceGenerator allows overriding the instance ID generator (for
	// testing). If nil, defaults to UUIDv7Generator. Used only when neither
	// --instance nor the scenario names an instance.
	InstanceGenerator durable.InstanceIDGenerator
}

// RunResult summarizes one journaled scenario run.
type RunResult struct {
	Scenario     string   `json:"scenario"`
	InstanceID   string   `json:"instance_id"`
	Outcome      string   `json:"outcome"`
	Passes       int      `json:"passes"`
	Output       any      `json:"output,omitempty"`
	CustomStatus any      `json:"custom_status,omitempty"`
	Error        string   `json:"error,omitempty"`
	Pass         bool     `json:"pass"`
	Errors       []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and journal every pass",
		Long: `Run a scenario against the simulated host and journal its passes.

Each replay pass is validated, executed through the durable controller and
appended to the SQLite journal (created if it doesn't exist). The instance
ID comes from --instance, then the scenario's instance_id, then a fresh
UUIDv7. An instance that is already journaled is rejected unless --fresh
is given, which deletes its passes first.

Exit codes:
  0 - Instance reached the expected outcome
  1 - Expectations or assertions failed
  2 - Command error (invalid scenario, database error, etc.)

Example:
  durable run --db ./durable.db scenarios/checkout.yaml
  durable run --db ./durable.db --instance order-7 scenarios/checkout.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $DURABLE_DB or durable.db)")
	cmd.Flags().StringVar(&opts.InstanceID, "instance", "", "instance ID to run as")
	cmd.Flags().BoolVar(&opts.Fresh, "fresh", false, "delete existing passes of the instance before running")

	return cmd
}

func runScenario(opts *RunOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	dbPath := opts.database(opts.Database)
	slog.Info("opening journal", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	instanceID := opts.InstanceID
	if instanceID == "" {
		instanceID = scenario.InstanceID
	}
	if instanceID == "" {
		gen := opts.InstanceGenerator
		if gen == nil {
			gen = durable.UUIDv7Generator{}
		}
		instanceID = gen.Generate()
	}

	if err := claimInstance(context.Background(), st, instanceID, opts.Fresh); err != nil {
		return err
	}

	runOpts := []harness.Option{
		harness.WithStore(st),
		harness.WithLogger(slog.Default()),
		harness.WithInstanceID(instanceID),
	}
	if scenario.MaxPasses == 0 && opts.Config.MaxPasses > 0 {
		runOpts = append(runOpts, harness.WithMaxPasses(opts.Config.MaxPasses))
	}

	slog.Info("running scenario", "scenario", scenario.Name, "instance_id", instanceID)
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	summary := RunResult{
		Scenario:     scenario.Name,
		InstanceID:   result.InstanceID,
		Outcome:      result.Outcome,
		Passes:       len(result.Trace),
		Output:       result.Output,
		CustomStatus: result.CustomStatus,
		Error:        result.Error,
		Pass:         result.Pass,
		Errors:       result.Errors,
	}

	if formatter.Format == "json" {
		var failure *CLIError
		if !result.Pass {
			failure = &CLIError{Code: ErrCodeRunFailed, Message: "scenario expectations not met"}
		}
		if err := formatter.Result(summary, failure); err != nil {
			return err
		}
	} else {
		outputRunText(formatter, summary)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, "scenario expectations not met")
	}
	return nil
}

// claimInstance makes sure the instance starts from an empty journal.
func claimInstance(ctx context.Context, st *store.Store, instanceID string, fresh bool) error {
	next, err := st.NextSeq(ctx, instanceID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if next == 1 {
		return nil
	}
	if !fresh {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("instance %s already has %d journaled pass(es); use --fresh to replace it", instanceID, next-1))
	}
	slog.Info("deleting journaled instance", "instance_id", instanceID, "passes", next-1)
	if err := st.DeleteInstance(ctx, instanceID); err != nil {
		return WrapExitError(ExitCommandError, "failed to delete instance", err)
	}
	return nil
}

func outputRunText(formatter *OutputFormatter, r RunResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(w, "Instance: %s\n", r.InstanceID)
	fmt.Fprintf(w, "Outcome: %s after %d pass(es)\n", r.Outcome, r.Passes)
	if r.Output != nil {
		fmt.Fprintf(w, "Output: %s\n", canonicalText(r.Output))
	}
	if r.CustomStatus != nil {
		fmt.Fprintf(w, "Custom status: %s\n", canonicalText(r.CustomStatus))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}

	if r.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// canonicalText renders a JSON value for text output.
func canonicalText(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
