package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/durable/internal/harness"
	"github.com/roach88/durable/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string
	InstanceID string // optional - specific instance only
	Incomplete bool   // only instances whose last pass suspended
}

// ReplayInstanceResult holds the replay result for a single instance.
type ReplayInstanceResult struct {
	InstanceID    string             `json:"instance_id"`
	Status        string             `json:"status"`
	Passes        int                `json:"passes"`
	Deterministic bool               `json:"deterministic"`
	Divergences   []store.Divergence `json:"divergences,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scenario         string                 `json:"scenario"`
	Instances        []ReplayInstanceResult `json:"instances"`
	TotalInstances   int                    `json:"total_instances"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Re-run journaled passes and verify determinism",
		Long: `Re-run every journaled pass of a scenario's instances and verify determinism.

Each stored payload is fed back through the durable controller with the
scenario's current orchestration logic. A pass whose result fingerprint
differs from the journal is reported as a divergence.

Exit codes:
  0 - All instances replay deterministically
  1 - Determinism verification failed (divergences detected)
  2 - Command error (database not found, etc.)

Examples:
  durable replay --db ./durable.db scenarios/checkout.yaml
  durable replay --db ./durable.db --instance order-7 scenarios/checkout.yaml
  durable replay --db ./durable.db --incomplete scenarios/awaiting.yaml
  durable replay --db ./durable.db scenarios/checkout.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $DURABLE_DB or durable.db)")
	cmd.Flags().StringVar(&opts.InstanceID, "instance", "", "replay specific instance only")
	cmd.Flags().BoolVar(&opts.Incomplete, "incomplete", false, "replay only instances still waiting on the host")

	return cmd
}

func runReplay(opts *ReplayOptions, scenarioFile string, cmd *cobra.Command) error {
	ctx := context.Background()

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	st, err := store.Open(opts.database(opts.Database))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	instances, err := replayTargets(ctx, st, scenario.Name, opts.InstanceID, opts.Incomplete)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list instances", err)
	}

	replay, err := harness.Replayer(scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare replay", err)
	}

	result := ReplayResult{
		Scenario:         scenario.Name,
		Instances:        make([]ReplayInstanceResult, 0, len(instances)),
		TotalInstances:   len(instances),
		AllDeterministic: true,
	}

	for _, inst := range instances {
		divergences, err := st.VerifyReplay(ctx, inst.ID, replay)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay instance %s", inst.ID), err)
		}

		res := ReplayInstanceResult{
			InstanceID:    inst.ID,
			Status:        string(inst.Status),
			Passes:        int(inst.LastSeq),
			Deterministic: len(divergences) == 0,
			Divergences:   divergences,
		}
		result.Instances = append(result.Instances, res)
		if !res.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayTargets returns the journaled instances run by the named scenario,
// or the single requested instance.
func replayTargets(ctx context.Context, st *store.Store, orchestrator, instanceID string, incomplete bool) ([]store.Instance, error) {
	if instanceID != "" {
		inst, err := st.ReadInstance(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		return []store.Instance{inst}, nil
	}

	list := st.ListInstances
	if incomplete {
		list = st.FindIncompleteInstances
	}
	all, err := list(ctx)
	if err != nil {
		return nil, err
	}
	var matched []store.Instance
	for _, inst := range all {
		if inst.Orchestrator == orchestrator {
			matched = append(matched, inst)
		}
	}
	return matched, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}

	var failure *CLIError
	if !result.AllDeterministic {
		failure = &CLIError{
			Code:    ErrCodeDeterminism,
			Message: "determinism verification failed",
		}
	}
	if err := formatter.Result(result, failure); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalInstances == 0 {
		fmt.Fprintf(w, "No instances of %s found in database.\n", result.Scenario)
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d instance(s) of %s\n", result.TotalInstances, result.Scenario)
	fmt.Fprintln(w)

	for _, inst := range result.Instances {
		status := "✓"
		if !inst.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Instance: %s\n", status, inst.InstanceID)
		fmt.Fprintf(w, "  Passes: %d (%s)\n", inst.Passes, inst.Status)

		for _, d := range inst.Divergences {
			fmt.Fprintf(w, "  Pass %d diverged: %s\n", d.Seq, d.Outcome)
			if verbose {
				fmt.Fprintf(w, "    journal: %s\n", d.Expected)
				fmt.Fprintf(w, "    replay:  %s\n", d.Actual)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All instances verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
