package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/history"
	"github.com/roach88/durable/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	InstanceID string
	Action     string // optional - filter to specific action name
}

// TraceAction is one requested action as shown in the timeline.
type TraceAction struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Input any    `json:"input,omitempty"`
}

// TracePass is one journaled pass in the timeline.
type TracePass struct {
	Seq          int64         `json:"seq"`
	Outcome      string        `json:"outcome"`
	HistoryLen   int           `json:"history_len"`
	NewActions   []TraceAction `json:"new_actions"`
	Output       any           `json:"output,omitempty"`
	CustomStatus any           `json:"custom_status,omitempty"`
	Error        string        `json:"error,omitempty"`
	PayloadHash  string        `json:"payload_hash"`
	ResultHash   string        `json:"result_hash"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	InstanceID   string      `json:"instance_id"`
	Orchestrator string      `json:"orchestrator"`
	Status       string      `json:"status"`
	Timeline     []TracePass `json:"timeline"`
	Stats        TraceStats  `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Passes      int  `json:"passes"`
	Suspensions int  `json:"suspensions"`
	Actions     int  `json:"actions"`
	IsComplete  bool `json:"is_complete"`
	IsFailed    bool `json:"is_failed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled passes of an instance",
		Long: `Show the journaled passes of an orchestration instance.

For each pass the timeline lists the actions requested for the first time
(replay re-requests earlier actions, which are omitted), the outcome, and
the payload and result fingerprints.

Examples:
  durable trace --db ./durable.db --instance order-7
  durable trace --db ./durable.db --instance order-7 --action Charge
  durable trace --db ./durable.db --instance order-7 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $DURABLE_DB or durable.db)")
	cmd.Flags().StringVar(&opts.InstanceID, "instance", "", "instance ID to trace (required)")
	_ = cmd.MarkFlagRequired("instance")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to actions with this name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.database(opts.Database))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	state, err := st.GetInstanceState(ctx, opts.InstanceID)
	if errors.Is(err, sql.ErrNoRows) {
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: TraceResult{
				InstanceID: opts.InstanceID,
				Timeline:   []TracePass{},
			}})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No passes found for instance: %s\n", opts.InstanceID)
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to get instance state", err)
	}

	timeline, err := buildTimeline(state.Passes, opts.Action)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode journal", err)
	}

	result := TraceResult{
		InstanceID:   state.Instance.ID,
		Orchestrator: state.Instance.Orchestrator,
		Status:       string(state.Instance.Status),
		Timeline:     timeline,
		Stats: TraceStats{
			Passes:      len(state.Passes),
			Suspensions: state.Suspensions,
			IsComplete:  state.IsComplete,
			IsFailed:    state.IsFailed,
		},
	}
	for _, p := range timeline {
		result.Stats.Actions += len(p.NewActions)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// journaledAction decodes only the action fields the timeline shows.
type journaledAction struct {
	ActionType        action.Type `json:"actionType"`
	FunctionName      string      `json:"functionName"`
	Input             any         `json:"input"`
	FireAt            *time.Time  `json:"fireAt"`
	ExternalEventName string      `json:"externalEventName"`
}

// journaledResult covers both the message and the failure encoding.
type journaledResult struct {
	Actions      [][]journaledAction `json:"actions"`
	Output       any                 `json:"output"`
	CustomStatus any                 `json:"customStatus"`
	Error        string              `json:"error"`
}

// buildTimeline converts journaled passes to timeline entries.
// When actionFilter is set, only actions with that name are listed.
func buildTimeline(passes []store.Pass, actionFilter string) ([]TracePass, error) {
	timeline := make([]TracePass, 0, len(passes))
	seen := 0

	for _, p := range passes {
		payload, err := history.Decode(p.Payload)
		if err != nil {
			return nil, fmt.Errorf("pass %d payload: %w", p.Seq, err)
		}

		var res journaledResult
		if err := json.Unmarshal(p.Result, &res); err != nil {
			return nil, fmt.Errorf("pass %d result: %w", p.Seq, err)
		}

		var flat []journaledAction
		for _, batch := range res.Actions {
			flat = append(flat, batch...)
		}

		entry := TracePass{
			Seq:          p.Seq,
			Outcome:      string(p.Outcome),
			HistoryLen:   len(payload.History),
			NewActions:   []TraceAction{},
			Output:       res.Output,
			CustomStatus: res.CustomStatus,
			Error:        res.Error,
			PayloadHash:  p.PayloadHash,
			ResultHash:   p.ResultHash,
		}
		if len(flat) > seen {
			for _, a := range flat[seen:] {
				ta := toTraceAction(a)
				if actionFilter != "" && ta.Name != actionFilter {
					continue
				}
				entry.NewActions = append(entry.NewActions, ta)
			}
			seen = len(flat)
		}
		timeline = append(timeline, entry)
	}
	return timeline, nil
}

func toTraceAction(a journaledAction) TraceAction {
	ta := TraceAction{Type: a.ActionType.String(), Input: a.Input}
	switch a.ActionType {
	case action.TypeCreateTimer:
		ta.Name = "timer"
		if a.FireAt != nil {
			ta.Input = a.FireAt.UTC().Format(time.RFC3339)
		}
	case action.TypeWaitForExternalEvent:
		ta.Name = a.ExternalEventName
	default:
		ta.Name = a.FunctionName
	}
	return ta
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Instance: %s\n", result.InstanceID)
	fmt.Fprintf(w, "Orchestrator: %s\n", result.Orchestrator)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	for _, p := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s (history %d)\n", p.Seq, strings.ToUpper(p.Outcome), p.HistoryLen)
		for _, a := range p.NewActions {
			if a.Input != nil {
				fmt.Fprintf(w, "       %s %s %s\n", a.Type, a.Name, formatValue(a.Input))
			} else {
				fmt.Fprintf(w, "       %s %s\n", a.Type, a.Name)
			}
		}
		if p.Output != nil {
			fmt.Fprintf(w, "       Output: %s\n", formatValue(p.Output))
		}
		if p.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", p.Error)
		}
		if verbose {
			fmt.Fprintf(w, "       Payload: %s\n", truncateID(p.PayloadHash))
			fmt.Fprintf(w, "       Result:  %s\n", truncateID(p.ResultHash))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Passes:      %d\n", result.Stats.Passes)
	fmt.Fprintf(w, "  Suspensions: %d\n", result.Stats.Suspensions)
	fmt.Fprintf(w, "  Actions:     %d\n", result.Stats.Actions)
	return nil
}

// formatValue formats a value for display, sorting object keys.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long fingerprint for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
