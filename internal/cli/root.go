package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/durable/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the environment configuration, loaded before any command
	// runs. Flags set on the command line take precedence.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the durable CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "durable",
		Short: "Replay-based durable orchestration controller",
		Long: `Drive durable orchestrations through deterministic replay passes.

Scenarios script orchestration logic against a simulated host. Every pass
is journaled in SQLite so that replays can be verified and inspected later.

Environment:
  DURABLE_DB          journal path (default durable.db)
  DURABLE_LOG_LEVEL   debug, info, warn or error (default info)
  DURABLE_MAX_PASSES  pass bound for scenarios without max_passes (default 100)
  DURABLE_FORMAT      text or json (default text)`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg

			if !cmd.Flags().Changed("format") {
				opts.Format = cfg.Format
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			level, err := config.ParseLevel(cfg.LogLevel)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			if opts.Verbose {
				level = slog.LevelDebug
			}
			// Logs go to stderr so JSON output on stdout stays parseable
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// database returns the journal path: the --db flag when given, otherwise
// the configured default.
func (o *RootOptions) database(flag string) string {
	if flag != "" {
		return flag
	}
	if o.Config.DB != "" {
		return o.Config.DB
	}
	return "durable.db"
}
