package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/durable/internal/harness"
	"github.com/roach88/durable/internal/schema"
)

// ErrCodeInvalidScenario reports a scenario file that does not load.
const ErrCodeInvalidScenario = "E300"

// FileValidation holds the validation result of one file.
type FileValidation struct {
	File   string                   `json:"file"`
	Kind   string                   `json:"kind"` // "payload" or "scenario"
	Valid  bool                     `json:"valid"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate host payloads and scenario files",
		Long: `Validate host payloads and scenario files without running them.

JSON files are checked as host payloads: the payload schema, then the
history contract (exactly one OrchestratorStarted event, task and timer
outcomes that refer to scheduled work, known event types).

YAML files are loaded as scenarios, which checks their structure, steps
and assertions.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - Command error (file not found, etc.)

Examples:
  durable validate payload.json
  durable validate scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load payload schema", err)
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)

		fv, err := validateFile(validator, file)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to validate %s", file), err)
		}
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.Format == "json" {
		var failure *CLIError
		if !result.Valid {
			failure = &CLIError{Code: firstErrorCode(result), Message: "validation failed"}
		}
		if err := formatter.Result(result, failure); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}

	if !result.Valid {
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d file(s) invalid", countInvalid(result)))
	}
	return nil
}

// validateFile checks one file. The error reports files that cannot be read.
func validateFile(validator *schema.Validator, file string) (FileValidation, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return FileValidation{}, fmt.Errorf("file not found: %s", file)
	}
	if err != nil {
		return FileValidation{}, err
	}

	switch filepath.Ext(file) {
	case ".yaml", ".yml":
		fv := FileValidation{File: file, Kind: "scenario", Valid: true}
		if _, err := harness.ParseScenario(data); err != nil {
			fv.Valid = false
			fv.Errors = []schema.ValidationError{{
				Field:   "scenario",
				Message: err.Error(),
				Code:    ErrCodeInvalidScenario,
			}}
		}
		return fv, nil

	default:
		errs := validator.Validate(data)
		return FileValidation{
			File:   file,
			Kind:   "payload",
			Valid:  len(errs) == 0,
			Errors: errs,
		}, nil
	}
}

func outputValidateText(formatter *OutputFormatter, result ValidationResult) {
	w := formatter.Writer
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s (%s)\n", fv.File, fv.Kind)
			continue
		}
		fmt.Fprintf(w, "✗ %s (%s)\n", fv.File, fv.Kind)
		for _, e := range fv.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ All files valid")
		return
	}
	fmt.Fprintln(w, "✗ Validation failed")
}

func firstErrorCode(result ValidationResult) string {
	for _, fv := range result.Files {
		if len(fv.Errors) > 0 {
			return fv.Errors[0].Code
		}
	}
	return ErrCodeGeneric
}

func countInvalid(result ValidationResult) int {
	n := 0
	for _, fv := range result.Files {
		if !fv.Valid {
			n++
		}
	}
	return n
}
