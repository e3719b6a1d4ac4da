package cli

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/boardsync/internal/rules"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                    `json:"valid"`
	Path   string                  `json:"path"`
	Rules  int                     `json:"rules,omitempty"`
	Errors []rules.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [rule-file]",
		Short: "Validate a rule file",
		Long: `Validate a rule file without contacting GitHub.

Checks the file against the rule schema, parses every condition and
skip_if expression, and checks actions, values and transitions per section.
Every violation is reported with its code and line.

The rule file defaults to --rules.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.Rules
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(opts, path, cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	formatter.VerboseLog("Validating %s", path)

	rs, err := rules.Load(path)
	if err == nil {
		return outputValidateSuccess(formatter, ValidationResult{Valid: true, Path: path, Rules: rs.RuleCount()})
	}

	var loadErr *rules.LoadError
	if !errors.As(err, &loadErr) {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}
	if len(loadErr.Violations) == 1 && loadErr.Violations[0].Code == rules.ErrCodeRead {
		return outputValidateError(formatter, rules.ErrCodeRead, loadErr.Violations[0].Message)
	}
	return outputValidationErrors(formatter, ValidationResult{Path: path, Errors: loadErr.Violations})
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s is valid (%d rules)\n", result.Path, result.Rules)
	return nil
}

// outputValidateError outputs a rule file that could not be read.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every violation.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintf(formatter.Writer, "✗ %s has %d violation(s)\n", result.Path, len(errs))
	t := newTable(formatter.Writer, "Violations")
	t.AppendHeader(table.Row{"Code", "Line", "Field", "Message"})
	for _, v := range errs {
		line := ""
		if v.Line > 0 {
			line = fmt.Sprint(v.Line)
		}
		t.AppendRow(table.Row{v.Code, line, v.Field, v.Message})
	}
	t.Render()
	return failure
}
