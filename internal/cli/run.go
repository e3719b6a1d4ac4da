package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass",
		Long: `Run one reconciliation pass against the board named in the rule file.

The pass reads the board, collects activity inside the update window,
evaluates every rule section, plans the changes and applies them in batches.
Rate-limited and server errors are retried with exponential backoff.

Exit codes:
  0 - Pass finished, no item ended in error
  1 - One or more items ended in error
  2 - Pass aborted (rules, scope, board fields or snapshot) or command error

Examples:
  boardsync run --rules boardsync.yaml
  GITHUB_AUTHOR=alice boardsync run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(opts, cmd)
		},
	}
}

func runPass(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	eng, err := newEngine(opts, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	report, err := eng.Run(ctx)
	if err != nil {
		return passFailure(formatter, err)
	}

	if formatter.IsJSON() {
		status := "ok"
		if report.ExitCode() != ExitSuccess {
			status = "error"
		}
		if err := formatter.encode(CLIResponse{Status: status, Data: report, PassID: report.PassID}); err != nil {
			return err
		}
	} else {
		renderReport(cmd.OutOrStdout(), report)
	}

	if report.ExitCode() != ExitSuccess {
		return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) ended in error", report.Summary.Errors))
	}
	return nil
}
