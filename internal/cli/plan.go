package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/boardsync/internal/engine"
	"github.com/roach88/boardsync/internal/ir"
)

// PlanOutput is the JSON payload of the plan command.
type PlanOutput struct {
	PassID    string           `json:"pass_id"`
	BoardID   string           `json:"board_id"`
	Items     int              `json:"items"`
	Mutations []ir.Mutation    `json:"mutations"`
	Outcomes  []ir.Outcome     `json:"outcomes"`
	Warnings  []engine.Warning `json:"warnings"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the changes a pass would make",
		Long: `Run every stage of a pass up to planning and print the planned changes.

Nothing is written to the board. Changes the pass would elide (already
current, superseded, disallowed transitions) are listed with their reason.

Examples:
  boardsync plan --rules boardsync.yaml
  boardsync plan --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}
}

func runPlan(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	eng, err := newEngine(opts, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	result, err := eng.Plan(ctx)
	if err != nil {
		return passFailure(formatter, err)
	}

	out := PlanOutput{
		PassID:    result.Context.PassID,
		BoardID:   result.Context.BoardID,
		Items:     len(result.Evaluations),
		Mutations: result.Plan.Mutations,
		Outcomes:  result.Plan.Outcomes,
		Warnings:  result.Warnings,
	}
	if formatter.IsJSON() {
		return formatter.encode(CLIResponse{Status: "ok", Data: out, PassID: out.PassID})
	}
	renderPlan(cmd.OutOrStdout(), out)
	return nil
}
