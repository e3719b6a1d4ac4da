package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/boardsync/internal/engine"
	"github.com/roach88/boardsync/internal/platform"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Rules   string        // rule file path
	APIURL  string        // GitHub API base URL
	Timeout time.Duration // per-request timeout
	Token   string        // from GITHUB_TOKEN
	Author  string        // from GITHUB_AUTHOR

	// Config resolves flags against BOARDSYNC_* environment variables.
	Config *viper.Viper

	// Platform replaces the GitHub client (for testing).
	Platform platform.Platform

	// EngineOptions are applied after the defaults (for testing).
	EngineOptions []engine.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the boardsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	if opts.Config == nil {
		opts.Config = NewConfig()
	}

	cmd := &cobra.Command{
		Use:   "boardsync",
		Short: "boardsync - rule-driven project board reconciliation",
		Long: `boardsync keeps a GitHub project board in line with recent repository activity.

Each pass reads the board, collects recently updated issues and pull requests
for the monitored users and repositories, evaluates the rule file and applies
the resulting changes: admission, Status column, current sprint and assignees.

Flags can be set through BOARDSYNC_* environment variables (BOARDSYNC_RULES,
BOARDSYNC_FORMAT, ...). GITHUB_TOKEN authenticates and GITHUB_AUTHOR names the
monitored user for rule files that reference it.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.load()
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Rules, "rules", "r", DefaultRulesFile, "rule file")
	flags.StringVar(&opts.APIURL, "api-url", "", "GitHub API base URL (default https://api.github.com)")
	flags.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")
	bindFlags(opts.Config, flags, "verbose", "format", "rules", "api-url", "timeout")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
