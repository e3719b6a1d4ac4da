package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/boardsync/internal/engine"
	"github.com/roach88/boardsync/internal/platform"
	"github.com/roach88/boardsync/internal/platform/github"
	"github.com/roach88/boardsync/internal/rules"
)

// newLogger installs a text handler on w with the level from --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newEngine loads the rule file and connects the platform.
func newEngine(opts *RootOptions, logger *slog.Logger) (*engine.Engine, error) {
	logger.Info("loading rules", "path", opts.Rules)
	rs, err := rules.Load(opts.Rules)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load rules", err)
	}
	logger.Info("rules loaded", "board", rs.ProjectID(), "rules", rs.RuleCount())

	p := opts.Platform
	if p == nil {
		if opts.Token == "" {
			return nil, NewExitError(ExitCommandError, "GITHUB_TOKEN is not set")
		}
		client, err := github.New(github.Config{
			Token:             opts.Token,
			BaseURL:           opts.APIURL,
			RequestsPerSecond: rs.Technical().RequestsPerSecond,
			Timeout:           opts.Timeout,
			ETags:             platform.NewETagCache(),
			Logger:            logger,
		})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create GitHub client", err)
		}
		p = client
	}

	engineOpts := []engine.Option{
		engine.WithLookup(opts.lookup()),
		engine.WithLogger(logger),
	}
	return engine.New(p, rs, append(engineOpts, opts.EngineOptions...)...), nil
}

// signalContext cancels on SIGINT or SIGTERM. A cancelled pass finishes
// its running batch and reports the rest as skipped.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, finishing current batch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// passFailure reports a pass that aborted before dispatch.
func passFailure(f *OutputFormatter, err error) error {
	var pe *engine.PassError
	if errors.As(err, &pe) {
		if f.IsJSON() {
			_ = f.Error(string(pe.Code), pe.Message, map[string]string{"stage": string(pe.Stage)})
		}
		return WrapExitError(ExitCommandError, "pass aborted", err)
	}
	if f.IsJSON() {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	}
	return WrapExitError(ExitCommandError, "pass aborted", err)
}
