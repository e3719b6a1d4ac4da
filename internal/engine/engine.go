package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
	"github.com/roach88/boardsync/internal/rules"
)

// Engine runs reconciliation passes of one rule set against one platform.
//
// An Engine holds no state between passes; the board is the only memory.
// It is not reentrant: run one pass at a time.
type Engine struct {
	platform platform.Platform
	rules    *rules.RuleSet
	lookup   LookupFunc
	now      func() time.Time
	sleep    SleepFunc
	passIDs  PassIDGenerator
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookup sets how monitored-user tokens such as GITHUB_AUTHOR resolve.
// Default: no lookup, so env users fail scope resolution.
func WithLookup(fn LookupFunc) Option {
	return func(e *Engine) {
		e.lookup = fn
	}
}

// WithNow sets the wall clock. Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSleep sets how batch, retry and throttle delays are waited out.
func WithSleep(sleep SleepFunc) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// WithPassIDs sets the pass id generator. Default: UUIDv7Generator.
func WithPassIDs(gen PassIDGenerator) Option {
	return func(e *Engine) {
		e.passIDs = gen
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine.
func New(p platform.Platform, rs *rules.RuleSet, opts ...Option) *Engine {
	e := &Engine{
		platform: p,
		rules:    rs,
		now:      time.Now,
		sleep:    sleepContext,
		passIDs:  UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlanResult is everything a pass decided before dispatch.
type PlanResult struct {
	Context     *PassContext
	Snapshot    *Snapshot
	Items       []ir.Item
	Evaluations []Evaluation
	Plan        *Plan
	Warnings    []Warning
}

// Plan runs every stage up to and including planning. It performs reads
// only. Fatal stage failures are returned as *PassError.
func (e *Engine) Plan(ctx context.Context) (*PlanResult, error) {
	passID := e.passIDs.Generate()
	logger := e.logger.With("pass", passID)
	return e.plan(ctx, passID, logger)
}

func (e *Engine) plan(ctx context.Context, passID string, logger *slog.Logger) (*PlanResult, error) {
	now := e.now()
	tech := e.rules.Technical()

	scope, err := ResolveScope(e.rules, e.lookup)
	if err != nil {
		return nil, err
	}

	pctx := &PassContext{
		PassID:    passID,
		BoardID:   e.rules.ProjectID(),
		Rules:     e.rules,
		Scope:     scope,
		Now:       now,
		Since:     now.Add(-tech.UpdateWindow),
		Technical: tech,
	}
	logger.Info("pass started",
		"board", pctx.BoardID,
		"users", scope.Users,
		"repos", scope.Repos,
		"since", pctx.Since.Format(time.RFC3339))

	pctx.Status, pctx.Sprint, err = LoadFields(ctx, e.platform, e.rules)
	if err != nil {
		return nil, err
	}
	snap, err := LoadSnapshot(ctx, e.platform, pctx.BoardID, pctx.Status, pctx.Sprint, logger)
	if err != nil {
		return nil, err
	}

	result := &PlanResult{Context: pctx, Snapshot: snap}

	if it, ok := CurrentIteration(pctx.Sprint.Iterations, now, e.rules.Timezone()); ok {
		pctx.CurrentSprint = &it
	} else if e.rules.UsesSprint() {
		logger.Warn("no current sprint", "field", pctx.Sprint.Name, "reason", ir.ReasonNoCurrentSprint)
		result.Warnings = append(result.Warnings, Warning{
			Stage:   StageFields,
			Reason:  ir.ReasonNoCurrentSprint,
			Subject: pctx.Sprint.Name,
			Message: "no iteration contains today; sprint rules are skipped",
		})
	}

	items, warnings, err := Collect(ctx, e.platform, pctx, logger)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		return nil, err
	}
	result.Items = items

	result.Evaluations = NewEvaluator(pctx, snap, logger).EvaluateAll(items)
	result.Plan, err = NewPlanner(pctx, snap, NewSequence(), logger).Build(result.Evaluations)
	if err != nil {
		return nil, err
	}

	logger.Info("plan built",
		"items", len(items),
		"board_members", snap.Len(),
		"mutations", len(result.Plan.Mutations))
	return result, nil
}

// Report is the end-of-pass summary.
type Report struct {
	PassID     string                            `json:"pass_id"`
	BoardID    string                            `json:"board_id"`
	StartedAt  time.Time                         `json:"started_at"`
	FinishedAt time.Time                         `json:"finished_at"`
	Planned    int                               `json:"planned"`
	Mutations  []ir.Mutation                     `json:"mutations"`
	Summary    Summary                           `json:"summary"`
	Top        map[ir.OutcomeStatus][]ItemStatus `json:"top"`
	Items      []ItemStatus                      `json:"items"`
	Warnings   []Warning                         `json:"warnings"`
	Outcomes   []ir.Outcome                      `json:"outcomes"`
}

// ExitCode returns 1 when any mutation ended in error, else 0.
func (r *Report) ExitCode() int {
	if r.Summary.Errors > 0 {
		return 1
	}
	return 0
}

// Run executes one full pass: plan, dispatch, report.
//
// Cancelling ctx during dispatch finishes the running batch and reports
// the rest as skipped; the report is still returned.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	passID := e.passIDs.Generate()
	logger := e.logger.With("pass", passID)
	started := e.now()

	result, err := e.plan(ctx, passID, logger)
	if err != nil {
		logger.Error("pass aborted", "error", err)
		return nil, err
	}
	pctx := result.Context

	tracker := NewStatusTracker()
	for _, ev := range result.Evaluations {
		tracker.Register(ev.Key())
	}
	for _, o := range result.Plan.Outcomes {
		tracker.Record(o)
	}

	throttle := NewThrottle(e.platform, pctx.Technical.MinRemaining, e.now, e.sleep, logger)
	NewDispatcher(e.platform, pctx, tracker, throttle, e.sleep, logger).
		Dispatch(ctx, result.Plan.Mutations)

	report := &Report{
		PassID:     passID,
		BoardID:    pctx.BoardID,
		StartedAt:  started,
		FinishedAt: e.now(),
		Planned:    len(result.Plan.Mutations),
		Mutations:  result.Plan.Mutations,
		Summary:    tracker.Summary(),
		Top:        tracker.Top(pctx.Technical.TopN),
		Items:      tracker.Items(),
		Warnings:   result.Warnings,
		Outcomes:   tracker.Outcomes(),
	}
	logger.Info("pass finished",
		"total", report.Summary.Total,
		"changed", report.Summary.Changed,
		"unchanged", report.Summary.Unchanged,
		"skipped", report.Summary.Skipped,
		"errors", report.Summary.Errors,
		"throttle_pauses", throttle.Pauses())
	return report, nil
}
