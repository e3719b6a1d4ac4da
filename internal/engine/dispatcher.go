package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
)

// Dispatcher applies a plan to the board.
//
// Mutations are grouped into per-content chains, which keep plan order
// (Membership first). Chains are cut into batches of Technical.BatchSize;
// chains in a batch run concurrently and batches are separated by
// Technical.BatchDelay. Every mutation ends with exactly one outcome in the
// tracker.
//
// Cancellation of ctx lets calls already sent in the running batch finish;
// a throttle pause ends at once and every mutation not yet sent is recorded
// skipped with reason cancelled.
type Dispatcher struct {
	platform platform.Platform
	pctx     *PassContext
	tracker  *StatusTracker
	throttle *Throttle
	policy   RetryPolicy
	sleep    SleepFunc
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher for one pass.
func NewDispatcher(p platform.Platform, pctx *PassContext, tracker *StatusTracker, throttle *Throttle, sleep SleepFunc, logger *slog.Logger) *Dispatcher {
	if sleep == nil {
		sleep = sleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	policy := RetryPolicyFrom(pctx.Technical)
	logger.Debug("retry schedule", "max_attempts", policy.MaxAttempts, "delays", policy.Delays())
	return &Dispatcher{
		platform: p,
		pctx:     pctx,
		tracker:  tracker,
		throttle: throttle,
		policy:   policy,
		sleep:    sleep,
		logger:   logger,
	}
}

// chains groups mutations by content id, preserving plan order.
func chains(mutations []ir.Mutation) [][]ir.Mutation {
	var out [][]ir.Mutation
	index := make(map[string]int)
	for _, m := range mutations {
		i, ok := index[m.ContentID]
		if !ok {
			i = len(out)
			index[m.ContentID] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], m)
	}
	return out
}

// Dispatch applies mutations and records their outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, mutations []ir.Mutation) {
	all := chains(mutations)
	size := max(1, d.pctx.Technical.BatchSize)
	// In-flight calls of a batch outlive cancellation.
	callCtx := context.WithoutCancel(ctx)

	for start := 0; start < len(all); start += size {
		if start > 0 && d.pctx.Technical.BatchDelay > 0 {
			if err := d.sleep(ctx, d.pctx.Technical.BatchDelay); err != nil {
				d.cancelRest(all[start:])
				return
			}
		}
		if ctx.Err() != nil {
			d.cancelRest(all[start:])
			return
		}

		batch := all[start:min(start+size, len(all))]
		d.logger.Debug("dispatching batch", "batch", start/size+1, "items", len(batch))

		var g errgroup.Group
		for _, chain := range batch {
			g.Go(func() error {
				d.runChain(ctx, callCtx, chain)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (d *Dispatcher) cancelRest(rest [][]ir.Mutation) {
	n := 0
	for _, chain := range rest {
		for _, m := range chain {
			d.tracker.Record(outcomeFor(m, ir.OutcomeSkipped, ir.ReasonCancelled, 0))
			n++
		}
	}
	d.logger.Warn("dispatch cancelled", "skipped", n, "reason", ir.ReasonCancelled)
}

// runChain applies one item's mutations in order. Field mutations that
// need membership are skipped when admission failed or was cancelled.
// Waits observe ctx; platform calls run on callCtx.
func (d *Dispatcher) runChain(ctx, callCtx context.Context, chain []ir.Mutation) {
	projectItemID := chain[0].ProjectItemID
	var admitFailure ir.Reason

	for _, m := range chain {
		if m.Field.RequiresMembership() {
			if admitFailure != "" {
				d.tracker.Record(outcomeFor(m, ir.OutcomeSkipped, admitFailure, 0))
				continue
			}
			if projectItemID == "" {
				d.tracker.Record(outcomeFor(m, ir.OutcomeSkipped, ir.ReasonNotFound, 0))
				continue
			}
			m.ProjectItemID = projectItemID
		}

		o, pid := d.apply(ctx, callCtx, m)
		if m.Field == ir.FieldMembership {
			if o.Status == ir.OutcomeError || o.Status == ir.OutcomeSkipped {
				admitFailure = o.Reason
			} else if pid != "" {
				projectItemID = pid
			}
		}
		d.tracker.Record(o)
	}
}

// apply performs one mutation with retry. It returns the outcome and, for
// admission, the new project item id.
func (d *Dispatcher) apply(ctx, callCtx context.Context, m ir.Mutation) (ir.Outcome, string) {
	bo := d.policy.NewBackOff()
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := d.throttle.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				d.logger.Warn("throttle pause cancelled",
					"item", m.Item.String(),
					"mutation", m.Describe(),
					"reason", ir.ReasonCancelled)
				return outcomeFor(m, ir.OutcomeSkipped, ir.ReasonCancelled, attempt-1), ""
			}
			return d.failed(m, err, attempt), ""
		}

		pid, err := d.call(callCtx, m)
		switch {
		case err == nil:
			d.logger.Info("mutation applied",
				"id", shortID(m.ID),
				"item", m.Item.String(),
				"mutation", m.Describe(),
				"rule", m.Rule,
				"attempts", attempt,
				"reason", m.Reason)
			return outcomeFor(m, ir.OutcomeChanged, m.Reason, attempt), pid
		case errors.Is(err, platform.ErrNotModified):
			return outcomeFor(m, ir.OutcomeUnchanged, ir.ReasonAlreadyCurrent, attempt), pid
		}

		lastErr = err
		if !platform.IsRetryable(err) || attempt >= d.policy.MaxAttempts {
			return d.failed(m, lastErr, attempt), ""
		}

		delay := bo.NextBackOff()
		d.logger.Warn("mutation failed, retrying",
			"item", m.Item.String(),
			"mutation", m.Describe(),
			"attempt", attempt,
			"delay", delay,
			"status", platform.StatusCode(err),
			"reason", platform.Reason(err))
		if err := d.sleep(callCtx, delay); err != nil {
			return d.failed(m, err, attempt), ""
		}
	}
}

func (d *Dispatcher) failed(m ir.Mutation, err error, attempts int) ir.Outcome {
	o := outcomeFor(m, ir.OutcomeError, platform.Reason(err), attempts)
	o.ErrorCode = platform.StatusCode(err)
	o.ErrorMessage = err.Error()
	d.logger.Error("mutation failed",
		"item", m.Item.String(),
		"mutation", m.Describe(),
		"rule", m.Rule,
		"attempts", attempts,
		"status", o.ErrorCode,
		"reason", o.Reason,
		"error", err)
	return o
}

func (d *Dispatcher) call(ctx context.Context, m ir.Mutation) (string, error) {
	board := d.pctx.BoardID
	switch m.Field {
	case ir.FieldMembership:
		return d.platform.AdmitToBoard(ctx, board, m.ContentID)
	case ir.FieldStatus:
		option, ok := d.pctx.Status.Options[ir.Column(m.Value)]
		if !ok {
			return "", &platform.APIError{StatusCode: 404, Code: "NOT_FOUND", Message: fmt.Sprintf("no option for column %s", m.Value)}
		}
		return "", d.platform.SetSingleSelectField(ctx, board, m.ProjectItemID, d.pctx.Status.ID, option)
	case ir.FieldSprint:
		return "", d.platform.SetIterationField(ctx, board, m.ProjectItemID, d.pctx.Sprint.ID, m.Value)
	case ir.FieldAssignees:
		return "", d.platform.AddAssignees(ctx, m.Item.Repository, m.Item.Number, m.Logins)
	default:
		return "", fmt.Errorf("unknown field %q", m.Field)
	}
}

func outcomeFor(m ir.Mutation, status ir.OutcomeStatus, reason ir.Reason, attempts int) ir.Outcome {
	value := m.Value
	if m.Field == ir.FieldAssignees {
		value = fmt.Sprint(m.Logins)
	}
	return ir.Outcome{
		MutationID: m.ID,
		Item:       m.Item,
		Field:      m.Field,
		Value:      value,
		Rule:       m.Rule,
		Status:     status,
		Reason:     reason,
		Attempts:   attempts,
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
