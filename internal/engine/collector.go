package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
)

// collectConcurrency bounds concurrent activity reads.
const collectConcurrency = 4

// Warning is a recoverable condition reported at the end of a pass.
type Warning struct {
	Stage   Stage     `json:"stage"`
	Reason  ir.Reason `json:"reason"`
	Subject string    `json:"subject,omitempty"`
	Message string    `json:"message"`
}

type source struct {
	label string
	fetch func(ctx context.Context) ([]ir.Item, error)
}

type sourceResult struct {
	items []ir.Item
	err   error
}

// Collect gathers candidate items updated since pctx.Since from every
// monitored repository and every monitored user's assignments, merges them
// by content id (latest UpdatedAt wins) and enriches pull requests with
// their closing issue references.
//
// A failed source is a warning. Only when every source fails and nothing
// was collected does Collect return a *PassError.
func Collect(ctx context.Context, p platform.Platform, pctx *PassContext, logger *slog.Logger) ([]ir.Item, []Warning, error) {
	var sources []source
	for _, repo := range pctx.Scope.Repos {
		sources = append(sources, source{
			label: repo,
			fetch: func(ctx context.Context) ([]ir.Item, error) {
				return p.ListUpdatedItems(ctx, repo, pctx.Since)
			},
		})
	}
	for _, login := range pctx.Scope.Users {
		sources = append(sources, source{
			label: "assigned:" + login,
			fetch: func(ctx context.Context) ([]ir.Item, error) {
				return p.ListAssignedItems(ctx, pctx.Scope.Organization, login, pctx.Since)
			},
		})
	}

	results := make([]sourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			items, err := src.fetch(gctx)
			results[i] = sourceResult{items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var (
		warnings  []Warning
		succeeded int
		merged    = make(map[string]ir.Item)
	)
	for i, res := range results {
		if res.err != nil {
			logger.Warn("activity source failed",
				"source", sources[i].label,
				"reason", ir.ReasonFetchFailed,
				"error", res.err)
			warnings = append(warnings, Warning{
				Stage:   StageActivity,
				Reason:  ir.ReasonFetchFailed,
				Subject: sources[i].label,
				Message: res.err.Error(),
			})
			continue
		}
		succeeded++
		for _, it := range res.items {
			if prev, ok := merged[it.ContentID]; ok && !it.UpdatedAt.After(prev.UpdatedAt) {
				continue
			}
			merged[it.ContentID] = it
		}
	}

	if succeeded == 0 && len(sources) > 0 {
		return nil, warnings, &PassError{
			Stage:   StageActivity,
			Code:    ErrCodeActivityFailed,
			Message: fmt.Sprintf("all %d activity sources failed", len(sources)),
		}
	}

	items := make([]ir.Item, 0, len(merged))
	for _, it := range merged {
		items = append(items, it)
	}
	sortItems(items)

	warnings = append(warnings, enrich(ctx, p, items, logger)...)

	logger.Debug("activity collected",
		"sources", len(sources),
		"failed", len(sources)-succeeded,
		"items", len(items))
	return items, warnings, nil
}

// enrich fills ClosingIssueRefs of every pull request in place.
func enrich(ctx context.Context, p platform.Platform, items []ir.Item, logger *slog.Logger) []Warning {
	errs := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectConcurrency)
	for i := range items {
		if items[i].Kind != ir.KindPullRequest {
			continue
		}
		g.Go(func() error {
			refs, err := p.ListClosingIssueReferences(gctx, items[i].ContentID)
			if err != nil {
				errs[i] = err
				return nil
			}
			items[i].ClosingIssueRefs = refs
			return nil
		})
	}
	_ = g.Wait()

	var warnings []Warning
	for i, err := range errs {
		if err == nil {
			continue
		}
		subject := items[i].Key().String()
		logger.Warn("closing references unavailable",
			"item", subject,
			"reason", ir.ReasonFetchFailed,
			"error", err)
		warnings = append(warnings, Warning{
			Stage:   StageActivity,
			Reason:  ir.ReasonFetchFailed,
			Subject: subject,
			Message: err.Error(),
		})
	}
	return warnings
}

// sortItems orders items by repository, then number, then kind.
func sortItems(items []ir.Item) {
	slices.SortFunc(items, func(a, b ir.Item) int {
		return cmp.Or(
			cmp.Compare(a.Repository, b.Repository),
			cmp.Compare(a.Number, b.Number),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
}
