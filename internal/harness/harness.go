package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/boardsync/internal/engine"
	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
	"github.com/roach88/boardsync/internal/rules"
	"github.com/roach88/boardsync/internal/testutil"
)

// PassID is the fixed pass id of every scenario.
const PassID = "scenario-pass"

// Result is what a scenario produced.
type Result struct {
	Scenario *Scenario
	Plan     *engine.PlanResult // plan mode
	Report   *engine.Report     // run mode
	Board    *testutil.FakeBoard
	Clock    *testutil.FakeClock

	loc *time.Location
}

// Mutations returns the planned mutations in either mode.
func (r *Result) Mutations() []ir.Mutation {
	if r.Report != nil {
		return r.Report.Mutations
	}
	if r.Plan != nil {
		return r.Plan.Plan.Mutations
	}
	return nil
}

// Outcomes returns the pre-dispatch outcomes in plan mode and every
// outcome in run mode.
func (r *Result) Outcomes() []ir.Outcome {
	if r.Report != nil {
		return r.Report.Outcomes
	}
	if r.Plan != nil {
		return r.Plan.Plan.Outcomes
	}
	return nil
}

// Warnings returns the pass warnings.
func (r *Result) Warnings() []engine.Warning {
	if r.Report != nil {
		return r.Report.Warnings
	}
	if r.Plan != nil {
		return r.Plan.Warnings
	}
	return nil
}

// Describe renders a mutation the way scenarios spell it.
func (r *Result) Describe(m ir.Mutation) string {
	if m.Field == ir.FieldSprint && r.currentSprintID() == m.Value {
		return "SetSprint=" + rules.SprintCurrent
	}
	return m.Describe()
}

func (r *Result) currentSprintID() string {
	now, _ := time.Parse(time.RFC3339, r.Scenario.Now)
	its := make([]ir.Iteration, len(r.Scenario.Iterations))
	for i, it := range r.Scenario.Iterations {
		its[i] = ir.Iteration{ID: it.ID, Title: it.Title, StartDate: it.Start, Duration: it.Days}
	}
	it, ok := engine.CurrentIteration(its, now, r.loc)
	if !ok {
		return ""
	}
	return it.ID
}

// Run executes a scenario against a fresh in-memory board.
func Run(s *Scenario) (*Result, error) {
	rs, err := rules.Load(s.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	now, err := time.Parse(time.RFC3339, s.Now)
	if err != nil {
		return nil, fmt.Errorf("invalid now: %w", err)
	}

	board := buildBoard(s, rs.ProjectID(), now)
	clock := testutil.NewFakeClock(now)
	eng := engine.New(board, rs,
		engine.WithLookup(func(name string) (string, bool) {
			v, ok := s.Env[name]
			return v, ok
		}),
		engine.WithNow(clock.Now),
		engine.WithSleep(clock.Sleep),
		engine.WithPassIDs(engine.NewFixedGenerator(PassID)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result := &Result{Scenario: s, Board: board, Clock: clock, loc: rs.Timezone()}
	ctx := context.Background()
	if s.Mode == ModeRun {
		result.Report, err = eng.Run(ctx)
	} else {
		result.Plan, err = eng.Plan(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return result, nil
}

func buildBoard(s *Scenario, boardID string, now time.Time) *testutil.FakeBoard {
	board := testutil.NewFakeBoard(boardID)

	its := make([]ir.Iteration, len(s.Iterations))
	for i, it := range s.Iterations {
		its[i] = ir.Iteration{ID: it.ID, Title: it.Title, StartDate: it.Start, Duration: it.Days}
	}
	board.SetIterations(its...)

	items := make(map[string]ir.Item, len(s.Items))
	for _, spec := range s.Items {
		items[spec.ID] = toItem(spec, now)
	}
	for _, spec := range s.Items {
		it := items[spec.ID]
		var refs []ir.IssueRef
		for _, c := range spec.Closes {
			target := items[c]
			refs = append(refs, ir.IssueRef{
				ContentID:  target.ContentID,
				Number:     target.Number,
				Repository: target.Repository,
				State:      target.State,
				Assignees:  target.Assignees,
			})
		}
		if len(refs) > 0 {
			board.SetClosingRefs(it.ContentID, refs...)
		}
		if !spec.Unlisted {
			board.AddItem(it)
		}
	}

	for _, m := range s.Board {
		column, _ := ir.ParseColumn(m.Column)
		board.AddMember(items[m.Item], column, m.Sprint)
	}

	for _, f := range s.Failures {
		times := max(1, f.Times)
		errs := make([]error, times)
		for i := range errs {
			errs[i] = &platform.APIError{StatusCode: f.Status, Message: f.Message}
		}
		if f.Subject != "" {
			board.FailFor(f.Op, f.Subject, errs...)
		} else {
			board.Fail(f.Op, errs...)
		}
	}
	return board
}

func toItem(spec ItemSpec, now time.Time) ir.Item {
	hours := spec.UpdatedHoursAgo
	if hours == 0 {
		hours = 1
	}
	return ir.Item{
		ContentID:  spec.ID,
		Number:     spec.Number,
		Repository: spec.Repo,
		Kind:       ir.Kind(spec.Kind),
		Author:     spec.Author,
		Assignees:  spec.Assignees,
		State:      ir.State(strings.ToUpper(spec.State)),
		IsDraft:    spec.Draft,
		UpdatedAt:  now.Add(-time.Duration(hours) * time.Hour),
	}
}
