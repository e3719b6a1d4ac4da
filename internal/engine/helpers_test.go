package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/rules"
	"github.com/roach88/boardsync/internal/testutil"
)

const testBoardID = "PVT_kwDOA1b2c3"

var (
	testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	pastSprint    = ir.Iteration{ID: "IT_41", Title: "Sprint 41", StartDate: "2026-09-28", Duration: 14}
	currentSprint = ir.Iteration{ID: "IT_42", Title: "Sprint 42", StartDate: "2026-10-12", Duration: 14}
)

// loadRules parses testdata/rules.yaml after applying old/new replacement
// pairs to its text.
func loadRules(t *testing.T, replacements ...string) *rules.RuleSet {
	t.Helper()
	data, err := os.ReadFile("testdata/rules.yaml")
	require.NoError(t, err)

	src := string(data)
	for i := 0; i+1 < len(replacements); i += 2 {
		require.Contains(t, src, replacements[i])
		src = strings.Replace(src, replacements[i], replacements[i+1], 1)
	}
	rs, err := rules.Parse("rules.yaml", []byte(src))
	require.NoError(t, err)
	return rs
}

func lookupAlice(name string) (string, bool) {
	if name == "GITHUB_AUTHOR" {
		return "alice", true
	}
	return "", false
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	board *testutil.FakeBoard
	clock *testutil.FakeClock
	rules *rules.RuleSet
}

func newFixture(t *testing.T, replacements ...string) *fixture {
	t.Helper()
	board := testutil.NewFakeBoard(testBoardID)
	board.SetIterations(pastSprint, currentSprint)
	return &fixture{
		board: board,
		clock: testutil.NewFakeClock(testNow),
		rules: loadRules(t, replacements...),
	}
}

func (f *fixture) engine(opts ...Option) *Engine {
	base := []Option{
		WithLookup(lookupAlice),
		WithNow(f.clock.Now),
		WithSleep(f.clock.Sleep),
		WithPassIDs(NewFixedGenerator("pass-1", "pass-2", "pass-3", "pass-4")),
		WithLogger(discardLogger()),
	}
	return New(f.board, f.rules, append(base, opts...)...)
}

func pullRequest(repo string, number int, author string, state ir.State, assignees ...string) ir.Item {
	return ir.Item{
		ContentID:  fmt.Sprintf("PR_%s_%d", strings.ReplaceAll(repo, "/", "_"), number),
		Number:     number,
		Repository: repo,
		Kind:       ir.KindPullRequest,
		Author:     author,
		Assignees:  assignees,
		State:      state,
		UpdatedAt:  testNow.Add(-time.Hour),
	}
}

func issue(repo string, number int, state ir.State, assignees ...string) ir.Item {
	return ir.Item{
		ContentID:  fmt.Sprintf("I_%s_%d", strings.ReplaceAll(repo, "/", "_"), number),
		Number:     number,
		Repository: repo,
		Kind:       ir.KindIssue,
		Author:     "bob",
		Assignees:  assignees,
		State:      state,
		UpdatedAt:  testNow.Add(-2 * time.Hour),
	}
}

func ref(it ir.Item) ir.IssueRef {
	return ir.IssueRef{
		ContentID:  it.ContentID,
		Number:     it.Number,
		Repository: it.Repository,
		State:      it.State,
		Assignees:  it.Assignees,
	}
}

// newPassContext builds a context matching a FakeBoard's fields.
func newPassContext(rs *rules.RuleSet, current *ir.Iteration) *PassContext {
	options := make(map[ir.Column]string)
	for _, c := range ir.Columns {
		options[c] = testutil.OptionID(c)
	}
	return &PassContext{
		PassID:  "pass-1",
		BoardID: testBoardID,
		Rules:   rs,
		Scope: Scope{
			Organization: "org",
			Users:        []string{"alice"},
			Repos:        []string{"org/r1", "org/r2"},
		},
		Now:    testNow,
		Since:  testNow.Add(-48 * time.Hour),
		Status: StatusField{ID: testutil.StatusFieldID, Name: "Status", Options: options},
		Sprint: SprintField{
			ID:         testutil.SprintFieldID,
			Name:       "Sprint",
			Iterations: []ir.Iteration{pastSprint, currentSprint},
		},
		CurrentSprint: current,
		Technical:     rs.Technical(),
	}
}

func describe(ms []ir.Mutation) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Describe()
	}
	return out
}
