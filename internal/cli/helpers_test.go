package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/roach88/boardsync/internal/engine"
	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/testutil"
)

const testRules = "testdata/rules.yaml"

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// newTestBoard returns a board with a current sprint and one open pull
// request by alice that is not on the board yet.
func newTestBoard(assignees ...string) *testutil.FakeBoard {
	board := testutil.NewFakeBoard("PVT_kwDOA1b2c3")
	board.SetIterations(ir.Iteration{ID: "IT_42", Title: "Sprint 42", StartDate: "2026-10-12", Duration: 14})
	board.AddItem(ir.Item{
		ContentID:  "PR_1",
		Number:     1,
		Repository: "org/r1",
		Kind:       ir.KindPullRequest,
		Author:     "alice",
		Assignees:  assignees,
		State:      ir.StateOpen,
		UpdatedAt:  testNow.Add(-time.Hour),
	})
	return board
}

// execute runs the root command against board with deterministic time
// and pass ids.
func execute(t *testing.T, board *testutil.FakeBoard, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	clock := testutil.NewFakeClock(testNow)
	opts := &RootOptions{
		Config: NewConfig(),
		EngineOptions: []engine.Option{
			engine.WithNow(clock.Now),
			engine.WithSleep(clock.Sleep),
			engine.WithPassIDs(engine.NewFixedGenerator("pass-1")),
		},
	}
	if board != nil {
		opts.Platform = board
	}

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}
