package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
)

// Operation names used for call recording and scripted failures.
const (
	OpListBoardMembers   = "ListBoardMembers"
	OpListBoardFields    = "ListBoardFields"
	OpAdmitToBoard       = "AdmitToBoard"
	OpSetSingleSelect    = "SetSingleSelectField"
	OpSetIteration       = "SetIterationField"
	OpAddAssignees       = "AddAssignees"
	OpListUpdatedItems   = "ListUpdatedItems"
	OpListAssignedItems  = "ListAssignedItems"
	OpListClosingRefs    = "ListClosingIssueReferences"
	OpRateLimitRemaining = "RateLimitRemaining"
)

// Fixed field and option ids of a FakeBoard.
const (
	StatusFieldID = "F_status"
	SprintFieldID = "F_sprint"
)

// Call is one recorded platform call.
type Call struct {
	Op      string
	Subject string // content id, project item id, repo#number, repo or login
	Value   string
}

// FakeBoard is an in-memory platform.Platform. It models a board with a
// Status single-select field and a Sprint iteration field, repository
// items and closing references, and lets tests script failures per
// operation.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeBoard struct {
	mu sync.Mutex

	boardID    string
	iterations []ir.Iteration
	pageSize   int

	members   []*platform.BoardMember
	byContent map[string]*platform.BoardMember

	repoItems map[string][]ir.Item          // repo -> items
	closing   map[string][]ir.IssueRef      // pr content id -> refs
	failures  map[string][]error            // op -> queued errors
	subjectFx map[string]map[string][]error // op -> subject -> queued errors

	rate  platform.RateLimit
	calls []Call
	seq   int
}

var _ platform.Platform = (*FakeBoard)(nil)

// NewFakeBoard creates an empty board with a Status field offering every
// column and a Sprint field with no iterations.
func NewFakeBoard(boardID string) *FakeBoard {
	return &FakeBoard{
		boardID:   boardID,
		pageSize:  50,
		byContent: make(map[string]*platform.BoardMember),
		repoItems: make(map[string][]ir.Item),
		closing:   make(map[string][]ir.IssueRef),
		failures:  make(map[string][]error),
		subjectFx: make(map[string]map[string][]error),
		rate:      platform.RateLimit{Remaining: 5000},
	}
}

// OptionID returns the fake option id of a column.
func OptionID(c ir.Column) string {
	return "opt_" + string(c)
}

// SetIterations replaces the Sprint field's iterations.
func (b *FakeBoard) SetIterations(its ...ir.Iteration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.iterations = slices.Clone(its)
}

// SetPageSize sets the ListBoardMembers page size.
func (b *FakeBoard) SetPageSize(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pageSize = n
}

// SetRateLimit sets the budget RateLimitRemaining reports.
func (b *FakeBoard) SetRateLimit(rl platform.RateLimit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = rl
}

// AddMember puts an item on the board.
func (b *FakeBoard) AddMember(item ir.Item, column ir.Column, sprintID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.admitLocked(item.ContentID, item.Kind, item.Number, item.Repository)
	if column != ir.ColumnNone {
		m.SingleSelect["Status"] = string(column)
	}
	if sprintID != "" {
		m.Iteration["Sprint"] = sprintID
	}
	m.Assignees = slices.Clone(item.Assignees)
	return m.ProjectItemID
}

// AddItem makes an issue or pull request visible in its repository.
func (b *FakeBoard) AddItem(item ir.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.repoItems[item.Repository] = append(b.repoItems[item.Repository], item)
}

// SetClosingRefs sets the issues a pull request closes.
func (b *FakeBoard) SetClosingRefs(prContentID string, refs ...ir.IssueRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closing[prContentID] = slices.Clone(refs)
}

// Fail queues errors returned by the next calls of op, one per call.
func (b *FakeBoard) Fail(op string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], errs...)
}

// FailFor queues errors for calls of op about one subject only.
func (b *FakeBoard) FailFor(op, subject string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subjectFx[op] == nil {
		b.subjectFx[op] = make(map[string][]error)
	}
	b.subjectFx[op][subject] = append(b.subjectFx[op][subject], errs...)
}

// Member returns the board member for a content id.
func (b *FakeBoard) Member(contentID string) (platform.BoardMember, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.byContent[contentID]
	if !ok {
		return platform.BoardMember{}, false
	}
	return *m, true
}

// Item returns the repository item with content id.
func (b *FakeBoard) Item(contentID string) (ir.Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, items := range b.repoItems {
		for _, it := range items {
			if it.ContentID == contentID {
				return it, true
			}
		}
	}
	return ir.Item{}, false
}

// Calls returns every recorded call in order.
func (b *FakeBoard) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// Writes returns the recorded mutating calls.
func (b *FakeBoard) Writes() []Call {
	var out []Call
	for _, c := range b.Calls() {
		switch c.Op {
		case OpAdmitToBoard, OpSetSingleSelect, OpSetIteration, OpAddAssignees:
			out = append(out, c)
		}
	}
	return out
}

// CountCalls returns how many calls of op were made.
func (b *FakeBoard) CountCalls(op string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// record logs the call and pops a scripted failure. Callers hold mu.
func (b *FakeBoard) record(op, subject, value string) error {
	b.calls = append(b.calls, Call{Op: op, Subject: subject, Value: value})
	if q := b.subjectFx[op][subject]; len(q) > 0 {
		b.subjectFx[op][subject] = q[1:]
		return q[0]
	}
	if q := b.failures[op]; len(q) > 0 {
		b.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (b *FakeBoard) admitLocked(contentID string, kind ir.Kind, number int, repo string) *platform.BoardMember {
	if m, ok := b.byContent[contentID]; ok {
		return m
	}
	b.seq++
	m := &platform.BoardMember{
		ProjectItemID: fmt.Sprintf("PVTI_%d", b.seq),
		ContentID:     contentID,
		Kind:          kind,
		Number:        number,
		Repository:    repo,
		SingleSelect:  make(map[string]string),
		Iteration:     make(map[string]string),
	}
	b.members = append(b.members, m)
	b.byContent[contentID] = m
	return m
}

func (b *FakeBoard) memberByItemID(projectItemID string) *platform.BoardMember {
	for _, m := range b.members {
		if m.ProjectItemID == projectItemID {
			return m
		}
	}
	return nil
}

func notFound(format string, args ...any) error {
	return &platform.APIError{StatusCode: 404, Code: "NOT_FOUND", Message: fmt.Sprintf(format, args...)}
}

func (b *FakeBoard) ListBoardMembers(ctx context.Context, boardID, cursor string) (platform.MemberPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpListBoardMembers, boardID, cursor); err != nil {
		return platform.MemberPage{}, err
	}
	if boardID != b.boardID {
		return platform.MemberPage{}, notFound("board %s", boardID)
	}

	start := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "cursor-%d", &start); err != nil {
			return platform.MemberPage{}, &platform.APIError{StatusCode: 422, Message: "bad cursor"}
		}
	}
	end := min(start+b.pageSize, len(b.members))

	var page platform.MemberPage
	for _, m := range b.members[start:end] {
		cp := *m
		cp.Assignees = slices.Clone(m.Assignees)
		cp.SingleSelect = copyMap(m.SingleSelect)
		cp.Iteration = copyMap(m.Iteration)
		page.Members = append(page.Members, cp)
	}
	if end < len(b.members) {
		page.HasNext = true
		page.NextCursor = fmt.Sprintf("cursor-%d", end)
	}
	return page, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (b *FakeBoard) ListBoardFields(ctx context.Context, boardID string) ([]platform.BoardField, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpListBoardFields, boardID, ""); err != nil {
		return nil, err
	}
	if boardID != b.boardID {
		return nil, notFound("board %s", boardID)
	}

	status := platform.BoardField{ID: StatusFieldID, Name: "Status", Kind: platform.FieldKindSingleSelect}
	for _, c := range ir.Columns {
		status.Options = append(status.Options, platform.FieldOption{ID: OptionID(c), Name: string(c)})
	}
	return []platform.BoardField{
		{ID: "F_title", Name: "Title", Kind: platform.FieldKindOther},
		status,
		{ID: SprintFieldID, Name: "Sprint", Kind: platform.FieldKindIteration, Iterations: slices.Clone(b.iterations)},
	}, nil
}

func (b *FakeBoard) AdmitToBoard(ctx context.Context, boardID, contentID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpAdmitToBoard, contentID, ""); err != nil {
		return "", err
	}

	kind, number, repo := ir.KindIssue, 0, ""
	for _, items := range b.repoItems {
		for _, it := range items {
			if it.ContentID == contentID {
				kind, number, repo = it.Kind, it.Number, it.Repository
			}
		}
	}
	return b.admitLocked(contentID, kind, number, repo).ProjectItemID, nil
}

func (b *FakeBoard) SetSingleSelectField(ctx context.Context, boardID, projectItemID, fieldID, optionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpSetSingleSelect, projectItemID, optionID); err != nil {
		return err
	}
	m := b.memberByItemID(projectItemID)
	if m == nil || fieldID != StatusFieldID {
		return notFound("item %s field %s", projectItemID, fieldID)
	}
	for _, c := range ir.Columns {
		if OptionID(c) == optionID {
			if m.SingleSelect["Status"] == string(c) {
				return platform.ErrNotModified
			}
			m.SingleSelect["Status"] = string(c)
			return nil
		}
	}
	return notFound("option %s", optionID)
}

func (b *FakeBoard) SetIterationField(ctx context.Context, boardID, projectItemID, fieldID, iterationID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpSetIteration, projectItemID, iterationID); err != nil {
		return err
	}
	m := b.memberByItemID(projectItemID)
	if m == nil || fieldID != SprintFieldID {
		return notFound("item %s field %s", projectItemID, fieldID)
	}
	if m.Iteration["Sprint"] == iterationID {
		return platform.ErrNotModified
	}
	m.Iteration["Sprint"] = iterationID
	return nil
}

func (b *FakeBoard) AddAssignees(ctx context.Context, repo string, number int, logins []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	subject := fmt.Sprintf("%s#%d", repo, number)
	if err := b.record(OpAddAssignees, subject, fmt.Sprint(logins)); err != nil {
		return err
	}

	found := false
	for i, it := range b.repoItems[repo] {
		if it.Number == number {
			b.repoItems[repo][i].Assignees = union(it.Assignees, logins)
			found = true
		}
	}
	for _, m := range b.members {
		if m.Repository == repo && m.Number == number {
			m.Assignees = union(m.Assignees, logins)
			found = true
		}
	}
	if !found {
		return notFound("issue %s", subject)
	}
	return nil
}

func union(have, add []string) []string {
	out := slices.Clone(have)
	for _, l := range add {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func (b *FakeBoard) ListUpdatedItems(ctx context.Context, repo string, since time.Time) ([]ir.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpListUpdatedItems, repo, ""); err != nil {
		return nil, err
	}
	var out []ir.Item
	for _, it := range b.repoItems[repo] {
		if !it.UpdatedAt.Before(since) {
			out = append(out, cloneItem(it))
		}
	}
	return out, nil
}

func (b *FakeBoard) ListAssignedItems(ctx context.Context, org, login string, since time.Time) ([]ir.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpListAssignedItems, login, org); err != nil {
		return nil, err
	}
	var out []ir.Item
	repos := make([]string, 0, len(b.repoItems))
	for repo := range b.repoItems {
		repos = append(repos, repo)
	}
	slices.Sort(repos)
	for _, repo := range repos {
		for _, it := range b.repoItems[repo] {
			if slices.Contains(it.Assignees, login) && !it.UpdatedAt.Before(since) {
				out = append(out, cloneItem(it))
			}
		}
	}
	return out, nil
}

func cloneItem(it ir.Item) ir.Item {
	it.Assignees = slices.Clone(it.Assignees)
	it.ClosingIssueRefs = slices.Clone(it.ClosingIssueRefs)
	return it
}

func (b *FakeBoard) ListClosingIssueReferences(ctx context.Context, prContentID string) ([]ir.IssueRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpListClosingRefs, prContentID, ""); err != nil {
		return nil, err
	}
	return slices.Clone(b.closing[prContentID]), nil
}

func (b *FakeBoard) RateLimitRemaining(ctx context.Context) (platform.RateLimit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpRateLimitRemaining, "", ""); err != nil {
		return platform.RateLimit{}, err
	}
	return b.rate, nil
}
