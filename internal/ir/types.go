package ir

import (
	"fmt"
	"slices"
	"time"
)

// Kind is the content type of a board candidate.
type Kind string

const (
	KindPullRequest Kind = "PullRequest"
	KindIssue       Kind = "Issue"

	// KindLinkedIssue is synthetic: an issue reached through a pull request's
	// closing references. It is only evaluated against linked_issues rules.
	KindLinkedIssue Kind = "LinkedIssue"
)

// ValidKinds defines the trigger types a rule may name.
var ValidKinds = map[Kind]bool{
	KindPullRequest: true,
	KindIssue:       true,
	KindLinkedIssue: true,
}

// State is the platform state of an issue or pull request.
type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
	StateMerged State = "MERGED"
)

// Column is a value of the board's Status field.
// The zero value ColumnNone means the item is not on the board (or has no
// Status set).
type Column string

const (
	ColumnNone    Column = ""
	ColumnParked  Column = "Parked"
	ColumnNew     Column = "New"
	ColumnBacklog Column = "Backlog"
	ColumnNext    Column = "Next"
	ColumnActive  Column = "Active"
	ColumnWaiting Column = "Waiting"
	ColumnDone    Column = "Done"
)

// Columns lists the closed column enumeration in board order.
var Columns = []Column{
	ColumnParked, ColumnNew, ColumnBacklog, ColumnNext,
	ColumnActive, ColumnWaiting, ColumnDone,
}

// ParseColumn maps a rule-file column name to a Column.
// "None" maps to ColumnNone.
func ParseColumn(s string) (Column, bool) {
	if s == "None" {
		return ColumnNone, true
	}
	c := Column(s)
	if slices.Contains(Columns, c) {
		return c, true
	}
	return ColumnNone, false
}

// String returns the rule-file spelling, "None" for ColumnNone.
func (c Column) String() string {
	if c == ColumnNone {
		return "None"
	}
	return string(c)
}

// IssueRef identifies an issue closed by a pull request, with the issue
// state the platform returns alongside the reference.
type IssueRef struct {
	ContentID  string   `json:"content_id"`
	Number     int      `json:"number"`
	Repository string   `json:"repository"`
	State      State    `json:"state,omitempty"`
	Assignees  []string `json:"assignees,omitempty"`
}

// Item is an issue or pull request that is a candidate for board membership.
// ContentID is unique across a pass; every stage keys on it.
type Item struct {
	ContentID        string     `json:"content_id"`
	Number           int        `json:"number"`
	Repository       string     `json:"repository"`
	Kind             Kind       `json:"kind"`
	Author           string     `json:"author"`
	Assignees        []string   `json:"assignees"`
	State            State      `json:"state"`
	IsDraft          bool       `json:"is_draft,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ClosingIssueRefs []IssueRef `json:"closing_issue_refs,omitempty"`
}

// Key returns the reporting key of the item.
func (i Item) Key() ItemKey {
	return ItemKey{Kind: i.Kind, Number: i.Number, Repository: i.Repository}
}

// Merged reports whether the item is a merged pull request.
func (i Item) Merged() bool {
	return i.State == StateMerged
}

// Closed reports whether the item is no longer open. Merged pull requests
// are closed.
func (i Item) Closed() bool {
	return i.State == StateClosed || i.State == StateMerged
}

// ItemKey identifies an item in the status report.
type ItemKey struct {
	Kind       Kind   `json:"kind"`
	Number     int    `json:"number"`
	Repository string `json:"repository"`
}

// String renders the key as "org/repo#12 (PullRequest)".
func (k ItemKey) String() string {
	return fmt.Sprintf("%s#%d (%s)", k.Repository, k.Number, k.Kind)
}

// BoardItem is an item's projection onto the board.
type BoardItem struct {
	ProjectItemID string   `json:"project_item_id"`
	ContentID     string   `json:"content_id"`
	Column        Column   `json:"column"`
	Sprint        string   `json:"sprint,omitempty"` // iteration id, empty when unset
	Assignees     []string `json:"assignees,omitempty"`
}

// Iteration is one sprint window of the board's iteration field.
type Iteration struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	Duration  int    `json:"duration"`   // days
}

// Field is the board attribute a mutation writes.
type Field string

const (
	FieldMembership Field = "Membership"
	FieldStatus     Field = "Status"
	FieldSprint     Field = "Sprint"
	FieldAssignees  Field = "Assignees"
)

// Order returns the per-item application order of the field:
// Membership, Status, Sprint, Assignees.
func (f Field) Order() int {
	switch f {
	case FieldMembership:
		return 0
	case FieldStatus:
		return 1
	case FieldSprint:
		return 2
	case FieldAssignees:
		return 3
	default:
		return 4
	}
}

// RequiresMembership reports whether the field lives on the board item and
// therefore needs the item admitted first. Assignees are repository-level.
func (f Field) RequiresMembership() bool {
	return f == FieldStatus || f == FieldSprint
}

// Mutation is a single planned write against the board.
//
// ProjectItemID is empty until the item is admitted; the dispatcher fills it
// in from the admission result before applying field mutations.
type Mutation struct {
	ID            string   `json:"id"`
	Seq           int64    `json:"seq"`
	ContentID     string   `json:"content_id"`
	ProjectItemID string   `json:"project_item_id,omitempty"`
	Item          ItemKey  `json:"item"`
	Field         Field    `json:"field"`
	Value         string   `json:"value,omitempty"`  // column name or iteration id
	Logins        []string `json:"logins,omitempty"` // Assignees only
	Rule          string   `json:"rule"`
	Section       string   `json:"section"`
	Rationale     string   `json:"rationale"`
	Reason        Reason   `json:"reason"` // reason recorded when applied
}

// TargetKey is the deduplication key (item, field).
func (m Mutation) TargetKey() string {
	return m.ContentID + "/" + string(m.Field)
}

// Describe renders the mutation value for logs and reports.
func (m Mutation) Describe() string {
	switch m.Field {
	case FieldMembership:
		return "Admit"
	case FieldAssignees:
		return fmt.Sprintf("AddAssignee=%v", m.Logins)
	default:
		return fmt.Sprintf("Set%s=%s", m.Field, m.Value)
	}
}

// OutcomeStatus is the terminal state of one mutation.
type OutcomeStatus string

const (
	OutcomeChanged   OutcomeStatus = "changed"
	OutcomeUnchanged OutcomeStatus = "unchanged"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeError     OutcomeStatus = "error"
)

// Outcome is the recorded result of one mutation (or elided mutation).
type Outcome struct {
	MutationID   string        `json:"mutation_id,omitempty"`
	Item         ItemKey       `json:"item"`
	Field        Field         `json:"field,omitempty"`
	Value        string        `json:"value,omitempty"`
	Rule         string        `json:"rule,omitempty"`
	Status       OutcomeStatus `json:"status"`
	Reason       Reason        `json:"reason"`
	Attempts     int           `json:"attempts,omitempty"`
	ErrorCode    int           `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}
