// Package platform defines the capability contract the reconciliation
// engine needs from the hosting platform, along with the error type every
// implementation returns and a pass-local entity-tag cache.
//
// The engine depends only on this package. internal/platform/github is the
// production implementation; internal/testutil provides an in-memory one.
package platform

import (
	"context"
	"time"

	"github.com/roach88/boardsync/internal/ir"
)

// Platform is the transport collaborator. Every method may fail with an
// *APIError carrying the platform status code.
type Platform interface {
	// ListBoardMembers returns one page of board members. An empty cursor
	// requests the first page.
	ListBoardMembers(ctx context.Context, boardID, cursor string) (MemberPage, error)

	// ListBoardFields returns field metadata, including single-select
	// options and iteration configuration.
	ListBoardFields(ctx context.Context, boardID string) ([]BoardField, error)

	// AdmitToBoard adds content to the board and returns its project item id.
	AdmitToBoard(ctx context.Context, boardID, contentID string) (string, error)

	SetSingleSelectField(ctx context.Context, boardID, projectItemID, fieldID, optionID string) error
	SetIterationField(ctx context.Context, boardID, projectItemID, fieldID, iterationID string) error

	// AddAssignees adds logins to an issue or pull request. Existing
	// assignees are never removed.
	AddAssignees(ctx context.Context, repo string, number int, logins []string) error

	// ListUpdatedItems returns issues and pull requests in repo updated at
	// or after since.
	ListUpdatedItems(ctx context.Context, repo string, since time.Time) ([]ir.Item, error)

	// ListAssignedItems returns issues and pull requests in org assigned to
	// login and updated at or after since.
	ListAssignedItems(ctx context.Context, org, login string, since time.Time) ([]ir.Item, error)

	// ListClosingIssueReferences returns the issues a pull request closes.
	ListClosingIssueReferences(ctx context.Context, prContentID string) ([]ir.IssueRef, error)

	RateLimitRemaining(ctx context.Context) (RateLimit, error)
}

// MemberPage is one page of ListBoardMembers.
type MemberPage struct {
	Members    []BoardMember
	NextCursor string
	HasNext    bool
}

// BoardMember is a board item as the platform reports it. Field values are
// keyed by field name; the snapshot loader maps them onto ir.BoardItem
// using the field names configured for the pass.
type BoardMember struct {
	ProjectItemID string
	ContentID     string
	Kind          ir.Kind
	Number        int
	Repository    string
	Assignees     []string

	// SingleSelect maps field name to selected option name.
	SingleSelect map[string]string
	// Iteration maps field name to iteration id.
	Iteration map[string]string
}

// FieldKind is the data type of a board field.
type FieldKind string

const (
	FieldKindSingleSelect FieldKind = "SINGLE_SELECT"
	FieldKindIteration    FieldKind = "ITERATION"
	FieldKindOther        FieldKind = "OTHER"
)

// BoardField is field metadata from ListBoardFields.
type BoardField struct {
	ID         string
	Name       string
	Kind       FieldKind
	Options    []FieldOption  // single-select only
	Iterations []ir.Iteration // iteration only, active and completed
}

// FieldOption is one single-select option.
type FieldOption struct {
	ID   string
	Name string
}

// RateLimit is the remaining request budget.
type RateLimit struct {
	Remaining int
	Reset     time.Time
}
