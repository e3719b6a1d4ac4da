package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
	"github.com/roach88/boardsync/internal/rules"
)

// Snapshot is the board state at pass start, indexed by content id.
// It is read-only once loaded.
type Snapshot struct {
	items map[string]ir.BoardItem
	order []string
}

// NewSnapshot builds a snapshot from board items.
func NewSnapshot(items ...ir.BoardItem) *Snapshot {
	s := &Snapshot{items: make(map[string]ir.BoardItem, len(items))}
	for _, bi := range items {
		s.put(bi)
	}
	return s
}

func (s *Snapshot) put(bi ir.BoardItem) {
	if _, ok := s.items[bi.ContentID]; !ok {
		s.order = append(s.order, bi.ContentID)
	}
	s.items[bi.ContentID] = bi
}

// Get returns the board item for a content id.
func (s *Snapshot) Get(contentID string) (ir.BoardItem, bool) {
	bi, ok := s.items[contentID]
	if ok {
		bi.Assignees = slices.Clone(bi.Assignees)
	}
	return bi, ok
}

// Len returns the number of board members.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// ContentIDs returns member content ids in board order.
func (s *Snapshot) ContentIDs() []string {
	return slices.Clone(s.order)
}

// LoadFields resolves the Status and Sprint fields by name.
//
// The Status field must exist and offer an option for every column a
// set_column rule targets. The Sprint field is required only when a rule
// sets the sprint.
func LoadFields(ctx context.Context, p platform.Platform, rs *rules.RuleSet) (StatusField, SprintField, error) {
	fields, err := p.ListBoardFields(ctx, rs.ProjectID())
	if err != nil {
		return StatusField{}, SprintField{}, &PassError{
			Stage:   StageFields,
			Code:    ErrCodeSnapshotFailed,
			Message: "list board fields",
			Err:     err,
		}
	}

	var (
		status      StatusField
		sprint      SprintField
		statusFound bool
	)
	for _, f := range fields {
		switch {
		case f.Name == rs.StatusField() && f.Kind == platform.FieldKindSingleSelect:
			status = StatusField{ID: f.ID, Name: f.Name, Options: make(map[ir.Column]string, len(f.Options))}
			for _, o := range f.Options {
				status.Options[ir.Column(o.Name)] = o.ID
			}
			statusFound = true
		case f.Name == rs.SprintField() && f.Kind == platform.FieldKindIteration:
			sprint = SprintField{ID: f.ID, Name: f.Name, Iterations: slices.Clone(f.Iterations)}
		}
	}

	if !statusFound {
		return StatusField{}, SprintField{}, &PassError{
			Stage:   StageFields,
			Code:    ErrCodeFieldMissing,
			Message: fmt.Sprintf("single-select field %q not found on board", rs.StatusField()),
		}
	}
	if sprint.ID == "" && rs.UsesSprint() {
		return StatusField{}, SprintField{}, &PassError{
			Stage:   StageFields,
			Code:    ErrCodeFieldMissing,
			Message: fmt.Sprintf("iteration field %q not found on board", rs.SprintField()),
		}
	}
	for _, r := range rs.Rules(rules.SectionColumns) {
		if r.Action != rules.ActionSetColumn {
			continue
		}
		if _, ok := status.Options[r.Target]; !ok {
			return StatusField{}, SprintField{}, &PassError{
				Stage:   StageFields,
				Code:    ErrCodeOptionMissing,
				Message: fmt.Sprintf("rule %s targets column %s which field %q does not offer", r.Name, r.Target, status.Name),
			}
		}
	}
	return status, sprint, nil
}

// LoadSnapshot reads every board member, following pages until the
// platform reports no more. Any failure is fatal.
func LoadSnapshot(ctx context.Context, p platform.Platform, boardID string, status StatusField, sprint SprintField, logger *slog.Logger) (*Snapshot, error) {
	snap := NewSnapshot()
	cursor := ""
	pages := 0
	for {
		page, err := p.ListBoardMembers(ctx, boardID, cursor)
		if err != nil {
			return nil, &PassError{
				Stage:   StageSnapshot,
				Code:    ErrCodeSnapshotFailed,
				Message: fmt.Sprintf("list board members (page %d)", pages+1),
				Err:     err,
			}
		}
		pages++
		for _, m := range page.Members {
			snap.put(ir.BoardItem{
				ProjectItemID: m.ProjectItemID,
				ContentID:     m.ContentID,
				Column:        ir.Column(m.SingleSelect[status.Name]),
				Sprint:        m.Iteration[sprint.Name],
				Assignees:     slices.Clone(m.Assignees),
			})
		}
		if !page.HasNext || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	logger.Debug("board snapshot loaded", "members", snap.Len(), "pages", pages)
	return snap, nil
}
