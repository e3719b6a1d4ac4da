package engine

import (
	"time"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/rules"
)

// PassContext carries everything a pass resolves up front. It replaces
// process-wide state: every stage receives it explicitly and none of them
// modify it.
type PassContext struct {
	PassID  string
	BoardID string
	Rules   *rules.RuleSet
	Scope   Scope

	// Now is the pass start time; Since is Now minus the update window.
	Now   time.Time
	Since time.Time

	Status StatusField
	Sprint SprintField

	// CurrentSprint is nil when no iteration contains today.
	CurrentSprint *ir.Iteration

	Technical rules.Technical
}

// StatusField is the resolved single-select column field.
type StatusField struct {
	ID      string
	Name    string
	Options map[ir.Column]string // column -> option id
}

// SprintField is the resolved iteration field. ID is empty when the board
// has no such field and no rule needs it.
type SprintField struct {
	ID         string
	Name       string
	Iterations []ir.Iteration
}

// Iteration returns the iteration with id.
func (f SprintField) Iteration(id string) (ir.Iteration, bool) {
	for _, it := range f.Iterations {
		if it.ID == id {
			return it, true
		}
	}
	return ir.Iteration{}, false
}
