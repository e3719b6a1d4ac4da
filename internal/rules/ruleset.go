package rules

import (
	"slices"
	"time"

	"github.com/roach88/boardsync/internal/expr"
	"github.com/roach88/boardsync/internal/ir"
)

// Section names a rule section. Sections are evaluated in Sections order.
type Section string

const (
	SectionBoardItems   Section = "board_items"
	SectionColumns      Section = "columns"
	SectionSprints      Section = "sprints"
	SectionLinkedIssues Section = "linked_issues"
	SectionAssignees    Section = "assignees"
)

// Sections is the fixed evaluation order.
var Sections = []Section{
	SectionBoardItems, SectionColumns, SectionSprints, SectionLinkedIssues, SectionAssignees,
}

// Action is a rule's effect.
type Action string

const (
	ActionAddToBoard       Action = "add_to_board"
	ActionSetColumn        Action = "set_column"
	ActionSetSprint        Action = "set_sprint"
	ActionInheritColumn    Action = "inherit_column"
	ActionInheritAssignees Action = "inherit_assignees"
	ActionAddAssignee      Action = "add_assignee"
)

// Field returns the board field the action writes.
func (a Action) Field() ir.Field {
	switch a {
	case ActionAddToBoard:
		return ir.FieldMembership
	case ActionSetColumn, ActionInheritColumn:
		return ir.FieldStatus
	case ActionSetSprint:
		return ir.FieldSprint
	default:
		return ir.FieldAssignees
	}
}

// sectionActions lists the actions each section may use.
var sectionActions = map[Section][]Action{
	SectionBoardItems: {ActionAddToBoard},
	SectionColumns:    {ActionSetColumn},
	SectionSprints:    {ActionSetSprint},
	SectionLinkedIssues: {
		ActionAddToBoard, ActionSetColumn, ActionSetSprint,
		ActionInheritColumn, ActionInheritAssignees, ActionAddAssignee,
	},
	SectionAssignees: {ActionAddAssignee},
}

// SprintCurrent is the only accepted set_sprint value.
const SprintCurrent = "current"

// Rule is a compiled rule.
type Rule struct {
	Name    string
	Section Section
	Line    int

	Types     []ir.Kind
	Condition *expr.Expr // nil means always
	SkipIf    *expr.Expr // nil means never
	Action    Action

	// Target is the column for set_column.
	Target ir.Column
	// Assignee is the login expression for add_assignee.
	Assignee *expr.Expr

	Transitions []Transition
}

// Matches reports whether the rule applies to items of kind k.
func (r Rule) Matches(k ir.Kind) bool {
	return slices.Contains(r.Types, k)
}

// Transition is one allowed column move.
type Transition struct {
	From       ir.Column
	To         ir.Column
	Conditions []*expr.Expr
}

// Allows reports whether moving from -> to is permitted under env: some
// transition must match the pair with all of its conditions true.
func (r Rule) Allows(from, to ir.Column, env expr.Env) bool {
	for _, t := range r.Transitions {
		if t.From != from || t.To != to {
			continue
		}
		ok := true
		for _, c := range t.Conditions {
			if !c.Eval(env) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// MonitoredUser is a user scope entry before resolution.
type MonitoredUser struct {
	Name        string
	Type        string // "static" or "env"
	Description string
}

// Technical holds pass tuning with defaults applied.
type Technical struct {
	BatchSize         int
	BatchDelay        time.Duration
	UpdateWindow      time.Duration
	SkipUnchanged     bool
	DedupByID         bool
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	MinRemaining      int
	RequestsPerSecond int
	TopN              int
}

// Defaults for optional technical keys.
const (
	DefaultUpdateWindowHours = 48
	DefaultMaxRetries        = 3
	DefaultInitialRetryDelay = time.Second
	DefaultMaxRetryDelay     = 10 * time.Second
	DefaultMinRemaining      = 100
	DefaultTopN              = 5
	DefaultStatusField       = "Status"
	DefaultSprintField       = "Sprint"
)

// RuleSet is the compiled, immutable rule file. Accessors return copies.
type RuleSet struct {
	projectID    string
	timezone     *time.Location
	statusField  string
	sprintField  string
	users        []MonitoredUser
	organization string
	repositories []string
	sections     map[Section][]Rule
	technical    Technical
}

func (rs *RuleSet) ProjectID() string        { return rs.projectID }
func (rs *RuleSet) Timezone() *time.Location { return rs.timezone }
func (rs *RuleSet) StatusField() string      { return rs.statusField }
func (rs *RuleSet) SprintField() string      { return rs.sprintField }
func (rs *RuleSet) Organization() string     { return rs.organization }
func (rs *RuleSet) Technical() Technical     { return rs.technical }

// MonitoredUsers returns the user scope entries in file order.
func (rs *RuleSet) MonitoredUsers() []MonitoredUser {
	return slices.Clone(rs.users)
}

// Repositories returns repository names as written (possibly unprefixed).
func (rs *RuleSet) Repositories() []string {
	return slices.Clone(rs.repositories)
}

// Rules returns the rules of a section in file order.
func (rs *RuleSet) Rules(s Section) []Rule {
	return slices.Clone(rs.sections[s])
}

// RuleCount returns the total number of rules.
func (rs *RuleSet) RuleCount() int {
	n := 0
	for _, rules := range rs.sections {
		n += len(rules)
	}
	return n
}

// UsesSprint reports whether any rule sets the sprint, which decides
// whether the sprint field must exist on the board.
func (rs *RuleSet) UsesSprint() bool {
	for _, rules := range rs.sections {
		for _, r := range rules {
			if r.Action == ActionSetSprint {
				return true
			}
		}
	}
	return false
}
