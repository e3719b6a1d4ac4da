package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/boardsync/internal/expr"
	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/rules"
)

// Evaluation is the rule evaluator's output for one item: the desired
// mutations in rule order and the outcomes of rules that fired but were
// skipped.
type Evaluation struct {
	Item ir.Item
	// Linked is set when Item was reached through a pull request's closing
	// references. Its Kind is still Issue.
	Linked    bool
	Mutations []ir.Mutation
	Outcomes  []ir.Outcome
}

// Key returns the reporting key of the evaluated item.
func (ev Evaluation) Key() ir.ItemKey {
	return ev.Item.Key()
}

// prView is the read-only evaluation context a pull request hands to its
// linked issues.
type prView struct {
	column    ir.Column
	assignees []string
	closed    bool
	merged    bool
}

// closedUnmerged reports whether linked issues must keep their own state.
func (v *prView) closedUnmerged() bool {
	return v.closed && !v.merged
}

// Evaluator applies the rule set to items. It is pure: it reads the pass
// context and snapshot and never touches the platform.
type Evaluator struct {
	pctx   *PassContext
	snap   *Snapshot
	logger *slog.Logger
}

// NewEvaluator creates an evaluator for one pass.
func NewEvaluator(pctx *PassContext, snap *Snapshot, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{pctx: pctx, snap: snap, logger: logger}
}

// EvaluateAll evaluates items in plan order: each pull request followed by
// the issues it closes, then the remaining issues. A linked issue's plan is
// computed from its pull request's plan and never feeds back into it.
func (e *Evaluator) EvaluateAll(items []ir.Item) []Evaluation {
	byID := make(map[string]ir.Item, len(items))
	for _, it := range items {
		byID[it.ContentID] = it
	}

	var out []Evaluation
	for _, it := range items {
		if it.Kind != ir.KindPullRequest {
			continue
		}
		prEval := e.Evaluate(it)
		out = append(out, prEval)

		view := e.view(it, prEval)
		for _, ref := range it.ClosingIssueRefs {
			out = append(out, e.evaluateLinked(linkedItem(ref, byID), view))
		}
	}
	for _, it := range items {
		if it.Kind == ir.KindIssue {
			out = append(out, e.Evaluate(it))
		}
	}
	return out
}

// Evaluate runs every section's rules against a pull request or issue.
func (e *Evaluator) Evaluate(item ir.Item) Evaluation {
	return e.run(item, item.Kind, nil, rules.Sections)
}

func (e *Evaluator) evaluateLinked(item ir.Item, pr *prView) Evaluation {
	ev := e.run(item, ir.KindLinkedIssue, pr, []rules.Section{rules.SectionLinkedIssues})
	ev.Linked = true
	return ev
}

// linkedItem builds the issue a closing reference points at, preferring
// the collected copy when the issue was itself recently updated.
func linkedItem(ref ir.IssueRef, byID map[string]ir.Item) ir.Item {
	if it, ok := byID[ref.ContentID]; ok && it.Kind == ir.KindIssue {
		return it
	}
	return ir.Item{
		ContentID:  ref.ContentID,
		Number:     ref.Number,
		Repository: ref.Repository,
		Kind:       ir.KindIssue,
		State:      ref.State,
		Assignees:  slices.Clone(ref.Assignees),
	}
}

// view derives the pull request's desired-or-actual state from its plan.
func (e *Evaluator) view(pr ir.Item, ev Evaluation) *prView {
	v := &prView{
		assignees: e.currentAssignees(pr),
		closed:    pr.Closed(),
		merged:    pr.Merged(),
	}
	if bi, ok := e.snap.Get(pr.ContentID); ok {
		v.column = bi.Column
	}
	for _, m := range ev.Mutations {
		switch m.Field {
		case ir.FieldStatus:
			v.column = ir.Column(m.Value)
		case ir.FieldAssignees:
			v.assignees = union(v.assignees, m.Logins)
		}
	}
	return v
}

func (e *Evaluator) currentAssignees(item ir.Item) []string {
	out := slices.Clone(item.Assignees)
	if bi, ok := e.snap.Get(item.ContentID); ok {
		out = union(out, bi.Assignees)
	}
	return out
}

func (e *Evaluator) run(item ir.Item, kind ir.Kind, pr *prView, sections []rules.Section) Evaluation {
	ev := Evaluation{Item: item}
	env := e.env(item, pr)
	current, onBoard := e.snap.Get(item.ContentID)
	if !onBoard {
		current = ir.BoardItem{ContentID: item.ContentID}
	}

	for _, sec := range sections {
		claimed := make(map[ir.Field]int) // field -> index into ev.Mutations
		for _, r := range e.pctx.Rules.Rules(sec) {
			if !r.Matches(kind) || !r.Condition.Eval(env) {
				continue
			}
			if r.SkipIf != nil && r.SkipIf.Eval(env) {
				e.logger.Debug("rule skipped", "rule", r.Name, "item", item.Key().String())
				continue
			}

			m, skip, ok := e.apply(r, item, current, env, pr)
			if skip != nil && skip.Status == ir.OutcomeUnchanged {
				if _, seen := claimed[m.Field]; seen {
					ev.Outcomes = append(ev.Outcomes, skipped(m, ir.ReasonSuperseded))
					continue
				}
				claimed[m.Field] = -1
			}
			if skip != nil {
				ev.Outcomes = append(ev.Outcomes, *skip)
				continue
			}
			if !ok {
				continue
			}

			if idx, seen := claimed[m.Field]; seen {
				if m.Field == ir.FieldAssignees {
					ev.Mutations[idx].Logins = union(ev.Mutations[idx].Logins, m.Logins)
					continue
				}
				ev.Outcomes = append(ev.Outcomes, skipped(m, ir.ReasonSuperseded))
				continue
			}
			claimed[m.Field] = len(ev.Mutations)
			ev.Mutations = append(ev.Mutations, m)
		}
	}
	return ev
}

// apply turns a fired rule into a mutation. It returns an outcome when the
// rule fired but will not be dispatched, and ok=false when it silently has
// nothing to do.
func (e *Evaluator) apply(r rules.Rule, item ir.Item, current ir.BoardItem, env expr.Env, pr *prView) (ir.Mutation, *ir.Outcome, bool) {
	m := ir.Mutation{
		ContentID: item.ContentID,
		Item:      item.Key(),
		Field:     r.Action.Field(),
		Rule:      r.Name,
		Section:   string(r.Section),
	}

	switch r.Action {
	case rules.ActionAddToBoard:
		m.Reason = ir.ReasonAdmitted
		m.Rationale = fmt.Sprintf("%s: admit to board", r.Name)

	case rules.ActionSetColumn:
		m.Value = string(r.Target)
		m.Reason = ir.ReasonStatusSet
		if o := e.checkTransition(r, m, current.Column, r.Target, env); o != nil {
			return m, o, false
		}
		m.Rationale = fmt.Sprintf("%s: %s -> %s", r.Name, current.Column, r.Target)

	case rules.ActionSetSprint:
		m.Reason = ir.ReasonSprintSet
		if e.pctx.CurrentSprint == nil {
			m.Value = rules.SprintCurrent
			return m, skippedPtr(m, ir.ReasonNoCurrentSprint), false
		}
		m.Value = e.pctx.CurrentSprint.ID
		m.Rationale = fmt.Sprintf("%s: current sprint %s", r.Name, e.pctx.CurrentSprint.Title)

	case rules.ActionInheritColumn:
		if pr == nil || pr.closedUnmerged() || pr.column == ir.ColumnNone {
			return m, nil, false
		}
		m.Value = string(pr.column)
		m.Reason = ir.ReasonInheritedFromPR
		if o := e.checkTransition(r, m, current.Column, pr.column, env); o != nil {
			return m, o, false
		}
		m.Rationale = fmt.Sprintf("%s: %s -> %s from pull request", r.Name, current.Column, pr.column)

	case rules.ActionInheritAssignees:
		if pr == nil || pr.closedUnmerged() || len(pr.assignees) == 0 {
			return m, nil, false
		}
		m.Logins = slices.Clone(pr.assignees)
		m.Reason = ir.ReasonInheritedFromPR
		m.Rationale = fmt.Sprintf("%s: assignees from pull request", r.Name)

	case rules.ActionAddAssignee:
		login, ok := r.Assignee.Value(env).(ir.IRString)
		if !ok || login == "" {
			e.logger.Debug("assignee expression has no login", "rule", r.Name, "item", item.Key().String())
			return m, nil, false
		}
		m.Logins = []string{string(login)}
		m.Reason = ir.ReasonAssigneeAdded
		m.Rationale = fmt.Sprintf("%s: add %s", r.Name, login)

	default:
		return m, nil, false
	}
	return m, nil, true
}

// checkTransition returns the outcome of a Status change that will not be
// dispatched. With skip_unchanged, re-asserting the current column is
// already current; otherwise (from, to) must be a valid transition even
// when the two are equal.
func (e *Evaluator) checkTransition(r rules.Rule, m ir.Mutation, from, to ir.Column, env expr.Env) *ir.Outcome {
	if from == to && e.pctx.Technical.SkipUnchanged {
		o := unchanged(m)
		return &o
	}
	if !r.Allows(from, to, env) {
		return skippedPtr(m, ir.ReasonTransitionDisallowed)
	}
	return nil
}

// env binds the condition vocabulary to the item's actual state.
func (e *Evaluator) env(item ir.Item, pr *prView) expr.Env {
	bi, onBoard := e.snap.Get(item.ContentID)

	sprint := ir.IRValue(ir.IRNull{})
	if onBoard && bi.Sprint != "" {
		switch it, ok := e.pctx.Sprint.Iteration(bi.Sprint); {
		case e.pctx.CurrentSprint != nil && bi.Sprint == e.pctx.CurrentSprint.ID:
			sprint = ir.IRString(rules.SprintCurrent)
		case ok:
			sprint = ir.IRString(it.Title)
		default:
			sprint = ir.IRString(bi.Sprint)
		}
	}

	env := expr.Env{
		expr.ItemAuthor:     ir.OptionalString(item.Author),
		expr.ItemAssignees:  ir.Strings(e.currentAssignees(item)),
		expr.ItemColumn:     ir.OptionalString(string(bi.Column)),
		expr.ItemSprint:     sprint,
		expr.ItemRepository: ir.IRString(item.Repository),
		expr.ItemState:      ir.OptionalString(string(item.State)),
		expr.ItemMerged:     ir.IRBool(item.Merged()),
		expr.ItemClosed:     ir.IRBool(item.Closed()),
		expr.ItemInProject:  ir.IRBool(onBoard),
		expr.MonitoredUser:  ir.OptionalString(e.pctx.Scope.MonitoredUser()),
		expr.MonitoredRepos: ir.Strings(e.pctx.Scope.Repos),
	}
	if pr != nil {
		env[expr.PRColumn] = ir.OptionalString(string(pr.column))
		env[expr.PRAssignees] = ir.Strings(pr.assignees)
		env[expr.PRClosed] = ir.IRBool(pr.closed)
		env[expr.PRMerged] = ir.IRBool(pr.merged)
	}
	return env
}

func skipped(m ir.Mutation, reason ir.Reason) ir.Outcome {
	return ir.Outcome{
		Item:   m.Item,
		Field:  m.Field,
		Value:  m.Value,
		Rule:   m.Rule,
		Status: ir.OutcomeSkipped,
		Reason: reason,
	}
}

func skippedPtr(m ir.Mutation, reason ir.Reason) *ir.Outcome {
	o := skipped(m, reason)
	return &o
}

// union appends the logins of add missing from have, keeping order.
func union(have, add []string) []string {
	out := slices.Clone(have)
	for _, l := range add {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}
