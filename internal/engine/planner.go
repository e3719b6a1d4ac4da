package engine

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/boardsync/internal/ir"
)

// Plan is the ordered list of mutations to dispatch plus the outcomes of
// everything that will not be dispatched.
type Plan struct {
	Mutations []ir.Mutation
	Outcomes  []ir.Outcome
}

// Planner diffs desired mutations against the snapshot.
//
// Guarantees on the returned plan:
//   - No Membership mutation for an item already on the board.
//   - No Status or Sprint mutation for an item neither on the board nor
//     admitted by the same plan; such a mutation is skipped as not-found.
//   - At most one mutation per (content id, field).
//   - With skip_unchanged, no mutation sets a field to its snapshot value.
//   - Assignee mutations name only logins not already assigned.
//   - Per content id, Membership, Status, Sprint, Assignees in that order.
type Planner struct {
	pctx   *PassContext
	snap   *Snapshot
	seq    *Sequence
	logger *slog.Logger
}

// NewPlanner creates a planner. Mutation sequence numbers come from seq.
func NewPlanner(pctx *PassContext, snap *Snapshot, seq *Sequence, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	if seq == nil {
		seq = NewSequence()
	}
	return &Planner{pctx: pctx, snap: snap, seq: seq, logger: logger}
}

// Build turns evaluations into a plan.
func (p *Planner) Build(evals []Evaluation) (*Plan, error) {
	plan := &Plan{}
	dedup := NewDedupTracker()

	var (
		merged   []ir.Mutation
		assigned = make(map[string][]string) // content id -> known assignees
		first    = make(map[string]int)      // content id -> first appearance
	)
	for _, ev := range evals {
		plan.Outcomes = append(plan.Outcomes, ev.Outcomes...)
		assigned[ev.Item.ContentID] = union(assigned[ev.Item.ContentID], ev.Item.Assignees)

		for _, m := range ev.Mutations {
			if idx, dup := dedup.Seen(m.TargetKey()); dup {
				if m.Field == ir.FieldAssignees {
					merged[idx].Logins = union(merged[idx].Logins, m.Logins)
					continue
				}
				plan.Outcomes = append(plan.Outcomes, skipped(m, ir.ReasonSuperseded))
				continue
			}
			dedup.Record(m.TargetKey(), len(merged))
			if _, ok := first[m.ContentID]; !ok {
				first[m.ContentID] = len(first)
			}
			m.Logins = slices.Clone(m.Logins)
			merged = append(merged, m)
		}
	}

	admitted := make(map[string]bool)
	for _, m := range merged {
		if m.Field != ir.FieldMembership {
			continue
		}
		if _, onBoard := p.snap.Get(m.ContentID); !onBoard {
			admitted[m.ContentID] = true
		}
	}

	for _, m := range merged {
		bi, onBoard := p.snap.Get(m.ContentID)
		m.ProjectItemID = bi.ProjectItemID

		switch m.Field {
		case ir.FieldMembership:
			if onBoard {
				plan.Outcomes = append(plan.Outcomes, unchanged(m))
				continue
			}

		case ir.FieldStatus, ir.FieldSprint:
			if !onBoard && !admitted[m.ContentID] {
				p.logger.Debug("item not on board",
					"item", m.Item.String(), "field", m.Field, "rule", m.Rule,
					"reason", ir.ReasonNotFound)
				plan.Outcomes = append(plan.Outcomes, skipped(m, ir.ReasonNotFound))
				continue
			}
			currentValue := bi.Sprint
			if m.Field == ir.FieldStatus {
				currentValue = string(bi.Column)
			}
			if p.pctx.Technical.SkipUnchanged && m.Value == currentValue {
				plan.Outcomes = append(plan.Outcomes, unchanged(m))
				continue
			}
			if m.Field == ir.FieldStatus {
				if _, ok := p.pctx.Status.Options[ir.Column(m.Value)]; !ok {
					p.logger.Warn("column has no option on the board",
						"item", m.Item.String(), "column", m.Value, "rule", m.Rule,
						"reason", ir.ReasonNotFound)
					plan.Outcomes = append(plan.Outcomes, skipped(m, ir.ReasonNotFound))
					continue
				}
			}

		case ir.FieldAssignees:
			have := union(assigned[m.ContentID], bi.Assignees)
			var missing []string
			for _, l := range m.Logins {
				if !slices.Contains(have, l) {
					missing = append(missing, l)
				}
			}
			if len(missing) == 0 {
				plan.Outcomes = append(plan.Outcomes, unchanged(m))
				continue
			}
			m.Logins = missing
		}
		plan.Mutations = append(plan.Mutations, m)
	}

	slices.SortStableFunc(plan.Mutations, func(a, b ir.Mutation) int {
		return cmp.Or(
			cmp.Compare(first[a.ContentID], first[b.ContentID]),
			cmp.Compare(a.Field.Order(), b.Field.Order()),
		)
	})

	firstSeq := p.seq.Last() + 1
	for i := range plan.Mutations {
		m := &plan.Mutations[i]
		m.Seq = p.seq.Next()
		id, err := ir.MutationID(*m)
		if err != nil {
			return nil, fmt.Errorf("mutation id for %s %s: %w", m.Item, m.Field, err)
		}
		m.ID = id
	}
	p.logger.Debug("plan ordered",
		"targets", dedup.Len(),
		"mutations", len(plan.Mutations),
		"first_seq", firstSeq,
		"last_seq", p.seq.Last(),
		"not_dispatched", len(plan.Outcomes))
	return plan, nil
}

func unchanged(m ir.Mutation) ir.Outcome {
	return ir.Outcome{
		Item:   m.Item,
		Field:  m.Field,
		Value:  m.Value,
		Rule:   m.Rule,
		Status: ir.OutcomeUnchanged,
		Reason: ir.ReasonAlreadyCurrent,
	}
}
