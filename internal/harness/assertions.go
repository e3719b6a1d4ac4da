package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/boardsync/internal/ir"
)

// Check evaluates every assertion of the scenario and returns one message
// per failure.
func (r *Result) Check() []string {
	var failures []string
	for i, a := range r.Scenario.Assertions {
		if err := r.check(a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func (r *Result) check(a Assertion) error {
	switch a.Type {
	case AssertPlan:
		return r.checkPlan(a)
	case AssertNoMutations:
		if got := r.planFor(a.Item); len(got) > 0 {
			return fmt.Errorf("item %s: expected no mutations, got %v", a.Item, got)
		}
		return nil
	case AssertOutcome:
		return r.checkOutcome(a)
	case AssertSummary:
		if a.Summary == nil {
			return fmt.Errorf("summary is required")
		}
		if got := r.Report.Summary; got != *a.Summary {
			return fmt.Errorf("expected %+v, got %+v", *a.Summary, got)
		}
		return nil
	case AssertWarning:
		for _, w := range r.Warnings() {
			if string(w.Reason) == a.Reason {
				return nil
			}
		}
		return fmt.Errorf("no warning with reason %q", a.Reason)
	case AssertWrites:
		if a.Count == nil {
			return fmt.Errorf("count is required")
		}
		if got := len(r.Board.Writes()); got != *a.Count {
			return fmt.Errorf("expected %d board writes, got %d", *a.Count, got)
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// planFor renders the item's planned mutations.
func (r *Result) planFor(itemID string) []string {
	var out []string
	for _, m := range r.Mutations() {
		if m.ContentID == itemID {
			out = append(out, r.Describe(m))
		}
	}
	return out
}

func (r *Result) checkPlan(a Assertion) error {
	var got []string
	if a.Item != "" {
		got = r.planFor(a.Item)
	} else {
		for _, m := range r.Mutations() {
			got = append(got, m.ContentID+" "+r.Describe(m))
		}
	}
	if !slices.Equal(got, a.Mutations) {
		return fmt.Errorf("expected [%s], got [%s]", strings.Join(a.Mutations, ", "), strings.Join(got, ", "))
	}
	return nil
}

func (r *Result) checkOutcome(a Assertion) error {
	key, ok := r.keyOf(a.Item)
	if !ok {
		return fmt.Errorf("unknown item %q", a.Item)
	}
	for _, o := range r.Outcomes() {
		if o.Item != key || string(o.Field) != a.Field {
			continue
		}
		if a.Status != "" && string(o.Status) != a.Status {
			return fmt.Errorf("%s %s: expected status %s, got %s", a.Item, a.Field, a.Status, o.Status)
		}
		if a.Reason != "" && string(o.Reason) != a.Reason {
			return fmt.Errorf("%s %s: expected reason %s, got %s", a.Item, a.Field, a.Reason, o.Reason)
		}
		if a.Attempts != 0 && o.Attempts != a.Attempts {
			return fmt.Errorf("%s %s: expected %d attempts, got %d", a.Item, a.Field, a.Attempts, o.Attempts)
		}
		return nil
	}
	return fmt.Errorf("no outcome for %s %s", a.Item, a.Field)
}

func (r *Result) keyOf(itemID string) (ir.ItemKey, bool) {
	for _, it := range r.Scenario.Items {
		if it.ID == itemID {
			return ir.ItemKey{Kind: ir.Kind(it.Kind), Number: it.Number, Repository: it.Repo}, true
		}
	}
	return ir.ItemKey{}, false
}
