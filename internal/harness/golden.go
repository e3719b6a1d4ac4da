package harness

import (
	"path/filepath"

	"github.com/roach88/boardsync/internal/ir"
)

// CanonicalPlan renders the scenario's plan and pre-dispatch outcomes as
// canonical JSON. Mutation ids are content hashes, so any change to a
// planned target, field or value changes the golden file.
func (r *Result) CanonicalPlan() ([]byte, error) {
	mutations := make(ir.IRArray, 0, len(r.Mutations()))
	for _, m := range r.Mutations() {
		mutations = append(mutations, ir.CanonicalMutation(m))
	}

	outcomes := ir.IRArray{}
	for _, o := range r.Outcomes() {
		if o.MutationID != "" {
			// Dispatch outcomes; the golden file covers the plan only.
			continue
		}
		outcomes = append(outcomes, ir.IRObject{
			"item":   ir.IRString(o.Item.String()),
			"field":  ir.IRString(o.Field),
			"value":  ir.OptionalString(o.Value),
			"rule":   ir.IRString(o.Rule),
			"status": ir.IRString(o.Status),
			"reason": ir.IRString(o.Reason),
		})
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario":  ir.IRString(r.Scenario.Name),
		"mutations": mutations,
		"outcomes":  outcomes,
	})
}

// GoldenPath returns where the golden file of a scenario loaded from
// scenarioFile lives: a golden directory next to the scenario directory.
func GoldenPath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(scenarioFile)), "golden", name+".golden")
}
