package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/roach88/boardsync/internal/engine"
	"github.com/roach88/boardsync/internal/ir"
)

// topOrder is the order report categories are printed in.
var topOrder = []ir.OutcomeStatus{
	ir.OutcomeError,
	ir.OutcomeChanged,
	ir.OutcomeSkipped,
	ir.OutcomeUnchanged,
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	return t
}

// renderReport prints the end-of-pass summary, the top items of every
// category and the pass warnings.
func renderReport(w io.Writer, r *engine.Report) {
	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(w, "Pass %s on %s (%s)\n", r.PassID, r.BoardID, elapsed)

	t := newTable(w, "Summary")
	t.AppendHeader(table.Row{"Items", "Planned", "Changed", "Unchanged", "Skipped", "Errors"})
	t.AppendRow(table.Row{
		r.Summary.Total, r.Planned, r.Summary.Changed,
		r.Summary.Unchanged, r.Summary.Skipped, r.Summary.Errors,
	})
	t.Render()

	for _, status := range topOrder {
		items := r.Top[status]
		if len(items) == 0 {
			continue
		}
		t := newTable(w, strings.ToUpper(string(status)))
		t.AppendHeader(table.Row{"Item", "Reasons", "Details"})
		for _, is := range items {
			t.AppendRow(table.Row{is.Key.String(), joinReasons(is.Reasons), outcomeDetails(is.Outcomes)})
		}
		t.Render()
	}

	renderWarnings(w, r.Warnings)
}

// renderPlan prints planned mutations and elided changes.
func renderPlan(w io.Writer, p PlanOutput) {
	fmt.Fprintf(w, "Plan %s on %s: %d item(s), %d change(s)\n", p.PassID, p.BoardID, p.Items, len(p.Mutations))

	if len(p.Mutations) > 0 {
		t := newTable(w, "Changes")
		t.AppendHeader(table.Row{"#", "Item", "Change", "Rule", "Why"})
		for _, m := range p.Mutations {
			t.AppendRow(table.Row{m.Seq, m.Item.String(), m.Describe(), m.Rule, m.Rationale})
		}
		t.Render()
	}

	if len(p.Outcomes) > 0 {
		t := newTable(w, "Not applied")
		t.AppendHeader(table.Row{"Item", "Field", "Value", "Rule", "Status", "Reason"})
		for _, o := range p.Outcomes {
			t.AppendRow(table.Row{o.Item.String(), o.Field, o.Value, o.Rule, o.Status, o.Reason})
		}
		t.Render()
	}

	renderWarnings(w, p.Warnings)
}

func renderWarnings(w io.Writer, warnings []engine.Warning) {
	if len(warnings) == 0 {
		return
	}
	t := newTable(w, "Warnings")
	t.AppendHeader(table.Row{"Stage", "Reason", "Subject", "Message"})
	for _, warn := range warnings {
		t.AppendRow(table.Row{warn.Stage, warn.Reason, warn.Subject, warn.Message})
	}
	t.Render()
}

func joinReasons(reasons []ir.Reason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// outcomeDetails renders one line per outcome, e.g. "Status=Active (status-set)".
func outcomeDetails(outcomes []ir.Outcome) string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		line := string(o.Field)
		if o.Value != "" {
			line += "=" + o.Value
		}
		line += " (" + string(o.Reason) + ")"
		if o.ErrorMessage != "" {
			line += fmt.Sprintf(": %d %s", o.ErrorCode, o.ErrorMessage)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
