package rules

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/boardsync/internal/expr"
	"github.com/roach88/boardsync/internal/ir"
)

// Compile validates a decoded document and builds the RuleSet.
// Returns all violations found (does not fail fast).
func Compile(doc *Document) (*RuleSet, []ValidationError) {
	c := &compiler{names: make(map[string]int)}

	rs := &RuleSet{
		projectID:    doc.Project.ID,
		statusField:  orDefault(doc.Project.Fields.Status, DefaultStatusField),
		sprintField:  orDefault(doc.Project.Fields.Sprint, DefaultSprintField),
		organization: doc.Automation.RepositoryScope.Organization,
		repositories: slices.Clone(doc.Automation.RepositoryScope.Repositories),
		sections:     make(map[Section][]Rule, len(Sections)),
		technical:    compileTechnical(doc.Technical),
	}

	rs.timezone = time.UTC
	if tz := doc.Project.Timezone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			c.add(ValidationError{
				Field:   "project.timezone",
				Message: fmt.Sprintf("unknown timezone %q", tz),
				Code:    ErrCodeTimezone,
			})
		} else {
			rs.timezone = loc
		}
	}

	rs.users = c.compileUsers(doc.Automation.UserScope.MonitoredUsers)
	c.checkRepositories(rs.organization, rs.repositories)

	docs := map[Section]SectionDoc{
		SectionBoardItems:   doc.Automation.BoardItems,
		SectionColumns:      doc.Automation.Columns,
		SectionSprints:      doc.Automation.Sprints,
		SectionLinkedIssues: doc.Automation.LinkedIssues,
		SectionAssignees:    doc.Automation.Assignees,
	}
	for _, s := range Sections {
		for i, rd := range docs[s].Rules {
			field := fmt.Sprintf("automation.%s.rules[%d]", s, i)
			if r, ok := c.compileRule(s, field, rd); ok {
				rs.sections[s] = append(rs.sections[s], r)
			}
		}
	}

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return rs, nil
}

type compiler struct {
	errs  []ValidationError
	names map[string]int // rule name -> first line
}

func (c *compiler) add(v ValidationError) {
	c.errs = append(c.errs, v)
}

func (c *compiler) compileUsers(docs []MonitoredUserDoc) []MonitoredUser {
	users := make([]MonitoredUser, 0, len(docs))
	for i, u := range docs {
		field := fmt.Sprintf("automation.user_scope.monitored_users[%d]", i)
		if strings.TrimSpace(u.Name) == "" {
			c.add(ValidationError{Field: field, Message: "monitored user name is empty", Code: ErrCodeScope, Line: u.Line})
			continue
		}
		switch u.Type {
		case "", "static", "env":
		default:
			c.add(ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("type must be static or env, got %q", u.Type),
				Code:    ErrCodeScope,
				Line:    u.Line,
			})
			continue
		}
		users = append(users, MonitoredUser{Name: u.Name, Type: u.Type, Description: u.Description})
	}
	return users
}

func (c *compiler) checkRepositories(org string, repos []string) {
	for i, repo := range repos {
		owner, _, found := strings.Cut(repo, "/")
		if found && owner != org {
			c.add(ValidationError{
				Field:   fmt.Sprintf("automation.repository_scope.repositories[%d]", i),
				Message: fmt.Sprintf("repository %q is outside organization %q", repo, org),
				Code:    ErrCodeScope,
			})
		}
	}
}

func (c *compiler) compileRule(s Section, field string, rd RuleDoc) (Rule, bool) {
	before := len(c.errs)
	r := Rule{Name: rd.Name, Section: s, Line: rd.Line, Action: Action(rd.Action)}

	if first, dup := c.names[rd.Name]; dup {
		c.add(ValidationError{
			Field:   field + ".name",
			Message: fmt.Sprintf("duplicate rule name %q (first defined on line %d)", rd.Name, first),
			Code:    ErrCodeDuplicateName,
			Line:    rd.Line,
		})
	} else {
		c.names[rd.Name] = rd.Line
	}

	r.Types = c.compileTypes(s, field, rd)

	if !slices.Contains(sectionActions[s], r.Action) {
		c.add(ValidationError{
			Field:   field + ".action",
			Message: fmt.Sprintf("action %q is not allowed in %s", rd.Action, s),
			Code:    ErrCodeActionSection,
			Line:    rd.Line,
		})
	}

	r.Condition = c.compileExpr(s, field+".trigger.condition", rd.Trigger.Condition, rd.Line)
	r.SkipIf = c.compileExpr(s, field+".skip_if", rd.SkipIf, rd.Line)
	c.compileValue(s, field, rd, &r)
	r.Transitions = c.compileTransitions(s, field, rd, r)

	return r, len(c.errs) == before
}

func (c *compiler) compileTypes(s Section, field string, rd RuleDoc) []ir.Kind {
	var kinds []ir.Kind
	for _, t := range rd.Trigger.Type {
		k := ir.Kind(t)
		switch {
		case !ir.ValidKinds[k]:
			c.add(ValidationError{
				Field:   field + ".trigger.type",
				Message: fmt.Sprintf("unknown item type %q", t),
				Code:    ErrCodeTriggerType,
				Line:    rd.Line,
			})
		case s == SectionLinkedIssues && k != ir.KindLinkedIssue:
			c.add(ValidationError{
				Field:   field + ".trigger.type",
				Message: fmt.Sprintf("linked_issues rules only apply to LinkedIssue, got %q", t),
				Code:    ErrCodeTriggerType,
				Line:    rd.Line,
			})
		case s != SectionLinkedIssues && k == ir.KindLinkedIssue:
			c.add(ValidationError{
				Field:   field + ".trigger.type",
				Message: fmt.Sprintf("LinkedIssue is only valid in linked_issues, not %s", s),
				Code:    ErrCodeTriggerType,
				Line:    rd.Line,
			})
		default:
			if !slices.Contains(kinds, k) {
				kinds = append(kinds, k)
			}
		}
	}
	return kinds
}

// compileExpr compiles an optional expression. Empty source yields nil.
func (c *compiler) compileExpr(s Section, field, src string, line int) *expr.Expr {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	e, err := expr.Compile(src)
	if err != nil {
		c.add(ValidationError{Field: field, Message: err.Error(), Code: ErrCodeInvalidExpression, Line: line})
		return nil
	}
	if s != SectionLinkedIssues {
		for _, id := range e.Idents {
			if expr.IsLinkedOnly(id) {
				c.add(ValidationError{
					Field:   field,
					Message: fmt.Sprintf("%s is only bound in linked_issues rules", id),
					Code:    ErrCodeLinkedIdentifier,
					Line:    line,
				})
			}
		}
	}
	return e
}

func (c *compiler) compileValue(s Section, field string, rd RuleDoc, r *Rule) {
	invalid := func(format string, args ...any) {
		c.add(ValidationError{
			Field:   field + ".value",
			Message: fmt.Sprintf(format, args...),
			Code:    ErrCodeInvalidValue,
			Line:    rd.Line,
		})
	}

	switch r.Action {
	case ActionSetColumn:
		col, ok := ir.ParseColumn(rd.Value)
		if !ok || col == ir.ColumnNone {
			invalid("set_column needs a column value, got %q", rd.Value)
			return
		}
		r.Target = col
	case ActionSetSprint:
		if rd.Value != SprintCurrent {
			invalid("set_sprint value must be %q, got %q", SprintCurrent, rd.Value)
		}
	case ActionAddAssignee:
		src := rd.Value
		if src == "" {
			src = expr.MonitoredUser
		}
		r.Assignee = c.compileExpr(s, field+".value", src, rd.Line)
	case ActionAddToBoard, ActionInheritColumn, ActionInheritAssignees:
		if rd.Value != "" {
			invalid("%s takes no value, got %q", r.Action, rd.Value)
		}
	}
}

func (c *compiler) compileTransitions(s Section, field string, rd RuleDoc, r Rule) []Transition {
	needs := r.Action == ActionSetColumn || r.Action == ActionInheritColumn
	if !needs {
		if len(rd.ValidTransitions) > 0 {
			c.add(ValidationError{
				Field:   field + ".validTransitions",
				Message: fmt.Sprintf("validTransitions only apply to column actions, not %s", rd.Action),
				Code:    ErrCodeTransitions,
				Line:    rd.Line,
			})
		}
		return nil
	}
	if len(rd.ValidTransitions) == 0 {
		c.add(ValidationError{
			Field:   field + ".validTransitions",
			Message: fmt.Sprintf("%s rules require at least one valid transition", rd.Action),
			Code:    ErrCodeTransitions,
			Line:    rd.Line,
		})
		return nil
	}

	out := make([]Transition, 0, len(rd.ValidTransitions))
	for i, td := range rd.ValidTransitions {
		tf := fmt.Sprintf("%s.validTransitions[%d]", field, i)
		shape := func(format string, args ...any) {
			c.add(ValidationError{Field: tf, Message: fmt.Sprintf(format, args...), Code: ErrCodeTransitionShape, Line: td.Line})
		}

		from, okFrom := ir.ParseColumn(td.From)
		to, okTo := ir.ParseColumn(td.To)
		switch {
		case !okFrom:
			shape("unknown column %q in from", td.From)
			continue
		case !okTo:
			shape("unknown column %q in to", td.To)
			continue
		case to == ir.ColumnNone:
			shape("items cannot be moved off the board")
			continue
		case r.Action == ActionSetColumn && r.Target != ir.ColumnNone && to != r.Target:
			shape("transition to %s can never apply to a rule targeting %s", to, r.Target)
			continue
		}

		t := Transition{From: from, To: to}
		for j, src := range td.Conditions {
			e := c.compileExpr(s, fmt.Sprintf("%s.conditions[%d]", tf, j), src, td.Line)
			if e != nil {
				t.Conditions = append(t.Conditions, e)
			}
		}
		out = append(out, t)
	}
	return out
}

func compileTechnical(t TechnicalDoc) Technical {
	out := Technical{
		BatchSize:         t.BatchSize,
		BatchDelay:        time.Duration(t.BatchDelaySeconds) * time.Second,
		UpdateWindow:      time.Duration(orDefaultInt(t.UpdateWindowHours, DefaultUpdateWindowHours)) * time.Hour,
		SkipUnchanged:     t.Optimization.SkipUnchanged,
		DedupByID:         t.Optimization.DedupByID,
		MaxRetries:        DefaultMaxRetries,
		InitialRetryDelay: DefaultInitialRetryDelay,
		MaxRetryDelay:     DefaultMaxRetryDelay,
		MinRemaining:      DefaultMinRemaining,
		RequestsPerSecond: t.RateLimit.RequestsPerSecond,
		TopN:              orDefaultInt(t.Report.TopN, DefaultTopN),
	}
	if out.BatchSize < 1 {
		out.BatchSize = 10
	}
	if v := t.Retry.MaxRetries; v != nil {
		out.MaxRetries = *v
	}
	if v := t.Retry.InitialDelaySeconds; v != nil {
		out.InitialRetryDelay = time.Duration(*v) * time.Second
	}
	if v := t.Retry.MaxDelaySeconds; v != nil {
		out.MaxRetryDelay = time.Duration(*v) * time.Second
	}
	if v := t.RateLimit.MinRemaining; v != nil {
		out.MinRemaining = *v
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}
