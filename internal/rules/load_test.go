package rules

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardsync/internal/expr"
	"github.com/roach88/boardsync/internal/ir"
)

const minimalHeader = `project:
  id: PVT_1
automation:
  user_scope:
    monitored_users: [alice]
  repository_scope:
    organization: org
    repositories: [r1]
`

const emptySections = `  board_items:
    rules: []
  columns:
    rules: []
  sprints:
    rules: []
  linked_issues:
    rules: []
  assignees:
    rules: []
`

const minimalTechnical = `technical:
  batch_size: 5
  batch_delay_seconds: 0
  optimization:
    skip_unchanged: true
    dedup_by_id: true
`

func minimalDoc() string {
	return minimalHeader + emptySections + minimalTechnical
}

func codes(vs []ValidationError) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Code
	}
	return out
}

func TestLoad_ExampleRuleFile(t *testing.T) {
	rs, err := Load(filepath.Join("testdata", "rules.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "PVT_kwDOA1b2c3", rs.ProjectID())
	assert.Equal(t, time.UTC, rs.Timezone())
	assert.Equal(t, "Status", rs.StatusField())
	assert.Equal(t, "Sprint", rs.SprintField())
	assert.Equal(t, "org", rs.Organization())
	assert.Equal(t, []string{"r1", "r2"}, rs.Repositories())
	assert.Equal(t, []MonitoredUser{{
		Name:        "GITHUB_AUTHOR",
		Type:        "env",
		Description: "The engineer whose work this board tracks",
	}}, rs.MonitoredUsers())
	assert.Equal(t, 10, rs.RuleCount())
	assert.True(t, rs.UsesSprint())

	columns := rs.Rules(SectionColumns)
	require.Len(t, columns, 3)
	assert.Equal(t, "open_pr_active", columns[0].Name)
	assert.Equal(t, ir.ColumnActive, columns[0].Target)
	assert.Equal(t, []ir.Kind{ir.KindPullRequest}, columns[0].Types)
	assert.Len(t, columns[0].Transitions, 4)
	assert.Positive(t, columns[0].Line)

	linked := rs.Rules(SectionLinkedIssues)
	require.Len(t, linked, 3)
	assert.Equal(t, ActionInheritColumn, linked[0].Action)

	assignees := rs.Rules(SectionAssignees)
	require.Len(t, assignees, 1)
	require.NotNil(t, assignees[0].Assignee)
	assert.Equal(t, []string{expr.MonitoredUser}, assignees[0].Assignee.Idents)

	tech := rs.Technical()
	assert.Equal(t, 10, tech.BatchSize)
	assert.Equal(t, time.Second, tech.BatchDelay)
	assert.Equal(t, 48*time.Hour, tech.UpdateWindow)
	assert.True(t, tech.SkipUnchanged)
	assert.True(t, tech.DedupByID)
	assert.Equal(t, 3, tech.MaxRetries)
	assert.Equal(t, 10*time.Second, tech.MaxRetryDelay)
	assert.Equal(t, 100, tech.MinRemaining)
	assert.Equal(t, 5, tech.TopN)
}

func TestParse_Defaults(t *testing.T) {
	rs, err := Parse("rules.yaml", []byte(minimalDoc()))
	require.NoError(t, err)

	tech := rs.Technical()
	assert.Equal(t, 5, tech.BatchSize)
	assert.Zero(t, tech.BatchDelay)
	assert.Equal(t, DefaultUpdateWindowHours*time.Hour, tech.UpdateWindow)
	assert.Equal(t, DefaultMaxRetries, tech.MaxRetries)
	assert.Equal(t, DefaultInitialRetryDelay, tech.InitialRetryDelay)
	assert.Equal(t, DefaultMaxRetryDelay, tech.MaxRetryDelay)
	assert.Equal(t, DefaultMinRemaining, tech.MinRemaining)
	assert.Equal(t, DefaultTopN, tech.TopN)
	assert.Equal(t, time.UTC, rs.Timezone())
	assert.Equal(t, []MonitoredUser{{Name: "alice"}}, rs.MonitoredUsers())
	assert.False(t, rs.UsesSprint())
	assert.Zero(t, rs.RuleCount())
}

func TestParse_DeclaredUpdateWindowHonored(t *testing.T) {
	src := minimalHeader + emptySections + minimalTechnical + "  update_window_hours: 24\n"
	rs, err := Parse("rules.yaml", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, rs.Technical().UpdateWindow)
}

func TestParse_RulesAreImmutable(t *testing.T) {
	rs, err := Load(filepath.Join("testdata", "rules.yaml"))
	require.NoError(t, err)

	rules := rs.Rules(SectionColumns)
	rules[0].Name = "changed"
	repos := rs.Repositories()
	repos[0] = "changed"

	assert.Equal(t, "open_pr_active", rs.Rules(SectionColumns)[0].Name)
	assert.Equal(t, "r1", rs.Repositories()[0])
}

func TestParse_StructuralViolations(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "unknown top-level key",
			src:   minimalDoc() + "extra: true\n",
			field: "extra",
		},
		{
			name:  "unknown technical key",
			src:   minimalDoc() + "  retries: 4\n",
			field: "technical",
		},
		{
			name:  "missing project id",
			src:   "project:\n  name: x\n" + minimalDoc()[len("project:\n  id: PVT_1\n"):],
			field: "project",
		},
		{
			name:  "batch size below one",
			src:   minimalHeader + emptySections + "technical:\n  batch_size: 0\n  batch_delay_seconds: 0\n  optimization:\n    skip_unchanged: true\n    dedup_by_id: true\n",
			field: "technical",
		},
		{
			name:  "missing section",
			src:   minimalHeader + "  board_items:\n    rules: []\n" + minimalTechnical,
			field: "automation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("rules.yaml", []byte(tt.src))
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			require.NotEmpty(t, le.Violations)
			for _, v := range le.Violations {
				assert.Equal(t, ErrCodeSchema, v.Code, v.Error())
			}
			assert.Contains(t, le.Violations[0].Field, tt.field)
		})
	}
}

func TestParse_YAMLSyntaxError(t *testing.T) {
	violations := Validate("rules.yaml", []byte("project: [unclosed\n"))
	require.NotEmpty(t, violations)
	assert.Equal(t, ErrCodeParse, violations[0].Code)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, []string{ErrCodeRead}, codes(le.Violations))
}

func TestParse_SemanticViolationsCollected(t *testing.T) {
	sections := `  board_items:
    rules:
      - name: bad_expression
        trigger:
          type: PullRequest
          condition: item.author == monitored.user
        action: add_to_board
  columns:
    rules:
      - name: pr_identifier_outside_linked
        trigger:
          type: PullRequest
          condition: item.pr.merged
        action: set_column
        value: Done
        validTransitions:
          - from: Active
            to: Done
            conditions: []
      - name: inherit_in_columns
        trigger:
          type: Issue
        action: inherit_column
        validTransitions:
          - from: Active
            to: Done
            conditions: []
      - name: missing_transitions
        trigger:
          type: Issue
        action: set_column
        value: Active
      - name: wrong_target
        trigger:
          type: Issue
        action: set_column
        value: Active
        validTransitions:
          - from: New
            to: Done
            conditions: []
  sprints:
    rules:
      - name: next_sprint
        trigger:
          type: PullRequest
        action: set_sprint
        value: next
  linked_issues:
    rules:
      - name: linked_wrong_type
        trigger:
          type: Issue
        action: inherit_assignees
  assignees:
    rules:
      - name: bad_expression
        trigger:
          type: PullRequest
        action: add_assignee
`
	src := minimalHeader + sections + minimalTechnical
	violations := Validate("rules.yaml", []byte(src))

	got := codes(violations)
	for _, want := range []string{
		ErrCodeInvalidExpression,
		ErrCodeLinkedIdentifier,
		ErrCodeActionSection,
		ErrCodeTransitions,
		ErrCodeTransitionShape,
		ErrCodeInvalidValue,
		ErrCodeTriggerType,
		ErrCodeDuplicateName,
	} {
		assert.Contains(t, got, want)
	}
	for _, v := range violations {
		assert.Positive(t, v.Line, v.Error())
	}

	_, err := Parse("rules.yaml", []byte(src))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Len(t, le.Violations, len(violations))
	assert.Contains(t, err.Error(), "violations")
}

func TestParse_ScopeAndTimezoneViolations(t *testing.T) {
	src := `project:
  id: PVT_1
  timezone: Mars/Olympus_Mons
automation:
  user_scope:
    monitored_users:
      - name: alice
        type: static
  repository_scope:
    organization: org
    repositories: [r1, other/r2]
` + emptySections + minimalTechnical

	got := codes(Validate("rules.yaml", []byte(src)))
	assert.ElementsMatch(t, []string{ErrCodeTimezone, ErrCodeScope}, got)
}

func TestParse_TriggerTypeList(t *testing.T) {
	src := minimalHeader + `  board_items:
    rules:
      - name: everything
        trigger:
          type: [PullRequest, Issue]
          condition: monitored.repos.includes(item.repository)
        action: add_to_board
  columns:
    rules: []
  sprints:
    rules: []
  linked_issues:
    rules: []
  assignees:
    rules: []
` + minimalTechnical

	rs, err := Parse("rules.yaml", []byte(src))
	require.NoError(t, err)

	r := rs.Rules(SectionBoardItems)[0]
	assert.True(t, r.Matches(ir.KindPullRequest))
	assert.True(t, r.Matches(ir.KindIssue))
	assert.False(t, r.Matches(ir.KindLinkedIssue))
	assert.Nil(t, r.SkipIf)
	assert.NotNil(t, r.Condition)
}

func TestRuleAllows(t *testing.T) {
	r := Rule{
		Action: ActionSetColumn,
		Target: ir.ColumnDone,
		Transitions: []Transition{
			{From: ir.ColumnActive, To: ir.ColumnDone},
			{From: ir.ColumnWaiting, To: ir.ColumnDone, Conditions: []*expr.Expr{expr.MustCompile(`item.merged`)}},
		},
	}

	assert.True(t, r.Allows(ir.ColumnActive, ir.ColumnDone, nil))
	assert.False(t, r.Allows(ir.ColumnNone, ir.ColumnDone, nil))
	assert.False(t, r.Allows(ir.ColumnWaiting, ir.ColumnDone, expr.Env{expr.ItemMerged: ir.IRBool(false)}))
	assert.True(t, r.Allows(ir.ColumnWaiting, ir.ColumnDone, expr.Env{expr.ItemMerged: ir.IRBool(true)}))
}

func TestActionField(t *testing.T) {
	assert.Equal(t, ir.FieldMembership, ActionAddToBoard.Field())
	assert.Equal(t, ir.FieldStatus, ActionSetColumn.Field())
	assert.Equal(t, ir.FieldStatus, ActionInheritColumn.Field())
	assert.Equal(t, ir.FieldSprint, ActionSetSprint.Field())
	assert.Equal(t, ir.FieldAssignees, ActionInheritAssignees.Field())
	assert.Equal(t, ir.FieldAssignees, ActionAddAssignee.Field())
}
