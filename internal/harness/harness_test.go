package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)

			for _, failure := range result.Check() {
				t.Error(failure)
			}
			if s.Golden {
				assertGolden(t, result)
			}
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/issue_linked_to_merged_pr.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := first.CanonicalPlan()
	require.NoError(t, err)
	b, err := second.CanonicalPlan()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestCheckReportsMismatch(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/new_pr_by_monitored_user.yaml")
	require.NoError(t, err)
	s.Assertions = []Assertion{
		{Type: AssertPlan, Item: "PR_1", Mutations: []string{"Admit"}},
		{Type: AssertWarning, Reason: "no-current-sprint"},
	}

	result, err := Run(s)
	require.NoError(t, err)

	failures := result.Check()
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "SetStatus=Active")
	assert.Contains(t, failures[1], "no-current-sprint")
}

func TestLoadScenarioRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown field",
			body: base + "colour: blue\n",
			want: "failed to parse YAML",
		},
		{
			name: "bad kind",
			body: base + "items:\n  - {id: X, kind: Epic, repo: org/r1, number: 1, state: open}\n",
			want: "kind \"Epic\"",
		},
		{
			name: "closes a pull request",
			body: base + "items:\n" +
				"  - {id: A, kind: PullRequest, repo: org/r1, number: 1, state: open, closes: [B]}\n" +
				"  - {id: B, kind: PullRequest, repo: org/r1, number: 2, state: open}\n",
			want: "closes unknown issue",
		},
		{
			name: "unknown column",
			body: base + "items:\n  - {id: A, kind: Issue, repo: org/r1, number: 1, state: open}\n" +
				"board:\n  - {item: A, column: Doing}\n",
			want: "unknown column",
		},
		{
			name: "outcome in plan mode",
			body: base + "assertions:\n  - {type: outcome, field: Status}\n",
			want: "requires mode run",
		},
		{
			name: "bad now",
			body: "name: x\ndescription: x\nrules: r.yaml\nnow: yesterday\n",
			want: "now:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const base = "name: x\ndescription: x\nrules: r.yaml\nnow: \"2026-10-15T12:00:00Z\"\n"

func TestLoadScenarioResolvesRulesPath(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/already_active_pr.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "rules", "board.yaml"), s.Rules)
}
