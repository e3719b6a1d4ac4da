package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/boardsync/internal/engine"
	"github.com/roach88/boardsync/internal/ir"
)

// Scenario is one reconciliation pass with its inputs and expectations.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Rules is the rule file path, relative to the scenario file.
	Rules string `yaml:"rules"`

	// Now is the pass start time (RFC 3339).
	Now string `yaml:"now"`

	// Env answers monitored-user lookups such as GITHUB_AUTHOR.
	Env map[string]string `yaml:"env,omitempty"`

	Iterations []IterationSpec `yaml:"iterations,omitempty"`
	Items      []ItemSpec      `yaml:"items"`
	Board      []MemberSpec    `yaml:"board,omitempty"`
	Failures   []FailureSpec   `yaml:"failures,omitempty"`

	// Mode is "plan" (default) or "run".
	Mode string `yaml:"mode,omitempty"`

	// Golden compares the canonical plan against testdata/golden/<name>.golden.
	Golden bool `yaml:"golden,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Scenario modes.
const (
	ModePlan = "plan"
	ModeRun  = "run"
)

// IterationSpec is one sprint of the board's iteration field.
type IterationSpec struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Start string `yaml:"start"`
	Days  int    `yaml:"days"`
}

// ItemSpec is an issue or pull request in a monitored repository.
type ItemSpec struct {
	ID        string   `yaml:"id"`
	Kind      string   `yaml:"kind"`
	Repo      string   `yaml:"repo"`
	Number    int      `yaml:"number"`
	Author    string   `yaml:"author,omitempty"`
	State     string   `yaml:"state"`
	Assignees []string `yaml:"assignees,omitempty"`
	Draft     bool     `yaml:"draft,omitempty"`

	// UpdatedHoursAgo places the last update before Now (default 1).
	UpdatedHoursAgo int `yaml:"updated_hours_ago,omitempty"`

	// Closes lists the ids of issues a pull request closes.
	Closes []string `yaml:"closes,omitempty"`

	// Unlisted items exist only as closing references: repository
	// listings and searches never return them.
	Unlisted bool `yaml:"unlisted,omitempty"`
}

// MemberSpec puts an item on the board.
type MemberSpec struct {
	Item   string `yaml:"item"`
	Column string `yaml:"column,omitempty"`
	Sprint string `yaml:"sprint,omitempty"`
}

// FailureSpec scripts platform errors.
type FailureSpec struct {
	Op      string `yaml:"op"`
	Subject string `yaml:"subject,omitempty"`
	Status  int    `yaml:"status"`
	Message string `yaml:"message,omitempty"`
	// Times is how many consecutive calls fail (default 1).
	Times int `yaml:"times,omitempty"`
}

// Assertion validates the plan or the report.
type Assertion struct {
	Type      string          `yaml:"type"`
	Item      string          `yaml:"item,omitempty"`
	Mutations []string        `yaml:"mutations,omitempty"`
	Field     string          `yaml:"field,omitempty"`
	Status    string          `yaml:"status,omitempty"`
	Reason    string          `yaml:"reason,omitempty"`
	Attempts  int             `yaml:"attempts,omitempty"`
	Summary   *engine.Summary `yaml:"summary,omitempty"`
	Count     *int            `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPlan        = "plan"
	AssertNoMutations = "no_mutations"
	AssertOutcome     = "outcome"
	AssertSummary     = "summary"
	AssertWarning     = "warning"
	AssertWrites      = "writes"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the rule file path is resolved against the scenario's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and cross references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Rules == "" {
		return fmt.Errorf("rules is required")
	}
	if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
		return fmt.Errorf("now: %w", err)
	}
	switch s.Mode {
	case "", ModePlan, ModeRun:
	default:
		return fmt.Errorf("mode %q must be plan or run", s.Mode)
	}

	ids := make(map[string]ItemSpec, len(s.Items))
	for i, it := range s.Items {
		if it.ID == "" {
			return fmt.Errorf("items[%d]: id is required", i)
		}
		if _, dup := ids[it.ID]; dup {
			return fmt.Errorf("items[%d]: duplicate id %q", i, it.ID)
		}
		if it.Kind != string(ir.KindPullRequest) && it.Kind != string(ir.KindIssue) {
			return fmt.Errorf("items[%d]: kind %q must be PullRequest or Issue", i, it.Kind)
		}
		ids[it.ID] = it
	}
	for _, it := range s.Items {
		for _, c := range it.Closes {
			target, ok := ids[c]
			if !ok || target.Kind != string(ir.KindIssue) {
				return fmt.Errorf("item %s closes unknown issue %q", it.ID, c)
			}
		}
	}
	for i, m := range s.Board {
		if _, ok := ids[m.Item]; !ok {
			return fmt.Errorf("board[%d]: unknown item %q", i, m.Item)
		}
		if _, ok := ir.ParseColumn(m.Column); m.Column != "" && !ok {
			return fmt.Errorf("board[%d]: unknown column %q", i, m.Column)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertPlan, AssertNoMutations, AssertWarning, AssertWrites:
		case AssertOutcome, AssertSummary:
			if s.Mode != ModeRun {
				return fmt.Errorf("assertions[%d]: %s requires mode run", i, a.Type)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
		if a.Item != "" {
			if _, ok := ids[a.Item]; !ok {
				return fmt.Errorf("assertions[%d]: unknown item %q", i, a.Item)
			}
		}
	}
	return nil
}
