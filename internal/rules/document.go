package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document mirrors the rule file as written. It is only an intermediate
// form; engine code consumes the compiled RuleSet.
type Document struct {
	Project    ProjectDoc    `yaml:"project"`
	Automation AutomationDoc `yaml:"automation"`
	Technical  TechnicalDoc  `yaml:"technical"`
}

type ProjectDoc struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Timezone string        `yaml:"timezone"`
	Fields   FieldNamesDoc `yaml:"fields"`
}

type FieldNamesDoc struct {
	Status string `yaml:"status"`
	Sprint string `yaml:"sprint"`
}

type AutomationDoc struct {
	UserScope       UserScopeDoc       `yaml:"user_scope"`
	RepositoryScope RepositoryScopeDoc `yaml:"repository_scope"`
	BoardItems      SectionDoc         `yaml:"board_items"`
	Columns         SectionDoc         `yaml:"columns"`
	Sprints         SectionDoc         `yaml:"sprints"`
	LinkedIssues    SectionDoc         `yaml:"linked_issues"`
	Assignees       SectionDoc         `yaml:"assignees"`
}

type UserScopeDoc struct {
	MonitoredUsers []MonitoredUserDoc `yaml:"monitored_users"`
}

// MonitoredUserDoc is either a bare login or token ("GITHUB_AUTHOR") or a
// record {name, type, description}.
type MonitoredUserDoc struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Line        int    `yaml:"-"`
}

// UnmarshalYAML accepts the scalar and mapping forms.
func (u *MonitoredUserDoc) UnmarshalYAML(node *yaml.Node) error {
	u.Line = node.Line
	if node.Kind == yaml.ScalarNode {
		u.Name = node.Value
		return nil
	}
	type plain MonitoredUserDoc
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*u = MonitoredUserDoc(p)
	u.Line = node.Line
	return nil
}

type RepositoryScopeDoc struct {
	Organization string   `yaml:"organization"`
	Repositories []string `yaml:"repositories"`
}

type SectionDoc struct {
	Description string    `yaml:"description"`
	Rules       []RuleDoc `yaml:"rules"`
}

type RuleDoc struct {
	Name             string          `yaml:"name"`
	Description      string          `yaml:"description"`
	Trigger          TriggerDoc      `yaml:"trigger"`
	Action           string          `yaml:"action"`
	Value            string          `yaml:"value"`
	SkipIf           string          `yaml:"skip_if"`
	ValidTransitions []TransitionDoc `yaml:"validTransitions"`
	Line             int             `yaml:"-"`
}

// UnmarshalYAML records the line of the rule.
func (r *RuleDoc) UnmarshalYAML(node *yaml.Node) error {
	type plain RuleDoc
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = RuleDoc(p)
	r.Line = node.Line
	return nil
}

type TriggerDoc struct {
	Type      KindList `yaml:"type"`
	Condition string   `yaml:"condition"`
}

// KindList is trigger.type: a single kind or a list of kinds.
type KindList []string

// UnmarshalYAML accepts a scalar or a sequence.
func (k *KindList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*k = KindList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*k = list
		return nil
	default:
		return fmt.Errorf("line %d: trigger.type must be a string or a list", node.Line)
	}
}

type TransitionDoc struct {
	From       string   `yaml:"from"`
	To         string   `yaml:"to"`
	Conditions []string `yaml:"conditions"`
	Line       int      `yaml:"-"`
}

// UnmarshalYAML records the line of the transition.
func (t *TransitionDoc) UnmarshalYAML(node *yaml.Node) error {
	type plain TransitionDoc
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = TransitionDoc(p)
	t.Line = node.Line
	return nil
}

type TechnicalDoc struct {
	BatchSize         int             `yaml:"batch_size"`
	BatchDelaySeconds int             `yaml:"batch_delay_seconds"`
	UpdateWindowHours int             `yaml:"update_window_hours"`
	Optimization      OptimizationDoc `yaml:"optimization"`
	Retry             RetryDoc        `yaml:"retry"`
	RateLimit         RateLimitDoc    `yaml:"rate_limit"`
	Report            ReportDoc       `yaml:"report"`
}

type OptimizationDoc struct {
	SkipUnchanged bool `yaml:"skip_unchanged"`
	DedupByID     bool `yaml:"dedup_by_id"`
}

// RetryDoc uses pointers so an explicit zero delay is distinguishable from
// an omitted key.
type RetryDoc struct {
	MaxRetries          *int `yaml:"max_retries"`
	InitialDelaySeconds *int `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     *int `yaml:"max_delay_seconds"`
}

type RateLimitDoc struct {
	MinRemaining      *int `yaml:"min_remaining"`
	RequestsPerSecond int  `yaml:"requests_per_second"`
}

type ReportDoc struct {
	TopN int `yaml:"top_n"`
}
