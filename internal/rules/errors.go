package rules

import (
	"fmt"
	"strings"
)

// Validation error codes. E0xx are read/parse failures, E1xx are rule
// file violations.
const (
	ErrCodeRead  = "E001" // rule file could not be read
	ErrCodeParse = "E002" // YAML syntax error

	ErrCodeSchema            = "E100" // structural schema violation
	ErrCodeInvalidExpression = "E101" // condition outside the grammar
	ErrCodeLinkedIdentifier  = "E102" // item.pr.* outside linked_issues
	ErrCodeActionSection     = "E103" // action not allowed in section
	ErrCodeInvalidValue      = "E104" // missing or invalid action value
	ErrCodeDuplicateName     = "E105" // duplicate rule name
	ErrCodeTransitions       = "E106" // validTransitions missing or misplaced
	ErrCodeTriggerType       = "E107" // trigger type not allowed in section
	ErrCodeTransitionShape   = "E108" // transition that can never apply
	ErrCodeTimezone          = "E109" // unknown timezone
	ErrCodeScope             = "E110" // malformed user or repository scope
)

// ValidationError is one violation in a rule file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// LoadError reports every violation found while loading a rule file.
type LoadError struct {
	Path       string
	Violations []ValidationError
}

func (e *LoadError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("rule file %s: %s", e.Path, e.Violations[0].Error())
	}
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = "  " + v.Error()
	}
	return fmt.Sprintf("rule file %s: %d violations:\n%s", e.Path, len(e.Violations), strings.Join(lines, "\n"))
}
