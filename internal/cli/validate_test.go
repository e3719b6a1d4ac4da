package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardsync/internal/rules"
)

func TestValidateValidRules(t *testing.T) {
	out, _, err := execute(t, nil, "validate", testRules)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ testdata/rules.yaml is valid (10 rules)")
}

func TestValidateDefaultsToRulesFlag(t *testing.T) {
	out, _, err := execute(t, nil, "--rules", testRules, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestValidateValidRulesJSON(t *testing.T) {
	out, _, err := execute(t, nil, "--format", "json", "validate", testRules)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 10, resp.Data.Rules)
}

// writeRules writes a variant of the test rule file with old replaced by new.
func writeRules(t *testing.T, old, new string) string {
	t.Helper()
	data, err := os.ReadFile(testRules)
	require.NoError(t, err)
	require.Contains(t, string(data), old)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), old, new, 1)), 0o644))
	return path
}

func TestValidateReportsViolations(t *testing.T) {
	path := writeRules(t,
		"condition: item.merged\n",
		"condition: item.merged ||\n")

	out, _, err := execute(t, nil, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "violation(s)")
	assert.Contains(t, out, rules.ErrCodeInvalidExpression)
	assert.Contains(t, out, "automation.columns.rules[1]")
}

func TestValidateReportsViolationsJSON(t *testing.T) {
	path := writeRules(t, "  batch_size: 10\n", "  batch_size: 10\n  colour: blue\n")

	out, _, err := execute(t, nil, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, resp.Data.Errors[0].Code, resp.Error.Code)
}

func TestValidateMissingFile(t *testing.T) {
	out, _, err := execute(t, nil, "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]")
}
