package validation

import (
	"path/filepath"
	"testing"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/codebuild-cfn-go/internal/config"
	"github.com/lex00/codebuild-cfn-go/internal/generator"
	locallint "github.com/lex00/codebuild-cfn-go/internal/lint"
)

func TestCfnLintResult_TotalIssues(t *testing.T) {
	tests := []struct {
		name     string
		result   CfnLintResult
		expected int
	}{
		{"empty result", CfnLintResult{}, 0},
		{"errors only", CfnLintResult{Errors: []string{"error1", "error2"}}, 2},
		{"warnings only", CfnLintResult{Warnings: []string{"warning1"}}, 1},
		{"mixed issues", CfnLintResult{
			Errors:        []string{"error1"},
			Warnings:      []string{"warning1", "warning2"},
			Informational: []string{"info1"},
		}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.TotalIssues())
		})
	}
}

func TestFormatMatch(t *testing.T) {
	tests := []struct {
		name     string
		match    lint.Match
		expected string
	}{
		{
			name: "simple match",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "E3002"},
				Message: "Invalid property",
			},
			expected: "E3002: Invalid property",
		},
		{
			name: "match with path",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "W3005"},
				Message: "Obsolete DependsOn",
				Location: lint.MatchLocation{
					Path: []any{"Resources", "CodeBuild", "Properties", "Environment", 0},
				},
			},
			expected: "W3005: Obsolete DependsOn (at Resources/CodeBuild/Properties/Environment/0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatMatch(tt.match))
		})
	}
}

func TestFormatIssue(t *testing.T) {
	assert.Equal(t, "CFN003: dup (at CodeBuild/Properties/Environment)", FormatIssue(locallint.Issue{
		Rule: "CFN003", Message: "dup", Resource: "CodeBuild", Path: "Properties/Environment",
	}))
	assert.Equal(t, "CFN001: missing", FormatIssue(locallint.Issue{Rule: "CFN001", Message: "missing"}))
}

func TestRunCfnLint_MissingFile(t *testing.T) {
	result, err := RunCfnLint(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not found")
}

func TestValidateTemplate_LintOnly(t *testing.T) {
	tmpl, err := generator.Generate(config.Default())
	require.NoError(t, err)

	result, err := ValidateTemplate(tmpl, Options{SkipCfnLint: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Resources)
	assert.Nil(t, result.CfnLintResult)
	assert.True(t, result.Passed())

	summary := result.Summary()
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.Resources)
	assert.Empty(t, summary.Errors)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "CFN006")
}

func TestValidationResult_Summary(t *testing.T) {
	result := ValidationResult{
		Resources: 2,
		LintResult: locallint.Result{
			Success: false,
			Issues: []locallint.Issue{
				{Rule: "CFN004", Severity: locallint.SeverityError, Message: "bad arn", Resource: "ServiceRole"},
			},
		},
		CfnLintResult: &CfnLintResult{
			Passed:        true,
			Warnings:      []string{"W1: w"},
			Informational: []string{"I1: i"},
		},
	}

	assert.False(t, result.Passed())
	summary := result.Summary()
	assert.False(t, summary.Success)
	assert.Equal(t, []string{"CFN004: bad arn (at ServiceRole)"}, summary.Errors)
	assert.Equal(t, []string{"W1: w", "I1: i"}, summary.Warnings)

	result.LintResult = locallint.Result{Success: true}
	result.CfnLintResult.Passed = false
	assert.False(t, result.Passed())
}
