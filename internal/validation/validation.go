// Package validation checks a template with cfn-lint-go and the local
// lint rules.
//
//   - cfn-lint-go: CloudFormation schema and best-practice rules (library dependency)
//   - lint: CodeBuild stack invariants (internal/lint)
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"go.uber.org/zap"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	locallint "github.com/lex00/codebuild-cfn-go/internal/lint"
	"github.com/lex00/codebuild-cfn-go/internal/template"
)

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// ValidationResult contains every check run against one template.
type ValidationResult struct {
	Resources     int              `json:"resources"`
	LintResult    locallint.Result `json:"lint_result"`
	CfnLintResult *CfnLintResult   `json:"cfn_lint_result,omitempty"`
}

// Passed reports whether no check found an error.
func (r ValidationResult) Passed() bool {
	if !r.LintResult.Success {
		return false
	}
	return r.CfnLintResult == nil || r.CfnLintResult.Passed
}

// Summary flattens the result into the CLI's validate output.
func (r ValidationResult) Summary() codebuild_cfn.ValidateResult {
	out := codebuild_cfn.ValidateResult{
		Success:   r.Passed(),
		Resources: r.Resources,
	}
	for _, issue := range r.LintResult.Issues {
		line := FormatIssue(issue)
		if issue.Severity == locallint.SeverityError {
			out.Errors = append(out.Errors, line)
		} else {
			out.Warnings = append(out.Warnings, line)
		}
	}
	if r.CfnLintResult != nil {
		out.Errors = append(out.Errors, r.CfnLintResult.Errors...)
		out.Warnings = append(out.Warnings, r.CfnLintResult.Warnings...)
		out.Warnings = append(out.Warnings, r.CfnLintResult.Informational...)
	}
	return out
}

// FormatIssue formats a local lint issue for display.
func FormatIssue(issue locallint.Issue) string {
	where := issue.Resource
	if issue.Path != "" {
		where += "/" + issue.Path
	}
	if where == "" {
		return fmt.Sprintf("%s: %s", issue.Rule, issue.Message)
	}
	return fmt.Sprintf("%s: %s (at %s)", issue.Rule, issue.Message, where)
}

// Options configures ValidateTemplate.
type Options struct {
	// SkipCfnLint runs only the local lint rules.
	SkipCfnLint bool
	// Lint configures the local rules.
	Lint locallint.Options
}

// ValidateTemplate lints t locally and, unless skipped, writes it to a
// temporary file and runs cfn-lint-go on it.
func ValidateTemplate(t *codebuild_cfn.Template, opts Options) (*ValidationResult, error) {
	result := &ValidationResult{
		Resources:  len(t.Resources),
		LintResult: locallint.Template(t, opts.Lint),
	}
	if opts.SkipCfnLint {
		return result, nil
	}

	data, err := template.ToJSON(t)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "codebuild-cfn-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "template.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}

	cfnResult, err := RunCfnLint(path)
	if err != nil {
		return nil, fmt.Errorf("running cfn-lint: %w", err)
	}
	result.CfnLintResult = cfnResult
	return result, nil
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}, nil
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}

	for _, match := range matches {
		formatted := formatMatch(match)

		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable
	result.Passed = len(result.Errors) == 0

	zap.S().Debugw("cfn-lint finished",
		"template", templatePath,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	pathStr := ""
	if len(match.Location.Path) > 0 {
		parts := make([]string, len(match.Location.Path))
		for i, p := range match.Location.Path {
			parts[i] = fmt.Sprintf("%v", p)
		}
		pathStr = strings.Join(parts, "/")
	}

	if pathStr != "" {
		return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, pathStr)
	}
	return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
}
