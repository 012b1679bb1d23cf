// Package lint checks generated or loaded CloudFormation templates for the
// invariants of a CodeBuild container-build stack.
//
// Rules:
//
//	CFN001: Service roles must let CodeBuild assume them
//	CFN002: Project ServiceRole must reference an IAM role in the template
//	CFN003: Environment variable names must be unique per project
//	CFN004: Managed policy ARNs must be well-formed IAM policy ARNs
//	CFN005: Embedded buildspec must parse and define at least one phase
//	CFN006: Buildspec should not pin a pipeline execution id
//	CFN007: Required resource properties must be present
package lint

import (
	"sort"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
)

// Issue is a single problem found in a template.
type Issue = codebuild_cfn.LintIssue

// Severity levels reported in Issue.Severity.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Rule is the interface for template lint rules.
type Rule interface {
	ID() string
	Description() string
	Check(t *codebuild_cfn.Template) []Issue
}

// Result contains the outcome of linting.
type Result struct {
	// Success is false when any issue has error severity.
	Success bool
	Issues  []Issue
}

// Errors returns the issues with error severity.
func (r Result) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the issues with warning severity.
func (r Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r Result) filter(severity string) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

// Options configures the linter.
type Options struct {
	// Rules to enable. If empty, all rules are enabled.
	EnabledRules []string
}

// Template runs the enabled rules against t. Issues are ordered by
// resource, then rule, then path.
func Template(t *codebuild_cfn.Template, opts Options) Result {
	var issues []Issue
	for _, rule := range getRules(opts) {
		issues = append(issues, rule.Check(t)...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Path < b.Path
	})

	success := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			success = false
			break
		}
	}

	return Result{Success: success, Issues: issues}
}

// AllRules returns every rule in ID order.
func AllRules() []Rule {
	return []Rule{
		CodeBuildTrust{},
		ServiceRoleReference{},
		DuplicateEnvironmentVariable{},
		ManagedPolicyARN{},
		BuildSpecDocument{},
		PinnedExecutionID{},
		RequiredProperties{},
	}
}

func getRules(opts Options) []Rule {
	all := AllRules()
	if len(opts.EnabledRules) == 0 {
		return all
	}

	enabled := make(map[string]bool)
	for _, id := range opts.EnabledRules {
		enabled[id] = true
	}

	var filtered []Rule
	for _, r := range all {
		if enabled[r.ID()] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
