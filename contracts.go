// Package codebuild_cfn provides the CloudFormation template model used by
// the codebuild-cfn generator.
//
// The generator assembles typed resources into a Template:
//
//	var ServiceRole = iam.Role{
//	    AssumeRolePolicyDocument: CodeBuildTrustPolicy,
//	    Path:                     "/",
//	}
//
//	var CodeBuild = codebuild.Project{
//	    Name:        "HelloWorldContainer",
//	    ServiceRole: Ref{LogicalName: "ServiceRole"},
//	}
//
// and the codebuild-cfn CLI prints the resulting template as JSON or YAML.
package codebuild_cfn

import (
	"encoding/json"
)

// TemplateFormatVersion is the only CloudFormation template format version.
const TemplateFormatVersion = "2010-09-09"

// Resource represents a CloudFormation resource.
// All resource types (iam.Role, codebuild.Project) implement this interface.
type Resource interface {
	// ResourceType returns the CloudFormation type (e.g., "AWS::IAM::Role")
	ResourceType() string
}

// AttrRef represents a GetAtt reference to a resource attribute.
// Resource types carry AttrRef fields for the attributes they expose.
//
// When serialized to CloudFormation JSON, AttrRef becomes:
//
//	{"Fn::GetAtt": ["ServiceRole", "Arn"]}
type AttrRef struct {
	// Resource is the logical name of the referenced resource
	Resource string
	// Attribute is the attribute name (e.g., "Arn", "RoleId")
	Attribute string
}

// MarshalJSON serializes AttrRef to CloudFormation GetAtt syntax.
func (a AttrRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{
		"Fn::GetAtt": {a.Resource, a.Attribute},
	})
}

// IsZero returns true if the AttrRef has not been populated.
func (a AttrRef) IsZero() bool {
	return a.Resource == "" && a.Attribute == ""
}

// Template represents a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string                 `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                 `json:"Description,omitempty" yaml:"Description,omitempty"`
	Resources                map[string]ResourceDef `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output      `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// ResourceNames returns the logical names of all resources in the template.
func (t *Template) ResourceNames() []string {
	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	return names
}

// ResourcesOfType returns the logical names of resources with the given
// CloudFormation type.
func (t *Template) ResourcesOfType(resourceType string) []string {
	var names []string
	for name, def := range t.Resources {
		if def.Type == resourceType {
			names = append(names, name)
		}
	}
	return names
}

// ResourceDef is a single resource in the CloudFormation template.
type ResourceDef struct {
	Type       string         `json:"Type" yaml:"Type"`
	Properties map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
}

// Output is a CloudFormation template output.
type Output struct {
	Description string  `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any     `json:"Value" yaml:"Value"`
	Export      *Export `json:"Export,omitempty" yaml:"Export,omitempty"`
}

// Export names an output for cross-stack Fn::ImportValue.
type Export struct {
	Name string `json:"Name" yaml:"Name"`
}

// BuildResult reports one generation run of `codebuild-cfn watch`.
type BuildResult struct {
	Success   bool     `json:"success"`
	Template  Template `json:"template,omitempty"`
	Resources []string `json:"resources,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// LintIssue is a single linting issue found in a template.
type LintIssue struct {
	Resource string `json:"resource,omitempty"`
	Path     string `json:"path,omitempty"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Rule     string `json:"rule"`
}

// ValidateResult is the JSON output from `codebuild-cfn validate`.
type ValidateResult struct {
	Success   bool     `json:"success"`
	Resources int      `json:"resources"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// DiffEntry describes one added, removed or modified resource.
type DiffEntry struct {
	Resource string   `json:"resource"`
	Type     string   `json:"type"`
	Changes  []string `json:"changes,omitempty"`
}

// TemplateDiff groups resource differences between two templates.
type TemplateDiff struct {
	Added              []DiffEntry `json:"added,omitempty"`
	Removed            []DiffEntry `json:"removed,omitempty"`
	Modified           []DiffEntry `json:"modified,omitempty"`
	DescriptionChanged bool        `json:"description_changed,omitempty"`
}

// DiffSummary counts the entries of a TemplateDiff.
type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Total    int `json:"total"`
}

// OptimizeSuggestion is one improvement proposed by `codebuild-cfn optimize`.
type OptimizeSuggestion struct {
	Rule        string `json:"rule"`
	Resource    string `json:"resource"`
	Path        string `json:"path,omitempty"`
	Category    string `json:"category"` // "security", "cost", "performance", "reliability"
	Severity    string `json:"severity"` // "high", "medium", "low"
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

// OptimizeSummary counts suggestions per category.
type OptimizeSummary struct {
	Security    int `json:"security"`
	Cost        int `json:"cost"`
	Performance int `json:"performance"`
	Reliability int `json:"reliability"`
	Total       int `json:"total"`
}

// OptimizeResult is the JSON output from `codebuild-cfn optimize`.
type OptimizeResult struct {
	Success       bool                 `json:"success"`
	ResourceCount int                  `json:"resource_count"`
	Suggestions   []OptimizeSuggestion `json:"suggestions"`
	Summary       OptimizeSummary      `json:"summary"`
}
