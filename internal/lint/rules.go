package lint

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/buildspec"
	"github.com/lex00/codebuild-cfn-go/internal/config"
	"github.com/lex00/codebuild-cfn-go/intrinsics"
)

const (
	roleType    = "AWS::IAM::Role"
	projectType = "AWS::CodeBuild::Project"

	codeBuildPrincipal = "codebuild.amazonaws.com"
)

// resourcesOfType returns matching logical names in sorted order.
func resourcesOfType(t *codebuild_cfn.Template, resourceType string) []string {
	names := t.ResourcesOfType(resourceType)
	sort.Strings(names)
	return names
}

func path(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, "/")
}

// roleTarget returns the logical name a ServiceRole value points at, if it
// is a Ref or Fn::GetAtt.
func roleTarget(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	if name, ok := m["Ref"].(string); ok {
		return name, true
	}
	switch args := m["Fn::GetAtt"].(type) {
	case []any:
		if len(args) == 2 {
			name, ok := args[0].(string)
			return name, ok
		}
	case string:
		name, _, _ := strings.Cut(args, ".")
		return name, true
	}
	return "", false
}

// stringList normalizes a policy value that may be a string or a list.
func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	}
	return nil
}

func contains(list []string, values ...string) bool {
	for _, item := range list {
		for _, v := range values {
			if item == v {
				return true
			}
		}
	}
	return false
}

// CodeBuildTrust checks that every role used as a project ServiceRole has a
// trust statement allowing sts:AssumeRole to codebuild.amazonaws.com.
type CodeBuildTrust struct{}

func (r CodeBuildTrust) ID() string { return "CFN001" }
func (r CodeBuildTrust) Description() string {
	return "Service roles must let CodeBuild assume them"
}

func (r CodeBuildTrust) Check(t *codebuild_cfn.Template) []Issue {
	used := make(map[string]bool)
	for _, name := range resourcesOfType(t, projectType) {
		if target, ok := roleTarget(t.Resources[name].Properties["ServiceRole"]); ok {
			used[target] = true
		}
	}

	var issues []Issue
	for _, name := range resourcesOfType(t, roleType) {
		if !used[name] {
			continue
		}
		doc, ok := t.Resources[name].Properties["AssumeRolePolicyDocument"].(map[string]any)
		if !ok {
			// Missing document is reported by CFN007.
			continue
		}
		if !TrustsService(doc, codeBuildPrincipal) {
			issues = append(issues, Issue{
				Resource: name,
				Path:     path("Properties", "AssumeRolePolicyDocument"),
				Severity: SeverityError,
				Message:  fmt.Sprintf("no statement allows %s to %s", intrinsics.AssumeRole, codeBuildPrincipal),
				Rule:     r.ID(),
			})
		}
	}
	return issues
}

// TrustsService reports whether a policy document allows sts:AssumeRole to
// the given service principal.
func TrustsService(doc map[string]any, service string) bool {
	var statements []any
	switch s := doc["Statement"].(type) {
	case []any:
		statements = s
	case map[string]any:
		statements = []any{s}
	}

	for _, raw := range statements {
		stmt, ok := raw.(map[string]any)
		if !ok || stmt["Effect"] != intrinsics.Allow {
			continue
		}
		if !contains(stringList(stmt["Action"]), intrinsics.AssumeRole, "sts:*", "*") {
			continue
		}
		principal, ok := stmt["Principal"].(map[string]any)
		if !ok {
			continue
		}
		if contains(stringList(principal["Service"]), service) {
			return true
		}
	}
	return false
}

// ServiceRoleReference checks that a project ServiceRole given as Ref or
// Fn::GetAtt names an IAM role in the same template.
type ServiceRoleReference struct{}

func (r ServiceRoleReference) ID() string { return "CFN002" }
func (r ServiceRoleReference) Description() string {
	return "Project ServiceRole must reference an IAM role in the template"
}

func (r ServiceRoleReference) Check(t *codebuild_cfn.Template) []Issue {
	var issues []Issue
	for _, name := range resourcesOfType(t, projectType) {
		value, ok := t.Resources[name].Properties["ServiceRole"]
		if !ok {
			continue
		}
		target, isRef := roleTarget(value)
		if !isRef {
			// A literal role ARN or name points outside the template.
			continue
		}

		issue := Issue{
			Resource: name,
			Path:     path("Properties", "ServiceRole"),
			Severity: SeverityError,
			Rule:     r.ID(),
		}
		res, exists := t.Resources[target]
		switch {
		case !exists:
			issue.Message = fmt.Sprintf("ServiceRole references %s, which is not in the template", target)
			issues = append(issues, issue)
		case res.Type != roleType:
			issue.Message = fmt.Sprintf("ServiceRole references %s of type %s, want %s", target, res.Type, roleType)
			issues = append(issues, issue)
		}
	}
	return issues
}

// DuplicateEnvironmentVariable flags environment variables defined twice in
// one project.
type DuplicateEnvironmentVariable struct{}

func (r DuplicateEnvironmentVariable) ID() string { return "CFN003" }
func (r DuplicateEnvironmentVariable) Description() string {
	return "Environment variable names must be unique per project"
}

func (r DuplicateEnvironmentVariable) Check(t *codebuild_cfn.Template) []Issue {
	var issues []Issue
	for _, name := range resourcesOfType(t, projectType) {
		env, ok := t.Resources[name].Properties["Environment"].(map[string]any)
		if !ok {
			continue
		}
		vars, _ := env["EnvironmentVariables"].([]any)

		first := make(map[string]int)
		for i, raw := range vars {
			v, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			varName, ok := v["Name"].(string)
			if !ok {
				continue
			}
			if prev, dup := first[varName]; dup {
				issues = append(issues, Issue{
					Resource: name,
					Path:     path("Properties", "Environment", "EnvironmentVariables", i, "Name"),
					Severity: SeverityError,
					Message:  fmt.Sprintf("environment variable %s already defined at index %d", varName, prev),
					Rule:     r.ID(),
				})
				continue
			}
			first[varName] = i
		}
	}
	return issues
}

// ManagedPolicyARN validates literal managed policy ARNs on roles.
type ManagedPolicyARN struct{}

func (r ManagedPolicyARN) ID() string { return "CFN004" }
func (r ManagedPolicyARN) Description() string {
	return "Managed policy ARNs must be well-formed IAM policy ARNs"
}

func (r ManagedPolicyARN) Check(t *codebuild_cfn.Template) []Issue {
	var issues []Issue
	for _, name := range resourcesOfType(t, roleType) {
		arns, _ := t.Resources[name].Properties["ManagedPolicyArns"].([]any)
		for i, raw := range arns {
			s, ok := raw.(string)
			if !ok {
				// Intrinsics resolve at deploy time.
				continue
			}
			if err := config.ValidatePolicyARN(s); err != nil {
				issues = append(issues, Issue{
					Resource: name,
					Path:     path("Properties", "ManagedPolicyArns", i),
					Severity: SeverityError,
					Message:  err.Error(),
					Rule:     r.ID(),
				})
			}
		}
	}
	return issues
}

// embeddedBuildSpec returns a project's inline buildspec text, if any.
func embeddedBuildSpec(res codebuild_cfn.ResourceDef) (string, bool) {
	source, ok := res.Properties["Source"].(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := source["BuildSpec"].(string)
	return text, ok && text != ""
}

// BuildSpecDocument parses inline buildspecs.
type BuildSpecDocument struct{}

func (r BuildSpecDocument) ID() string { return "CFN005" }
func (r BuildSpecDocument) Description() string {
	return "Embedded buildspec must parse and define at least one phase"
}

func (r BuildSpecDocument) Check(t *codebuild_cfn.Template) []Issue {
	var issues []Issue
	for _, name := range resourcesOfType(t, projectType) {
		text, ok := embeddedBuildSpec(t.Resources[name])
		if !ok {
			continue
		}
		issue := Issue{
			Resource: name,
			Path:     path("Properties", "Source", "BuildSpec"),
			Severity: SeverityError,
			Rule:     r.ID(),
		}

		spec, err := buildspec.Parse(text)
		if err != nil {
			issue.Message = err.Error()
			issues = append(issues, issue)
			continue
		}
		if err := spec.Validate(); err != nil {
			issue.Message = strings.ReplaceAll(err.Error(), "\n", "; ")
			issues = append(issues, issue)
		}
	}
	return issues
}

var (
	uuidPattern        = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	executionIDPattern = regexp.MustCompile(`execution[_-]id`)
)

// PinnedExecutionID warns when a buildspec hard-codes a pipeline execution
// id. Every build then tags the image with the same source revision.
type PinnedExecutionID struct{}

func (r PinnedExecutionID) ID() string { return "CFN006" }
func (r PinnedExecutionID) Description() string {
	return "Buildspec should not pin a pipeline execution id"
}

func (r PinnedExecutionID) Check(t *codebuild_cfn.Template) []Issue {
	var issues []Issue
	for _, name := range resourcesOfType(t, projectType) {
		text, ok := embeddedBuildSpec(t.Resources[name])
		if !ok {
			continue
		}
		spec, err := buildspec.Parse(text)
		if err != nil {
			continue
		}
		for _, np := range spec.Phases.Ordered() {
			for i, cmd := range np.Phase.Commands {
				id := uuidPattern.FindString(cmd)
				if id == "" || !executionIDPattern.MatchString(cmd) {
					continue
				}
				issues = append(issues, Issue{
					Resource: name,
					Path:     path("Properties", "Source", "BuildSpec", "phases", np.Name, "commands", i),
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("pipeline execution id %s is hard-coded; every build will use its source revision", id),
					Rule:     r.ID(),
				})
			}
		}
	}
	return issues
}

var requiredProperties = map[string][]string{
	roleType:    {"AssumeRolePolicyDocument"},
	projectType: {"Artifacts", "Environment", "ServiceRole", "Source"},
}

// RequiredProperties checks the properties CloudFormation requires for the
// resource types this tool emits.
type RequiredProperties struct{}

func (r RequiredProperties) ID() string { return "CFN007" }
func (r RequiredProperties) Description() string {
	return "Required resource properties must be present"
}

func (r RequiredProperties) Check(t *codebuild_cfn.Template) []Issue {
	var issues []Issue
	names := t.ResourceNames()
	sort.Strings(names)
	for _, name := range names {
		res := t.Resources[name]
		for _, prop := range requiredProperties[res.Type] {
			if _, ok := res.Properties[prop]; ok {
				continue
			}
			issues = append(issues, Issue{
				Resource: name,
				Path:     path("Properties", prop),
				Severity: SeverityError,
				Message:  fmt.Sprintf("%s requires %s", res.Type, prop),
				Rule:     r.ID(),
			})
		}
	}
	return issues
}
