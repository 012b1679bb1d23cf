package optimizer

import (
	"fmt"
	"strings"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/buildspec"
)

// currentImagePrefixes are the curated CodeBuild images still maintained.
// Any other aws/codebuild/ image is a retired language or docker image.
var currentImagePrefixes = []string{
	"aws/codebuild/standard:",
	"aws/codebuild/amazonlinux",
	"aws/codebuild/windows-base:",
}

// legacyDockerImage runs its own Docker daemon without privileged mode.
const legacyDockerImage = "aws/codebuild/docker:"

// projectRules contains optimization rules for CodeBuild projects.
var projectRules = []Rule{
	{
		ID:          "OPT-CB-001",
		Category:    "reliability",
		Title:       "Build image is retired",
		Description: "Retired curated images receive no security patches and may be removed",
		Check: func(res codebuild_cfn.ResourceDef) *codebuild_cfn.OptimizeSuggestion {
			image := environmentString(res, "Image")
			if !isRetiredImage(image) {
				return nil
			}
			return &codebuild_cfn.OptimizeSuggestion{
				Path:        "Properties/Environment/Image",
				Severity:    "high",
				Description: fmt.Sprintf("%s is no longer maintained by CodeBuild.", image),
				Suggestion:  "Use aws/codebuild/standard:7.0 and set Environment.PrivilegedMode to true for docker builds.",
			}
		},
	},
	{
		ID:          "OPT-CB-002",
		Category:    "performance",
		Title:       "Project has no build cache",
		Description: "A local docker layer cache avoids rebuilding unchanged layers",
		Check: func(res codebuild_cfn.ResourceDef) *codebuild_cfn.OptimizeSuggestion {
			if _, ok := res.Properties["Cache"]; ok {
				return nil
			}
			return &codebuild_cfn.OptimizeSuggestion{
				Path:        "Properties/Cache",
				Severity:    "low",
				Description: "Every build starts from an empty docker layer cache.",
				Suggestion:  "Add Cache with Type LOCAL and Modes [LOCAL_DOCKER_LAYER_CACHE].",
			}
		},
	},
	{
		ID:          "OPT-CB-003",
		Category:    "cost",
		Title:       "Project uses the default build timeout",
		Description: "A hung build is billed for the full default of 60 minutes",
		Check: func(res codebuild_cfn.ResourceDef) *codebuild_cfn.OptimizeSuggestion {
			if _, ok := res.Properties["TimeoutInMinutes"]; ok {
				return nil
			}
			return &codebuild_cfn.OptimizeSuggestion{
				Path:        "Properties/TimeoutInMinutes",
				Severity:    "low",
				Description: "TimeoutInMinutes is unset, so CodeBuild allows 60 minutes per build.",
				Suggestion:  "Set TimeoutInMinutes close to the expected build duration.",
			}
		},
	},
	{
		ID:          "OPT-CB-004",
		Category:    "reliability",
		Title:       "Docker build without privileged mode",
		Description: "Running docker inside CodeBuild needs PrivilegedMode on current images",
		Check: func(res codebuild_cfn.ResourceDef) *codebuild_cfn.OptimizeSuggestion {
			if strings.HasPrefix(environmentString(res, "Image"), legacyDockerImage) {
				return nil
			}
			if env, ok := res.Properties["Environment"].(map[string]any); ok && env["PrivilegedMode"] == true {
				return nil
			}
			if !runsDocker(res) {
				return nil
			}
			return &codebuild_cfn.OptimizeSuggestion{
				Path:        "Properties/Environment/PrivilegedMode",
				Severity:    "medium",
				Description: "The buildspec runs docker but the container is not privileged, so the daemon cannot start.",
				Suggestion:  "Set Environment.PrivilegedMode to true.",
			}
		},
	},
}

// roleRules contains optimization rules for IAM roles.
var roleRules = []Rule{
	{
		ID:          "OPT-IAM-001",
		Category:    "security",
		Title:       "Role has full-access managed policies",
		Description: "FullAccess policies grant every action of a service",
		Check: func(res codebuild_cfn.ResourceDef) *codebuild_cfn.OptimizeSuggestion {
			var broad []string
			for _, arn := range stringList(res.Properties["ManagedPolicyArns"]) {
				if strings.HasSuffix(arn, "FullAccess") {
					broad = append(broad, arn[strings.LastIndex(arn, "/")+1:])
				}
			}
			if len(broad) == 0 {
				return nil
			}
			return &codebuild_cfn.OptimizeSuggestion{
				Path:        "Properties/ManagedPolicyArns",
				Severity:    "high",
				Description: fmt.Sprintf("The role attaches %s.", strings.Join(broad, ", ")),
				Suggestion:  "Replace them with an inline policy scoped to the pipeline bucket and the build's log group.",
			}
		},
	},
	{
		ID:          "OPT-IAM-002",
		Category:    "security",
		Title:       "Service trust has no source condition",
		Description: "Without aws:SourceAccount or aws:SourceArn any account's project could assume the role",
		Check: func(res codebuild_cfn.ResourceDef) *codebuild_cfn.OptimizeSuggestion {
			doc, ok := res.Properties["AssumeRolePolicyDocument"].(map[string]any)
			if !ok {
				return nil
			}
			for _, stmt := range statements(doc) {
				if stmt["Effect"] != "Allow" {
					continue
				}
				principal, _ := stmt["Principal"].(map[string]any)
				if principal == nil || principal["Service"] == nil {
					continue
				}
				if _, conditioned := stmt["Condition"]; conditioned {
					continue
				}
				return &codebuild_cfn.OptimizeSuggestion{
					Path:        "Properties/AssumeRolePolicyDocument",
					Severity:    "medium",
					Description: "A service principal may assume the role with no condition on the calling account.",
					Suggestion:  `Add Condition {"StringEquals": {"aws:SourceAccount": {"Ref": "AWS::AccountId"}}}.`,
				}
			}
			return nil
		},
	},
}

func isRetiredImage(image string) bool {
	if !strings.HasPrefix(image, "aws/codebuild/") {
		return false
	}
	for _, prefix := range currentImagePrefixes {
		if strings.HasPrefix(image, prefix) {
			return false
		}
	}
	return true
}

func environmentString(res codebuild_cfn.ResourceDef, key string) string {
	env, _ := res.Properties["Environment"].(map[string]any)
	s, _ := env[key].(string)
	return s
}

// runsDocker reports whether the embedded buildspec invokes docker.
func runsDocker(res codebuild_cfn.ResourceDef) bool {
	source, _ := res.Properties["Source"].(map[string]any)
	text, _ := source["BuildSpec"].(string)
	if text == "" {
		return false
	}
	spec, err := buildspec.Parse(text)
	if err != nil {
		return false
	}
	for _, cmd := range spec.AllCommands() {
		if strings.HasPrefix(strings.TrimSpace(cmd), "docker ") {
			return true
		}
	}
	return false
}

func statements(doc map[string]any) []map[string]any {
	var out []map[string]any
	switch s := doc["Statement"].(type) {
	case map[string]any:
		out = append(out, s)
	case []any:
		for _, elem := range s {
			if m, ok := elem.(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func stringList(v any) []string {
	var out []string
	switch list := v.(type) {
	case []any:
		for _, elem := range list {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, list...)
	}
	return out
}
