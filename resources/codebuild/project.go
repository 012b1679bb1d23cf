// Package codebuild contains CloudFormation resource types for AWS CodeBuild.
package codebuild

import (
	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
)

// Project represents AWS::CodeBuild::Project.
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-codebuild-project.html
type Project struct {
	Artifacts Project_Artifacts `json:"Artifacts"`

	Cache *Project_ProjectCache `json:"Cache,omitempty"`

	Description any `json:"Description,omitempty"`

	Environment Project_Environment `json:"Environment"`

	Name any `json:"Name,omitempty"`

	// ServiceRole is the ARN or name of the role CodeBuild assumes. A Ref to an
	// AWS::IAM::Role resolves to the role name, which CodeBuild accepts.
	ServiceRole any `json:"ServiceRole"`

	Source Project_Source `json:"Source"`

	Tags []any `json:"Tags,omitempty"`

	TimeoutInMinutes any `json:"TimeoutInMinutes,omitempty"`

	// Arn is the GetAtt reference for the project ARN.
	Arn codebuild_cfn.AttrRef `json:"-"`
}

// ResourceType returns the CloudFormation resource type.
func (r Project) ResourceType() string {
	return "AWS::CodeBuild::Project"
}

// WithAttrRefs returns a copy of the project whose attribute references point
// at the given logical name.
func (r Project) WithAttrRefs(logicalName string) Project {
	r.Arn = codebuild_cfn.AttrRef{Resource: logicalName, Attribute: "Arn"}
	return r
}

// Project_Artifacts describes the build output artifacts.
type Project_Artifacts struct {
	Location      any `json:"Location,omitempty"`
	Name          any `json:"Name,omitempty"`
	NamespaceType any `json:"NamespaceType,omitempty"`
	Packaging     any `json:"Packaging,omitempty"`
	Path          any `json:"Path,omitempty"`
	Type          any `json:"Type"`
}

// Project_ProjectCache configures the build cache.
type Project_ProjectCache struct {
	Location any   `json:"Location,omitempty"`
	Modes    []any `json:"Modes,omitempty"`
	Type     any   `json:"Type"`
}

// Project_Environment describes the build environment.
type Project_Environment struct {
	Certificate          any   `json:"Certificate,omitempty"`
	ComputeType          any   `json:"ComputeType"`
	EnvironmentVariables []any `json:"EnvironmentVariables,omitempty"`
	Image                any   `json:"Image"`
	PrivilegedMode       any   `json:"PrivilegedMode,omitempty"`
	Type                 any   `json:"Type"`
}

// Project_EnvironmentVariable is a name/value binding exposed to the build.
type Project_EnvironmentVariable struct {
	Name  any `json:"Name"`
	Type  any `json:"Type,omitempty"`
	Value any `json:"Value"`
}

// Project_Source describes the build input.
type Project_Source struct {
	BuildSpec any `json:"BuildSpec,omitempty"`
	Location  any `json:"Location,omitempty"`
	Type      any `json:"Type"`
}
