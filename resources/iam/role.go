// Package iam contains CloudFormation resource types for AWS Identity and Access Management.
package iam

import (
	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
)

// Role represents AWS::IAM::Role.
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-iam-role.html
type Role struct {
	// AssumeRolePolicyDocument is the trust policy associated with this role.
	AssumeRolePolicyDocument any `json:"AssumeRolePolicyDocument"`

	Description any `json:"Description,omitempty"`

	// ManagedPolicyArns lists the ARNs of the IAM managed policies attached to the role.
	ManagedPolicyArns []any `json:"ManagedPolicyArns,omitempty"`

	MaxSessionDuration any `json:"MaxSessionDuration,omitempty"`

	// Path is the path to the role.
	Path any `json:"Path,omitempty"`

	PermissionsBoundary any `json:"PermissionsBoundary,omitempty"`

	// Policies are inline policies embedded in the role.
	Policies []any `json:"Policies,omitempty"`

	RoleName any `json:"RoleName,omitempty"`

	Tags []any `json:"Tags,omitempty"`

	// Arn is the GetAtt reference for the role ARN.
	Arn codebuild_cfn.AttrRef `json:"-"`

	// RoleId is the GetAtt reference for the stable role ID.
	RoleId codebuild_cfn.AttrRef `json:"-"`
}

// ResourceType returns the CloudFormation resource type.
func (r Role) ResourceType() string {
	return "AWS::IAM::Role"
}

// WithAttrRefs returns a copy of the role whose attribute references point at
// the given logical name.
func (r Role) WithAttrRefs(logicalName string) Role {
	r.Arn = codebuild_cfn.AttrRef{Resource: logicalName, Attribute: "Arn"}
	r.RoleId = codebuild_cfn.AttrRef{Resource: logicalName, Attribute: "RoleId"}
	return r
}

// Role_Policy is an inline policy of AWS::IAM::Role.
type Role_Policy struct {
	PolicyDocument any `json:"PolicyDocument"`
	PolicyName     any `json:"PolicyName"`
}
