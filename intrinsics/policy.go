// Package intrinsics provides CloudFormation intrinsic functions.
// This file contains IAM policy document types and helpers.
package intrinsics

import (
	"encoding/json"
)

// PolicyVersion is the current IAM policy language version.
const PolicyVersion = "2012-10-17"

// AssumeRole is the STS action a trust policy grants to its principal.
const AssumeRole = "sts:AssumeRole"

// ManagedPolicyPrefix prefixes the ARN of every AWS managed policy.
const ManagedPolicyPrefix = "arn:aws:iam::aws:policy/"

// Effects for PolicyStatement.
const (
	Allow = "Allow"
	Deny  = "Deny"
)

// PolicyDocument represents an IAM policy document.
type PolicyDocument struct {
	Version   string `json:"Version,omitempty"`
	Statement []any  `json:"Statement"`
}

// PolicyStatement represents an IAM policy statement.
//
//	var CodeBuildAssumeRole = PolicyStatement{
//	    Effect:    Allow,
//	    Principal: ServicePrincipal{"codebuild.amazonaws.com"},
//	    Action:    []any{AssumeRole},
//	}
type PolicyStatement struct {
	Sid       string         `json:"Sid,omitempty"`
	Effect    string         `json:"Effect"`
	Principal any            `json:"Principal,omitempty"`
	Action    any            `json:"Action,omitempty"`
	Resource  any            `json:"Resource,omitempty"`
	Condition map[string]any `json:"Condition,omitempty"`
}

// ServicePrincipal represents one or more service principals.
// It always serializes to the list form {"Service": [...]}, which is what
// trust policies written by hand and by awacs-style tools look like.
type ServicePrincipal []string

// MarshalJSON serializes to {"Service": [...]} format.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{"Service": p})
}

// AWSPrincipal represents an AWS account/role/user principal.
// Serializes to {"AWS": [...]} format.
type AWSPrincipal []any

// MarshalJSON serializes to {"AWS": [...]} format.
func (p AWSPrincipal) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]any{"AWS": p})
}

// ServiceAssumeRolePolicy returns a trust policy letting the given service
// principals assume a role.
func ServiceAssumeRolePolicy(services ...string) PolicyDocument {
	return PolicyDocument{
		Version: PolicyVersion,
		Statement: []any{
			PolicyStatement{
				Effect:    Allow,
				Principal: ServicePrincipal(services),
				Action:    []any{AssumeRole},
			},
		},
	}
}

// ManagedPolicyARN returns the ARN of the AWS managed policy with the given name.
func ManagedPolicyARN(name string) string {
	return ManagedPolicyPrefix + name
}
