// Package intrinsics provides CloudFormation intrinsic functions.
//
// This package re-exports the core intrinsic types from cloudformation-schema-go
// and adds the IAM policy types used by the generator.
//
//	Ref{LogicalName: "ServiceRole"} → {"Ref": "ServiceRole"}
//	Join{Delimiter: "", Values: []any{AWS_ACCOUNT_ID, ".dkr.ecr."}} → {"Fn::Join": ["", [...]]}
//	GetAtt{LogicalName: "ServiceRole", Attribute: "Arn"} → {"Fn::GetAtt": ["ServiceRole", "Arn"]}
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join
)

// Concat joins values with an empty delimiter.
//
//	Concat(AWS_ACCOUNT_ID, ".dkr.ecr.", AWS_REGION)
//	// {"Fn::Join": ["", [{"Ref": "AWS::AccountId"}, ".dkr.ecr.", {"Ref": "AWS::Region"}]]}
func Concat(values ...any) Join {
	return Join{Delimiter: "", Values: values}
}

// RefTo returns a Ref to the resource or parameter with the given logical name.
func RefTo(logicalName string) Ref {
	return Ref{LogicalName: logicalName}
}
