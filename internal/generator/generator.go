// Package generator builds the CodeBuild container-build template: an IAM
// service role and a CodeBuild project whose buildspec builds, tags and
// pushes a Docker image to ECR.
package generator

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"go.uber.org/zap"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/internal/config"
	"github.com/lex00/codebuild-cfn-go/internal/template"
	"github.com/lex00/codebuild-cfn-go/intrinsics"
	"github.com/lex00/codebuild-cfn-go/resources/codebuild"
	"github.com/lex00/codebuild-cfn-go/resources/iam"
)

// Logical names of the generated resources.
const (
	ServiceRoleName = "ServiceRole"
	ProjectName     = "CodeBuild"
)

// CodeBuildPrincipal is the service principal trusted by the role.
const CodeBuildPrincipal = "codebuild.amazonaws.com"

// Environment variable names exposed to the build.
const (
	RepositoryNameVar = "REPOSITORY_NAME"
	RepositoryURIVar  = "REPOSITORY_URI"
)

// Output names added by WithOutputs.
const (
	ProjectNameOutput    = "ProjectName"
	ServiceRoleArnOutput = "ServiceRoleArn"
)

type options struct {
	outputs bool
}

// Option customizes Generate.
type Option func(*options)

// WithOutputs adds ProjectName and ServiceRoleArn outputs to the template.
func WithOutputs() Option {
	return func(o *options) { o.outputs = true }
}

// Generate validates cfg and builds the template.
func Generate(cfg config.Config, opts ...Option) (*codebuild_cfn.Template, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PipelineExecutionID != "" {
		zap.S().Warnw("buildspec pins a pipeline execution id; every build will tag the same source revision",
			"pipeline", cfg.PipelineName,
			"execution_id", cfg.PipelineExecutionID,
		)
	}

	spec := BuildSpec(cfg)
	buildSpecText, err := spec.Render()
	if err != nil {
		return nil, err
	}

	b := template.NewBuilder()
	b.SetDescription(cfg.Description)

	if err := b.Add(ServiceRoleName, ServiceRole(cfg)); err != nil {
		return nil, err
	}
	if err := b.Add(ProjectName, Project(cfg, buildSpecText)); err != nil {
		return nil, err
	}

	if o.outputs {
		if err := b.AddOutput(ProjectNameOutput, codebuild_cfn.Output{
			Description: "Name of the CodeBuild project",
			Value:       intrinsics.RefTo(ProjectName),
		}); err != nil {
			return nil, err
		}
		role := ServiceRole(cfg).WithAttrRefs(ServiceRoleName)
		if err := b.AddOutput(ServiceRoleArnOutput, codebuild_cfn.Output{
			Description: "ARN of the CodeBuild service role",
			Value:       role.Arn,
		}); err != nil {
			return nil, err
		}
	}

	t, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}

	zap.S().Debugw("generated template",
		"resources", len(t.Resources),
		"outputs", len(t.Outputs),
		"project", cfg.ProjectName,
	)
	return t, nil
}

// TrustPolicy lets CodeBuild assume the service role.
func TrustPolicy() intrinsics.PolicyDocument {
	return intrinsics.ServiceAssumeRolePolicy(CodeBuildPrincipal)
}

// ServiceRole returns the role CodeBuild runs the build as.
func ServiceRole(cfg config.Config) iam.Role {
	arns := make([]any, len(cfg.ManagedPolicyArns))
	for i, a := range cfg.ManagedPolicyArns {
		arns[i] = a
	}
	return iam.Role{
		AssumeRolePolicyDocument: TrustPolicy(),
		Path:                     cfg.RolePath,
		ManagedPolicyArns:        arns,
	}
}

// RepositoryURI joins the ECR repository URI from the stack's account and
// region, resolved by CloudFormation at deploy time.
func RepositoryURI(repositoryName string) intrinsics.Join {
	return intrinsics.Concat(
		intrinsics.AWS_ACCOUNT_ID,
		".dkr.ecr.",
		intrinsics.AWS_REGION,
		".amazonaws.com",
		"/",
		repositoryName,
	)
}

// Environment returns the build container settings.
func Environment(cfg config.Config) codebuild.Project_Environment {
	return codebuild.Project_Environment{
		ComputeType: cfg.ComputeType,
		Image:       cfg.BuildImage,
		Type:        cfg.EnvironmentType,
		EnvironmentVariables: []any{
			codebuild.Project_EnvironmentVariable{Name: RepositoryNameVar, Value: cfg.RepositoryName},
			codebuild.Project_EnvironmentVariable{Name: RepositoryURIVar, Value: RepositoryURI(cfg.RepositoryName)},
		},
	}
}

// Project returns the CodeBuild project running buildSpecText from a
// CodePipeline source.
func Project(cfg config.Config, buildSpecText string) codebuild.Project {
	return codebuild.Project{
		Name:        cfg.ProjectName,
		Environment: Environment(cfg),
		ServiceRole: intrinsics.RefTo(ServiceRoleName),
		Source: codebuild.Project_Source{
			Type:      string(types.SourceTypeCodepipeline),
			BuildSpec: buildSpecText,
		},
		Artifacts: codebuild.Project_Artifacts{
			Type: string(types.ArtifactsTypeCodepipeline),
			Name: cfg.ArtifactName,
		},
	}
}
