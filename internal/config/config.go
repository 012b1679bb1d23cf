// Package config holds the environment-specific values the generator
// embeds in the template and its buildspec.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config names every literal that differs between accounts, pipelines and
// images. The zero value is not useful; start from Default.
type Config struct {
	// Description is the template description.
	Description string `yaml:"description"`

	// AccountID is the 12-digit account that owns the ECR repository the
	// buildspec tags images for.
	AccountID string `yaml:"account_id"`

	// Region hosts the ECR repository.
	Region string `yaml:"region"`

	// RepositoryName is the ECR repository receiving the image.
	RepositoryName string `yaml:"repository_name"`

	// ProjectName is the CodeBuild project name.
	ProjectName string `yaml:"project_name"`

	// BuildImage is the CodeBuild container image running the build.
	BuildImage string `yaml:"build_image"`

	// ComputeType is the CodeBuild compute size.
	ComputeType string `yaml:"compute_type"`

	// EnvironmentType is the CodeBuild platform kind.
	EnvironmentType string `yaml:"environment_type"`

	// PipelineName is the CodePipeline whose source revision tags the image.
	PipelineName string `yaml:"pipeline_name"`

	// PipelineExecutionID pins the pipeline execution whose revision is used.
	// Empty means the buildspec looks up the latest source execution at build time.
	PipelineExecutionID string `yaml:"pipeline_execution_id"`

	// ArtifactName is the pipeline output artifact channel.
	ArtifactName string `yaml:"artifact_name"`

	// RolePath is the IAM path of the service role.
	RolePath string `yaml:"role_path"`

	// ManagedPolicyArns are attached to the service role.
	ManagedPolicyArns []string `yaml:"managed_policy_arns"`
}

// Default returns the configuration of the helloworld container pipeline.
func Default() Config {
	return Config{
		Description:         "Effective DevOps in AWS: CodeBuild - Helloworld container",
		AccountID:           "713832673520",
		Region:              "us-east-1",
		RepositoryName:      "helloworld",
		ProjectName:         "HelloWorldContainer",
		BuildImage:          "aws/codebuild/docker:1.12.1",
		ComputeType:         string(types.ComputeTypeBuildGeneral1Small),
		EnvironmentType:     string(types.EnvironmentTypeLinuxContainer),
		PipelineName:        "helloworld-codepipeline-HelloWorldPipeline-1WB7IKJB8OTRM",
		PipelineExecutionID: "da4c0be6-81f4-413f-bb15-e7dd5cf29f4f",
		ArtifactName:        "output",
		RolePath:            "/",
		ManagedPolicyArns: []string{
			"arn:aws:iam::aws:policy/AWSCodePipelineReadOnlyAccess",
			"arn:aws:iam::aws:policy/AWSCodeBuildDeveloperAccess",
			"arn:aws:iam::aws:policy/AmazonEC2ContainerRegistryPowerUser",
			"arn:aws:iam::aws:policy/AmazonS3FullAccess",
			"arn:aws:iam::aws:policy/CloudWatchLogsFullAccess",
		},
	}
}

// Load reads a YAML file on top of Default. Keys missing from the file keep
// their default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Decode merges YAML data into cfg.
func Decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ImageRepositoryURI returns the literal ECR repository URI for the
// configured account and region.
func (c Config) ImageRepositoryURI() string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s", c.AccountID, c.Region, c.RepositoryName)
}

var (
	accountIDPattern = regexp.MustCompile(`^[0-9]{12}$`)
	regionPattern    = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-[0-9]+$`)
	// ECR repository names: lowercase, digits and ._-/ separators.
	repositoryPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*(?:/[a-z0-9]+(?:[._-][a-z0-9]+)*)*$`)
)

// Validate reports every problem in the configuration. The returned error
// matches ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !accountIDPattern.MatchString(c.AccountID) {
		add("account_id %q must be 12 digits", c.AccountID)
	}
	if !regionPattern.MatchString(c.Region) {
		add("region %q is not a region name", c.Region)
	}
	if c.RepositoryName == "" || len(c.RepositoryName) > 256 || !repositoryPattern.MatchString(c.RepositoryName) {
		add("repository_name %q is not a valid ECR repository name", c.RepositoryName)
	}
	if c.ProjectName == "" {
		add("project_name is required")
	}
	if c.BuildImage == "" {
		add("build_image is required")
	}
	if !slices.Contains(types.ComputeType("").Values(), types.ComputeType(c.ComputeType)) {
		add("compute_type %q is not a CodeBuild compute type", c.ComputeType)
	}
	if !slices.Contains(types.EnvironmentType("").Values(), types.EnvironmentType(c.EnvironmentType)) {
		add("environment_type %q is not a CodeBuild environment type", c.EnvironmentType)
	}
	if c.PipelineName == "" {
		add("pipeline_name is required")
	}
	if c.ArtifactName == "" {
		add("artifact_name is required")
	}
	if !strings.HasPrefix(c.RolePath, "/") || !strings.HasSuffix(c.RolePath, "/") {
		add("role_path %q must begin and end with /", c.RolePath)
	}
	for _, policy := range c.ManagedPolicyArns {
		if err := ValidatePolicyARN(policy); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// ValidatePolicyARN checks that s is a well-formed IAM policy ARN.
func ValidatePolicyARN(s string) error {
	parsed, err := arn.Parse(s)
	if err != nil {
		return fmt.Errorf("managed policy %q: %w", s, err)
	}
	if parsed.Service != "iam" {
		return fmt.Errorf("managed policy %q: service is %q, want iam", s, parsed.Service)
	}
	if !strings.HasPrefix(parsed.Resource, "policy/") {
		return fmt.Errorf("managed policy %q: resource %q is not a policy", s, parsed.Resource)
	}
	return nil
}
