package generator

import (
	"fmt"

	"github.com/lex00/codebuild-cfn-go/buildspec"
	"github.com/lex00/codebuild-cfn-go/internal/config"
)

// Scratch files the build commands pass values through.
const (
	executionIDFile = "/tmp/execution_id.txt"
	tagFile         = "/tmp/tag.txt"
	buildTagFile    = "/tmp/build_tag.txt"
	manifestFile    = "/tmp/latest_manifest.json"

	// BuildInfoFile is the artifact handed to the next pipeline stage. It
	// holds {"tag": "<source revision>"}.
	BuildInfoFile = "/tmp/build.json"
)

// BuildSpec returns the buildspec that builds the container image, tags it
// with the pipeline's source revision and pushes it to ECR as that tag and
// as latest.
func BuildSpec(cfg config.Config) buildspec.BuildSpec {
	return buildspec.BuildSpec{
		Version: buildspec.Version02,
		Phases: buildspec.Phases{
			PreBuild:  buildspec.Commands(preBuildCommands(cfg)...),
			Build:     buildspec.Commands(buildCommands()...),
			PostBuild: buildspec.Commands(postBuildCommands(cfg)...),
		},
		Artifacts: &buildspec.Artifacts{
			Files:        buildspec.Files{BuildInfoFile},
			DiscardPaths: true,
		},
	}
}

func preBuildCommands(cfg config.Config) []string {
	return []string{
		"apt-get -y install unzip curl",
		`curl "https://s3.amazonaws.com/aws-cli/awscli-bundle.zip" -o "awscli-bundle.zip"`,
		"unzip awscli-bundle.zip",
		"./awscli-bundle/install -i /usr/local/aws -b /usr/local/bin/aws",
		executionIDCommand(cfg),
		fmt.Sprintf(`aws codepipeline get-pipeline-execution --pipeline-name "%s" --pipeline-execution-id $(cat %s) --query 'pipelineExecution.artifactRevisions[0].revisionId' --output=text > %s`,
			cfg.PipelineName, executionIDFile, tagFile),
		fmt.Sprintf(`printf "%%s:%%s" "%s" "$(cat %s)" > %s`, cfg.ImageRepositoryURI(), tagFile, buildTagFile),
		fmt.Sprintf(`printf '{"tag":"%%s"}' "$(cat %s)" > %s`, tagFile, BuildInfoFile),
		"$(aws ecr get-login)",
	}
}

// executionIDCommand writes the pipeline execution id to executionIDFile.
// A pinned id is echoed; otherwise the latest execution of the pipeline's
// first (source) stage is looked up when the build runs.
func executionIDCommand(cfg config.Config) string {
	if cfg.PipelineExecutionID != "" {
		return fmt.Sprintf(`echo "%s" > %s`, cfg.PipelineExecutionID, executionIDFile)
	}
	return fmt.Sprintf(`aws codepipeline get-pipeline-state --name "%s" --query 'stageStates[0].latestExecution.pipelineExecutionId' --output=text > %s`,
		cfg.PipelineName, executionIDFile)
}

func buildCommands() []string {
	return []string{
		fmt.Sprintf(`docker build -t "$(cat %s)" .`, buildTagFile),
	}
}

func postBuildCommands(cfg config.Config) []string {
	return []string{
		fmt.Sprintf(`docker push "$(cat %s)"`, buildTagFile),
		fmt.Sprintf(`aws ecr batch-get-image --repository-name %s --image-ids imageTag="$(cat %s)" --query 'images[].imageManifest' --output text | tee %s`,
			cfg.RepositoryName, tagFile, manifestFile),
		fmt.Sprintf(`aws ecr put-image --repository-name %s --image-tag latest --image-manifest "$(cat %s)"`,
			cfg.RepositoryName, manifestFile),
	}
}
