package generator

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/lex00/codebuild-cfn-go/buildspec"
	"github.com/lex00/codebuild-cfn-go/internal/config"
	"github.com/lex00/codebuild-cfn-go/internal/template"
)

const defaultBuildSpec = `version: 0.2
phases:
  pre_build:
    commands:
      - apt-get -y install unzip curl
      - curl "https://s3.amazonaws.com/aws-cli/awscli-bundle.zip" -o "awscli-bundle.zip"
      - unzip awscli-bundle.zip
      - ./awscli-bundle/install -i /usr/local/aws -b /usr/local/bin/aws
      - echo "da4c0be6-81f4-413f-bb15-e7dd5cf29f4f" > /tmp/execution_id.txt
      - aws codepipeline get-pipeline-execution --pipeline-name "helloworld-codepipeline-HelloWorldPipeline-1WB7IKJB8OTRM" --pipeline-execution-id $(cat /tmp/execution_id.txt) --query 'pipelineExecution.artifactRevisions[0].revisionId' --output=text > /tmp/tag.txt
      - printf "%s:%s" "713832673520.dkr.ecr.us-east-1.amazonaws.com/helloworld" "$(cat /tmp/tag.txt)" > /tmp/build_tag.txt
      - printf '{"tag":"%s"}' "$(cat /tmp/tag.txt)" > /tmp/build.json
      - $(aws ecr get-login)
  build:
    commands:
      - docker build -t "$(cat /tmp/build_tag.txt)" .
  post_build:
    commands:
      - docker push "$(cat /tmp/build_tag.txt)"
      - aws ecr batch-get-image --repository-name helloworld --image-ids imageTag="$(cat /tmp/tag.txt)" --query 'images[].imageManifest' --output text | tee /tmp/latest_manifest.json
      - aws ecr put-image --repository-name helloworld --image-tag latest --image-manifest "$(cat /tmp/latest_manifest.json)"
artifacts:
  files: /tmp/build.json
  discard-paths: yes
`

// generateDocument renders the default template and parses it back.
func generateDocument(t *testing.T, opts ...Option) map[string]any {
	t.Helper()
	tmpl, err := Generate(config.Default(), opts...)
	require.NoError(t, err)

	data, err := Serialize(tmpl, FormatJSON)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func properties(t *testing.T, doc map[string]any, name string) map[string]any {
	t.Helper()
	resources := doc["Resources"].(map[string]any)
	res, ok := resources[name].(map[string]any)
	require.True(t, ok, "resource %s missing", name)
	return res["Properties"].(map[string]any)
}

// evaluate resolves Ref and Fn::Join against fixed values.
func evaluate(t *testing.T, value any, refs map[string]string) string {
	t.Helper()
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if name, ok := v["Ref"].(string); ok {
			resolved, ok := refs[name]
			require.True(t, ok, "no test value for %s", name)
			return resolved
		}
		if args, ok := v["Fn::Join"].([]any); ok {
			require.Len(t, args, 2)
			parts := []string{}
			for _, p := range args[1].([]any) {
				parts = append(parts, evaluate(t, p, refs))
			}
			return strings.Join(parts, args[0].(string))
		}
	}
	t.Fatalf("cannot evaluate %v", value)
	return ""
}

func TestGenerate_Resources(t *testing.T) {
	doc := generateDocument(t)

	resources := doc["Resources"].(map[string]any)
	assert.Len(t, resources, 2)
	assert.Contains(t, resources, "ServiceRole")
	assert.Contains(t, resources, "CodeBuild")

	assert.Equal(t, "2010-09-09", doc["AWSTemplateFormatVersion"])
	assert.Equal(t, "Effective DevOps in AWS: CodeBuild - Helloworld container", doc["Description"])
	assert.NotContains(t, doc, "Outputs")
}

func TestGenerate_TrustPolicy(t *testing.T) {
	role := properties(t, generateDocument(t), ServiceRoleName)

	policy := role["AssumeRolePolicyDocument"].(map[string]any)
	assert.Equal(t, "2012-10-17", policy["Version"])

	statements := policy["Statement"].([]any)
	require.Len(t, statements, 1)

	stmt := statements[0].(map[string]any)
	assert.Equal(t, "Allow", stmt["Effect"])
	assert.Equal(t, []any{"sts:AssumeRole"}, stmt["Action"])
	assert.Equal(t, map[string]any{"Service": []any{"codebuild.amazonaws.com"}}, stmt["Principal"])
	assert.Equal(t, "/", role["Path"])
}

func TestGenerate_ManagedPolicies(t *testing.T) {
	role := properties(t, generateDocument(t), ServiceRoleName)

	arns := role["ManagedPolicyArns"].([]any)
	require.Len(t, arns, 5)
	for _, a := range arns {
		s, ok := a.(string)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(s, "arn:aws:iam::aws:policy/"), s)
		assert.Greater(t, len(s), len("arn:aws:iam::aws:policy/"))
		assert.NoError(t, config.ValidatePolicyARN(s))
	}
}

func TestGenerate_Project(t *testing.T) {
	project := properties(t, generateDocument(t), ProjectName)

	assert.Equal(t, "HelloWorldContainer", project["Name"])
	assert.Equal(t, map[string]any{"Ref": "ServiceRole"}, project["ServiceRole"])
	assert.Equal(t, map[string]any{"Type": "CODEPIPELINE", "Name": "output"}, project["Artifacts"])

	env := project["Environment"].(map[string]any)
	assert.Equal(t, "BUILD_GENERAL1_SMALL", env["ComputeType"])
	assert.Equal(t, "aws/codebuild/docker:1.12.1", env["Image"])
	assert.Equal(t, "LINUX_CONTAINER", env["Type"])

	source := project["Source"].(map[string]any)
	assert.Equal(t, "CODEPIPELINE", source["Type"])
	assert.Equal(t, defaultBuildSpec, source["BuildSpec"])
}

func TestGenerate_RepositoryURI(t *testing.T) {
	project := properties(t, generateDocument(t), ProjectName)
	vars := project["Environment"].(map[string]any)["EnvironmentVariables"].([]any)
	require.Len(t, vars, 2)

	name := vars[0].(map[string]any)
	assert.Equal(t, map[string]any{"Name": "REPOSITORY_NAME", "Value": "helloworld"}, name)

	uri := vars[1].(map[string]any)
	assert.Equal(t, "REPOSITORY_URI", uri["Name"])
	got := evaluate(t, uri["Value"], map[string]string{
		"AWS::AccountId": "123456789012",
		"AWS::Region":    "us-east-1",
	})
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/helloworld", got)
}

func TestGenerate_BuildSpecDocument(t *testing.T) {
	project := properties(t, generateDocument(t), ProjectName)
	text := project["Source"].(map[string]any)["BuildSpec"].(string)

	spec, err := buildspec.Parse(text)
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	var names []string
	for _, np := range spec.Phases.Ordered() {
		names = append(names, np.Name)
	}
	assert.Equal(t, []string{"pre_build", "build", "post_build"}, names)
	assert.Equal(t, buildspec.Files{"/tmp/build.json"}, spec.Artifacts.Files)
	assert.True(t, bool(spec.Artifacts.DiscardPaths))

	// The phase keys keep their order in the raw document too.
	var raw yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(text), &raw))
	phases := raw.Content[0].Content[3]
	assert.Equal(t, "pre_build", phases.Content[0].Value)
	assert.Equal(t, "build", phases.Content[2].Value)
	assert.Equal(t, "post_build", phases.Content[4].Value)
}

func TestGenerate_Deterministic(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			var outputs [][]byte
			for i := 0; i < 2; i++ {
				tmpl, err := Generate(config.Default())
				require.NoError(t, err)
				data, err := Serialize(tmpl, format)
				require.NoError(t, err)
				outputs = append(outputs, data)
			}
			assert.Equal(t, outputs[0], outputs[1])
		})
	}
}

func TestGenerate_CustomConfig(t *testing.T) {
	cfg := config.Default()
	cfg.AccountID = "123456789012"
	cfg.Region = "eu-west-1"
	cfg.RepositoryName = "api"
	cfg.ProjectName = "ApiContainer"
	cfg.BuildImage = "aws/codebuild/standard:7.0"
	cfg.PipelineName = "api-pipeline"
	cfg.PipelineExecutionID = ""
	cfg.ManagedPolicyArns = cfg.ManagedPolicyArns[:2]

	tmpl, err := Generate(cfg)
	require.NoError(t, err)

	project := tmpl.Resources[ProjectName].Properties
	assert.Equal(t, "ApiContainer", project["Name"])

	text := project["Source"].(map[string]any)["BuildSpec"].(string)
	spec, err := buildspec.Parse(text)
	require.NoError(t, err)

	cmds := spec.AllCommands()
	assert.Contains(t, cmds, `aws codepipeline get-pipeline-state --name "api-pipeline" --query 'stageStates[0].latestExecution.pipelineExecutionId' --output=text > /tmp/execution_id.txt`)
	assert.Contains(t, cmds, `printf "%s:%s" "123456789012.dkr.ecr.eu-west-1.amazonaws.com/api" "$(cat /tmp/tag.txt)" > /tmp/build_tag.txt`)
	assert.Contains(t, cmds, `aws ecr put-image --repository-name api --image-tag latest --image-manifest "$(cat /tmp/latest_manifest.json)"`)
	for _, c := range cmds {
		assert.NotContains(t, c, "echo \"", "no pinned execution id expected")
		assert.NotContains(t, c, "helloworld")
	}

	role := tmpl.Resources[ServiceRoleName].Properties
	assert.Len(t, role["ManagedPolicyArns"], 2)
}

func TestGenerate_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.AccountID = "nope"

	_, err := Generate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestGenerate_WithOutputs(t *testing.T) {
	doc := generateDocument(t, WithOutputs())

	outputs := doc["Outputs"].(map[string]any)
	require.Len(t, outputs, 2)

	name := outputs[ProjectNameOutput].(map[string]any)
	assert.Equal(t, map[string]any{"Ref": "CodeBuild"}, name["Value"])

	arn := outputs[ServiceRoleArnOutput].(map[string]any)
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"ServiceRole", "Arn"}}, arn["Value"])
}

func TestGenerate_WarnsOnPinnedExecution(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	_, err := Generate(config.Default())
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "da4c0be6-81f4-413f-bb15-e7dd5cf29f4f", logs.All()[0].ContextMap()["execution_id"])

	cfg := config.Default()
	cfg.PipelineExecutionID = ""
	_, err = Generate(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}

func TestGenerate_DependencyOrder(t *testing.T) {
	tmpl, err := Generate(config.Default())
	require.NoError(t, err)

	order, err := template.Order(tmpl)
	require.NoError(t, err)
	assert.Equal(t, []string{ServiceRoleName, ProjectName}, order)
}

func TestSerialize(t *testing.T) {
	tmpl, err := Generate(config.Default())
	require.NoError(t, err)

	data, err := Serialize(tmpl, FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"AWSTemplateFormatVersion\""))
	assert.Contains(t, string(data), `> /tmp/build.json`)

	data, err = Serialize(tmpl, FormatYAML)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "AWSTemplateFormatVersion: "),
		fmt.Sprintf("got %q", strings.SplitN(string(data), "\n", 2)[0]))
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "2010-09-09", parsed["AWSTemplateFormatVersion"])

	_, err = Serialize(tmpl, "toml")
	assert.Error(t, err)
}

func TestBuildSpec_MatchesDefaultScript(t *testing.T) {
	text, err := BuildSpec(config.Default()).Render()
	require.NoError(t, err)
	assert.Equal(t, defaultBuildSpec, text)
}
