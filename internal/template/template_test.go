package template

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/intrinsics"
	"github.com/lex00/codebuild-cfn-go/resources/codebuild"
	"github.com/lex00/codebuild-cfn-go/resources/iam"
)

// linked is a minimal resource whose single property may hold a reference.
type linked struct {
	Target any `json:"Target,omitempty"`
}

func (linked) ResourceType() string { return "Test::Linked::Resource" }

func sampleRole() iam.Role {
	return iam.Role{
		AssumeRolePolicyDocument: intrinsics.ServiceAssumeRolePolicy("codebuild.amazonaws.com"),
		Path:                     "/",
	}
}

func sampleProject(role any) codebuild.Project {
	return codebuild.Project{
		Name:        "HelloWorldContainer",
		ServiceRole: role,
		Artifacts:   codebuild.Project_Artifacts{Type: "CODEPIPELINE", Name: "output"},
		Environment: codebuild.Project_Environment{
			ComputeType: "BUILD_GENERAL1_SMALL",
			Image:       "aws/codebuild/docker:1.12.1",
			Type:        "LINUX_CONTAINER",
		},
		Source: codebuild.Project_Source{Type: "CODEPIPELINE", BuildSpec: "version: 0.2\n"},
	}
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder()
	b.SetDescription("test template")
	require.NoError(t, b.Add("ServiceRole", sampleRole()))
	require.NoError(t, b.Add("CodeBuild", sampleProject(intrinsics.RefTo("ServiceRole"))))

	tmpl, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "2010-09-09", tmpl.AWSTemplateFormatVersion)
	assert.Equal(t, "test template", tmpl.Description)
	assert.Len(t, tmpl.Resources, 2)
	assert.Equal(t, "AWS::IAM::Role", tmpl.Resources["ServiceRole"].Type)
	assert.Equal(t, "AWS::CodeBuild::Project", tmpl.Resources["CodeBuild"].Type)
	assert.Equal(t, map[string]any{"Ref": "ServiceRole"}, tmpl.Resources["CodeBuild"].Properties["ServiceRole"])
	assert.Nil(t, tmpl.Outputs)
}

func TestBuilder_Add_Errors(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("ServiceRole", sampleRole()))

	err := b.Add("ServiceRole", sampleRole())
	assert.ErrorIs(t, err, ErrDuplicateResource)

	assert.Error(t, b.Add("", sampleRole()))
	assert.Error(t, b.Add("Nothing", nil))
}

func TestBuilder_DanglingReference(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("CodeBuild", sampleProject(intrinsics.RefTo("MissingRole"))))

	_, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingReference)
	assert.Contains(t, err.Error(), "MissingRole")
}

func TestBuilder_PseudoParametersResolve(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("A", linked{Target: intrinsics.Concat(intrinsics.AWS_ACCOUNT_ID, ".", intrinsics.AWS_REGION)}))

	_, err := b.Build()
	assert.NoError(t, err)
}

func TestBuilder_Cycle(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("A", linked{Target: intrinsics.RefTo("B")}))
	require.NoError(t, b.Add("B", linked{Target: intrinsics.GetAtt{LogicalName: "A", Attribute: "Arn"}}))

	_, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "A -> B -> A")
}

func TestBuilder_Outputs(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("ServiceRole", sampleRole()))
	require.NoError(t, b.AddOutput("ServiceRoleArn", codebuild_cfn.Output{
		Description: "role arn",
		Value:       intrinsics.GetAtt{LogicalName: "ServiceRole", Attribute: "Arn"},
	}))
	assert.ErrorIs(t, b.AddOutput("ServiceRoleArn", codebuild_cfn.Output{}), ErrDuplicateResource)

	tmpl, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"ServiceRole", "Arn"}}, tmpl.Outputs["ServiceRoleArn"].Value)

	dangling := NewBuilder()
	require.NoError(t, dangling.AddOutput("Name", codebuild_cfn.Output{Value: intrinsics.RefTo("CodeBuild")}))
	_, err = dangling.Build()
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestOrder(t *testing.T) {
	tmpl := &codebuild_cfn.Template{Resources: map[string]codebuild_cfn.ResourceDef{
		"CodeBuild":   {Properties: map[string]any{"ServiceRole": map[string]any{"Ref": "ServiceRole"}}},
		"ServiceRole": {},
		"Alarm":       {DependsOn: []string{"CodeBuild"}},
		"Bucket":      {},
	}}

	order, err := Order(tmpl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bucket", "ServiceRole", "CodeBuild", "Alarm"}, order)

	deps := Dependencies(tmpl)
	assert.Equal(t, []string{"ServiceRole"}, deps["CodeBuild"])
	assert.Equal(t, []string{"CodeBuild"}, deps["Alarm"])
	assert.Empty(t, deps["Bucket"])
}

func TestReferences(t *testing.T) {
	value := map[string]any{
		"A": map[string]any{"Ref": "ServiceRole"},
		"B": map[string]any{"Ref": "AWS::Region"},
		"C": []any{
			map[string]any{"Fn::GetAtt": []any{"ServiceRole", "Arn"}},
			map[string]any{"Fn::GetAtt": "CodeBuild.Arn"},
		},
		"D": map[string]any{"Fn::Sub": "arn:${AWS::Partition}:s3:::${Bucket}/${!Literal}"},
		"E": map[string]any{"Fn::Sub": []any{"${Local}-${Queue.Arn}", map[string]any{
			"Local": map[string]any{"Ref": "Topic"},
		}}},
		"F": map[string]any{"Ref": "ServiceRole"},
	}

	refs := References(value)
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.String()
	}
	assert.Equal(t, []string{"Bucket", "CodeBuild.Arn", "Queue.Arn", "ServiceRole", "ServiceRole.Arn", "Topic"}, names)
	assert.True(t, refs[1].IsGetAtt())
	assert.False(t, refs[0].IsGetAtt())

	assert.Equal(t, []string{"AWS::Partition", "AWS::Region"}, PseudoParameters(value))
}

func buildSample(t *testing.T) *codebuild_cfn.Template {
	t.Helper()
	b := NewBuilder()
	b.SetDescription("a & b")
	require.NoError(t, b.Add("ServiceRole", sampleRole()))
	project := sampleProject(intrinsics.RefTo("ServiceRole"))
	project.Source.BuildSpec = "version: 0.2\nphases:\n  build:\n    commands:\n      - echo \"<ok>\" > /tmp/x\n"
	require.NoError(t, b.Add("CodeBuild", project))
	tmpl, err := b.Build()
	require.NoError(t, err)
	return tmpl
}

func TestToJSON(t *testing.T) {
	data, err := ToJSON(buildSample(t))
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "{\n  \"AWSTemplateFormatVersion\": \"2010-09-09\""))
	assert.Contains(t, text, `"Description": "a & b"`)
	assert.Contains(t, text, `> /tmp/x`)
	assert.NotContains(t, text, `\u003e`)

	var roundTrip map[string]any
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	assert.Len(t, roundTrip["Resources"], 2)

	again, err := ToJSON(buildSample(t))
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestToYAML(t *testing.T) {
	data, err := ToYAML(buildSample(t))
	require.NoError(t, err)

	var parsed codebuild_cfn.Template
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "2010-09-09", parsed.AWSTemplateFormatVersion)
	assert.Equal(t, "AWS::IAM::Role", parsed.Resources["ServiceRole"].Type)

	source := parsed.Resources["CodeBuild"].Properties["Source"].(map[string]any)
	assert.Contains(t, source["BuildSpec"], `echo "<ok>" > /tmp/x`)
}
