package differ

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/internal/config"
	"github.com/lex00/codebuild-cfn-go/internal/generator"
	"github.com/lex00/codebuild-cfn-go/internal/template"
)

func TestCompare(t *testing.T) {
	t1 := &codebuild_cfn.Template{
		Resources: map[string]codebuild_cfn.ResourceDef{
			"Role":    {Type: "AWS::IAM::Role", Properties: map[string]any{"Path": "/"}},
			"Project": {Type: "AWS::CodeBuild::Project", Properties: map[string]any{"Name": "a"}},
		},
	}

	t2 := &codebuild_cfn.Template{
		Resources: map[string]codebuild_cfn.ResourceDef{
			"Role":   {Type: "AWS::IAM::Role", Properties: map[string]any{"Path": "/ci/"}},
			"Bucket": {Type: "AWS::S3::Bucket"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	require.NoError(t, err)

	require.Len(t, result.Diff.Removed, 1)
	assert.Equal(t, "Project", result.Diff.Removed[0].Resource)
	require.Len(t, result.Diff.Added, 1)
	assert.Equal(t, "Bucket", result.Diff.Added[0].Resource)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, "Role", result.Diff.Modified[0].Resource)
	assert.Equal(t, []string{"Path modified"}, result.Diff.Modified[0].Changes)

	assert.Equal(t, codebuild_cfn.DiffSummary{Added: 1, Removed: 1, Modified: 1, Total: 3}, result.Summary)
	assert.False(t, result.Empty())
}

func TestCompare_Identical(t *testing.T) {
	tmpl, err := generator.Generate(config.Default())
	require.NoError(t, err)

	result, err := Compare(tmpl, tmpl, Options{})
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestCompare_NestedPaths(t *testing.T) {
	base := config.Default()
	t1, err := generator.Generate(base)
	require.NoError(t, err)

	changed := config.Default()
	changed.BuildImage = "aws/codebuild/standard:7.0"
	changed.Description = "another description"
	t2, err := generator.Generate(changed)
	require.NoError(t, err)

	result, err := Compare(t1, t2, Options{})
	require.NoError(t, err)

	assert.True(t, result.Diff.DescriptionChanged)
	assert.Empty(t, result.Diff.Added)
	assert.Empty(t, result.Diff.Removed)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, generator.ProjectName, result.Diff.Modified[0].Resource)
	assert.Equal(t, []string{"Environment.Image modified"}, result.Diff.Modified[0].Changes)
}

func TestCompare_IntrinsicComparedWhole(t *testing.T) {
	t1 := &codebuild_cfn.Template{Resources: map[string]codebuild_cfn.ResourceDef{
		"Project": {Type: "AWS::CodeBuild::Project", Properties: map[string]any{
			"ServiceRole": map[string]any{"Ref": "Role"},
		}},
	}}
	t2 := &codebuild_cfn.Template{Resources: map[string]codebuild_cfn.ResourceDef{
		"Project": {Type: "AWS::CodeBuild::Project", Properties: map[string]any{
			"ServiceRole": map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}},
		}},
	}}

	result, err := Compare(t1, t2, Options{})
	require.NoError(t, err)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, []string{"ServiceRole modified"}, result.Diff.Modified[0].Changes)
}

func TestCompare_TypeAndDependsOn(t *testing.T) {
	t1 := &codebuild_cfn.Template{Resources: map[string]codebuild_cfn.ResourceDef{
		"Thing": {Type: "AWS::S3::Bucket"},
	}}
	t2 := &codebuild_cfn.Template{Resources: map[string]codebuild_cfn.ResourceDef{
		"Thing": {Type: "AWS::SQS::Queue", DependsOn: []string{"Other"}},
	}}

	result, err := Compare(t1, t2, Options{})
	require.NoError(t, err)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, []string{
		"Type changed: AWS::S3::Bucket → AWS::SQS::Queue",
		"DependsOn changed",
	}, result.Diff.Modified[0].Changes)
}

func TestCompare_IgnoreOrder(t *testing.T) {
	t1 := &codebuild_cfn.Template{Resources: map[string]codebuild_cfn.ResourceDef{
		"Role": {Type: "AWS::IAM::Role", Properties: map[string]any{
			"ManagedPolicyArns": []any{"a", "b"},
		}},
	}}
	t2 := &codebuild_cfn.Template{Resources: map[string]codebuild_cfn.ResourceDef{
		"Role": {Type: "AWS::IAM::Role", Properties: map[string]any{
			"ManagedPolicyArns": []any{"b", "a"},
		}},
	}}

	strict, err := Compare(t1, t2, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, strict.Summary.Modified)

	relaxed, err := Compare(t1, t2, Options{IgnoreOrder: true})
	require.NoError(t, err)
	assert.True(t, relaxed.Empty())
}

func TestCompareFiles_GeneratedRoundTrip(t *testing.T) {
	tmpl, err := generator.Generate(config.Default())
	require.NoError(t, err)

	dir := t.TempDir()
	jsonData, err := template.ToJSON(tmpl)
	require.NoError(t, err)
	yamlData, err := template.ToYAML(tmpl)
	require.NoError(t, err)

	jsonPath := filepath.Join(dir, "template.json")
	yamlPath := filepath.Join(dir, "template.yaml")
	require.NoError(t, os.WriteFile(jsonPath, jsonData, 0644))
	require.NoError(t, os.WriteFile(yamlPath, yamlData, 0644))

	result, err := CompareFiles(jsonPath, yamlPath, Options{})
	require.NoError(t, err)
	assert.True(t, result.Empty(), "diff: %+v", result.Diff)

	loaded, err := LoadTemplate(jsonPath)
	require.NoError(t, err)
	result, err = Compare(tmpl, loaded, Options{})
	require.NoError(t, err)
	assert.True(t, result.Empty(), "diff: %+v", result.Diff)
}

func TestParseTemplate(t *testing.T) {
	yamlTemplate := dedent.Dedent(`
		AWSTemplateFormatVersion: "2010-09-09"
		Resources:
		  Role:
		    Type: AWS::IAM::Role
		    Properties:
		      Path: /
	`)

	tmpl, err := ParseTemplate([]byte(yamlTemplate))
	require.NoError(t, err)
	assert.Equal(t, "2010-09-09", tmpl.AWSTemplateFormatVersion)
	assert.Equal(t, "AWS::IAM::Role", tmpl.Resources["Role"].Type)

	_, err = ParseTemplate([]byte("{}"))
	assert.ErrorContains(t, err, "no Resources")

	_, err = ParseTemplate([]byte("Resources: [unclosed"))
	assert.ErrorContains(t, err, "JSON or YAML")
}

func TestLoadTemplate_Missing(t *testing.T) {
	_, err := LoadTemplate(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = CompareFiles("missing-a.json", "missing-b.json", Options{})
	assert.ErrorContains(t, err, "missing-a.json")
}
