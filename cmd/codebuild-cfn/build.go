package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lex00/codebuild-cfn-go/internal/config"
	"github.com/lex00/codebuild-cfn-go/internal/generator"
)

func newBuildCmd() *cobra.Command {
	var (
		flags        configFlags
		outputFormat string
		outputFile   string
		withOutputs  bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the CloudFormation template",
		Long: `Build generates the template declaring the ServiceRole and CodeBuild
resources.

Examples:
    codebuild-cfn build
    codebuild-cfn build -o codebuild.json
    codebuild-cfn build --format yaml --config prod.yaml
    codebuild-cfn build --pipeline-execution-id ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			return runBuild(cmd.OutOrStdout(), cfg, buildOptions{
				format:      outputFormat,
				outputFile:  outputFile,
				withOutputs: withOutputs,
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", generator.FormatJSON, "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&withOutputs, "with-outputs", false, "Add ProjectName and ServiceRoleArn outputs")

	return cmd
}

type buildOptions struct {
	format      string
	outputFile  string
	withOutputs bool
}

func runBuild(w io.Writer, cfg config.Config, opts buildOptions) error {
	var genOpts []generator.Option
	if opts.withOutputs {
		genOpts = append(genOpts, generator.WithOutputs())
	}

	tmpl, err := generator.Generate(cfg, genOpts...)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	data, err := generator.Serialize(tmpl, opts.format)
	if err != nil {
		return err
	}

	if err := writeArtifact(w, data, opts.outputFile); err != nil {
		return err
	}
	zap.S().Debugw("build finished", "resources", tmpl.ResourceNames(), "format", opts.format)
	return nil
}

// writeArtifact writes data to the named file, or to w when no file is named.
func writeArtifact(w io.Writer, data []byte, outputFile string) error {
	if outputFile == "" {
		_, err := w.Write(data)
		return err
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}
	zap.S().Infow("wrote template", "path", outputFile)
	return nil
}
