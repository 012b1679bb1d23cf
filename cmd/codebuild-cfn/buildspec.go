package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lex00/codebuild-cfn-go/internal/generator"
)

func newBuildSpecCmd() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "buildspec",
		Short: "Print the buildspec embedded in the CodeBuild project",
		Long: `Buildspec renders only the build script document, as it appears in the
project's Source.BuildSpec property.

Examples:
    codebuild-cfn buildspec
    codebuild-cfn buildspec --pipeline-execution-id ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			text, err := generator.BuildSpec(cfg).Render()
			if err != nil {
				return fmt.Errorf("rendering buildspec: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}

	flags.register(cmd)
	return cmd
}
