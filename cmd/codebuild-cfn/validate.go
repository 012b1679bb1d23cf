package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/internal/differ"
	"github.com/lex00/codebuild-cfn-go/internal/generator"
	"github.com/lex00/codebuild-cfn-go/internal/lint"
	"github.com/lex00/codebuild-cfn-go/internal/validation"
)

// newValidateCmd creates the "validate" subcommand.
func newValidateCmd() *cobra.Command {
	var (
		flags        configFlags
		templateFile string
		outputFormat string
		skipCfnLint  bool
		rules        []string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint the generated template or an existing template file",
		Long: `Validate runs the local CodeBuild rules (CFN001-CFN007) and cfn-lint-go.

Without --template the template is generated from the config first.
Warnings do not fail validation.

Examples:
    codebuild-cfn validate
    codebuild-cfn validate --template codebuild.json --format json
    codebuild-cfn validate --skip-cfn-lint --rules CFN006`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				tmpl *codebuild_cfn.Template
				err  error
			)
			if templateFile != "" {
				tmpl, err = differ.LoadTemplate(templateFile)
			} else {
				cfg, lerr := flags.load(cmd)
				if lerr != nil {
					return lerr
				}
				tmpl, err = generator.Generate(cfg)
			}
			if err != nil {
				return err
			}

			result, err := validation.ValidateTemplate(tmpl, validation.Options{
				SkipCfnLint: skipCfnLint,
				Lint:        lint.Options{EnabledRules: rules},
			})
			if err != nil {
				return err
			}

			return outputValidateResult(cmd.OutOrStdout(), result.Summary(), outputFormat)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&templateFile, "template", "t", "", "Validate this JSON or YAML template instead of generating one")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&skipCfnLint, "skip-cfn-lint", false, "Run only the local rules")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Local rule IDs to run (default: all)")

	return cmd
}

func outputValidateResult(w io.Writer, result codebuild_cfn.ValidateResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warning)
		}
		if result.Success {
			fmt.Fprintf(w, "Validation passed: %d resources OK\n", result.Resources)
			return nil
		}

		fmt.Fprintln(w, "Validation FAILED:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", errMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s (use 'text' or 'json')", format)
	}

	if !result.Success {
		return fmt.Errorf("validation failed")
	}
	return nil
}
