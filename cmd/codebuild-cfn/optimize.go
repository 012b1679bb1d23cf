package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/internal/generator"
	"github.com/lex00/codebuild-cfn-go/internal/optimizer"
)

// newOptimizeCmd creates the "optimize" subcommand for suggesting improvements.
func newOptimizeCmd() *cobra.Command {
	var (
		flags        configFlags
		outputFormat string
		category     string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Suggest improvements to the generated template",
		Long: `Optimize analyzes the CodeBuild project and its role and suggests
improvements for security, cost, performance, and reliability.

Suggestions never fail the command.

Examples:
    codebuild-cfn optimize
    codebuild-cfn optimize --category security
    codebuild-cfn optimize -f json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			tmpl, err := generator.Generate(cfg)
			if err != nil {
				return err
			}

			optResult, err := optimizer.Optimize(tmpl, optimizer.Options{Category: category})
			if err != nil {
				return err
			}

			return outputOptimizeResult(cmd.OutOrStdout(), codebuild_cfn.OptimizeResult{
				Success:       true,
				ResourceCount: len(tmpl.Resources),
				Suggestions:   optResult.Suggestions,
				Summary:       optResult.Summary,
			}, outputFormat)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVarP(&category, "category", "c", "all", "Category: all, security, cost, performance, or reliability")

	return cmd
}

func outputOptimizeResult(w io.Writer, result codebuild_cfn.OptimizeResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if len(result.Suggestions) == 0 {
			fmt.Fprintf(w, "Analyzed %d resources. No optimization suggestions.\n", result.ResourceCount)
			return nil
		}

		fmt.Fprintf(w, "Analyzed %d resources. Found %d suggestions:\n\n", result.ResourceCount, result.Summary.Total)

		byCat := map[string][]codebuild_cfn.OptimizeSuggestion{}
		for _, s := range result.Suggestions {
			byCat[s.Category] = append(byCat[s.Category], s)
		}

		for _, cat := range optimizer.Categories {
			suggestions := byCat[cat]
			if len(suggestions) == 0 {
				continue
			}

			fmt.Fprintf(w, "=== %s (%d) ===\n", strings.ToUpper(cat[:1])+cat[1:], len(suggestions))
			for _, s := range suggestions {
				fmt.Fprintf(w, "\n[%s] %s (%s)\n", s.Severity, s.Title, s.Rule)
				fmt.Fprintf(w, "  Resource: %s\n", s.Resource)
				if s.Path != "" {
					fmt.Fprintf(w, "  Path: %s\n", s.Path)
				}
				fmt.Fprintf(w, "  %s\n", s.Description)
				fmt.Fprintf(w, "  Suggestion: %s\n", s.Suggestion)
			}
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "Summary: %d security, %d cost, %d performance, %d reliability\n",
			result.Summary.Security, result.Summary.Cost,
			result.Summary.Performance, result.Summary.Reliability)

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return nil
}
