package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/codebuild-cfn-go/internal/differ"
	"github.com/lex00/codebuild-cfn-go/internal/generator"
)

func newDiffCmd() *cobra.Command {
	var (
		flags        configFlags
		outputFormat string
		ignoreOrder  bool
	)

	cmd := &cobra.Command{
		Use:   "diff <template>",
		Short: "Compare an existing template with the generated one",
		Long: `Diff loads a JSON or YAML template and reports the resources the
generated template adds, removes or modifies relative to it.

Examples:
    codebuild-cfn diff deployed.json
    codebuild-cfn diff deployed.yaml --config prod.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			existing, err := differ.LoadTemplate(args[0])
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", args[0], err)
			}
			generated, err := generator.Generate(cfg)
			if err != nil {
				return err
			}

			result, err := differ.Compare(existing, generated, differ.Options{IgnoreOrder: ignoreOrder})
			if err != nil {
				return err
			}
			return outputDiff(cmd.OutOrStdout(), result, outputFormat)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore list element order")

	return cmd
}

func outputDiff(w io.Writer, result *differ.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(struct {
			Diff    any `json:"diff"`
			Summary any `json:"summary"`
		}{result.Diff, result.Summary}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil

	case "text":
		if result.Empty() {
			fmt.Fprintln(w, "No differences")
			return nil
		}
		if result.Diff.DescriptionChanged {
			fmt.Fprintln(w, "~ Description")
		}
		for _, e := range result.Diff.Added {
			fmt.Fprintf(w, "+ %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Removed {
			fmt.Fprintf(w, "- %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Modified {
			fmt.Fprintf(w, "~ %s (%s)\n", e.Resource, e.Type)
			for _, change := range e.Changes {
				fmt.Fprintf(w, "    %s\n", change)
			}
		}
		fmt.Fprintf(w, "\n%d added, %d removed, %d modified\n",
			result.Summary.Added, result.Summary.Removed, result.Summary.Modified)
		return nil

	default:
		return fmt.Errorf("unknown format: %s (use 'text' or 'json')", format)
	}
}
