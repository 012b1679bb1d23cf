package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lex00/codebuild-cfn-go/internal/generator"
	"github.com/lex00/codebuild-cfn-go/internal/graph"
)

func newGraphCmd() *cobra.Command {
	var (
		flags         configFlags
		outputFormat  string
		includePseudo bool
		clusterByType bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate a graph of resource references",
		Long: `Generate a DOT or Mermaid graph of the references between resources.

The output can be rendered with Graphviz:
    codebuild-cfn graph | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    codebuild-cfn graph -f mermaid

Examples:
    codebuild-cfn graph
    codebuild-cfn graph -p              # include pseudo parameters
    codebuild-cfn graph -c              # cluster by service`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			var graphFormat graph.Format
			switch outputFormat {
			case "dot":
				graphFormat = graph.FormatDOT
			case "mermaid":
				graphFormat = graph.FormatMermaid
			default:
				return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", outputFormat)
			}

			tmpl, err := generator.Generate(cfg)
			if err != nil {
				return err
			}

			gen := &graph.Generator{
				Format:                  graphFormat,
				IncludePseudoParameters: includePseudo,
				ClusterByType:           clusterByType,
			}
			return gen.Generate(tmpl, cmd.OutOrStdout())
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&includePseudo, "include-pseudo", "p", false, "Include pseudo parameter nodes in the graph")
	cmd.Flags().BoolVarP(&clusterByType, "cluster", "c", false, "Cluster resources by AWS service")

	return cmd
}
