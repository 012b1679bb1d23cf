// Command codebuild-cfn generates the CloudFormation template for the
// helloworld container CodeBuild project and its service role.
//
// Usage:
//
//	codebuild-cfn build                     Print the template as JSON
//	codebuild-cfn build --format yaml       Print the template as YAML
//	codebuild-cfn buildspec                 Print only the buildspec
//	codebuild-cfn validate                  Lint the generated template
//	codebuild-cfn version                   Show version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lex00/codebuild-cfn-go/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		logJSON  bool
		restore  func()
	)

	rootCmd := &cobra.Command{
		Use:   "codebuild-cfn",
		Short: "Generate the CodeBuild CloudFormation template",
		Long: `codebuild-cfn generates a CloudFormation template declaring a CodeBuild
project that builds the helloworld container image, and the IAM role it
runs as.

The template is written to stdout; logs go to stderr:

    codebuild-cfn build > codebuild.json
    codebuild-cfn build --config prod.yaml --format yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logLevel, logJSON)
			if err != nil {
				return err
			}
			restore = zap.ReplaceGlobals(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
			if restore != nil {
				restore()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(
		newBuildCmd(),
		newBuildSpecCmd(),
		newValidateCmd(),
		newGraphCmd(),
		newDiffCmd(),
		newOptimizeCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return rootCmd
}
