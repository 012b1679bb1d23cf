package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lex00/codebuild-cfn-go/internal/config"
)

// configFlags are shared by every command that generates a template.
type configFlags struct {
	path                string
	accountID           string
	region              string
	pipelineName        string
	pipelineExecutionID string
	buildImage          string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "config", "", "YAML config file (default: built-in helloworld values)")
	cmd.Flags().StringVar(&f.accountID, "account-id", "", "Override account_id")
	cmd.Flags().StringVar(&f.region, "region", "", "Override region")
	cmd.Flags().StringVar(&f.pipelineName, "pipeline-name", "", "Override pipeline_name")
	cmd.Flags().StringVar(&f.pipelineExecutionID, "pipeline-execution-id", "",
		"Override pipeline_execution_id (empty looks up the latest execution at build time)")
	cmd.Flags().StringVar(&f.buildImage, "image", "", "Override build_image")
}

// load reads the config file, if any, and applies the flags the user set.
// An explicitly empty --pipeline-execution-id clears the pinned ID.
func (f *configFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f.path != "" {
		var err error
		cfg, err = config.Load(f.path)
		if err != nil {
			return cfg, err
		}
		zap.S().Debugw("loaded config", "path", f.path)
	}

	overrides := []struct {
		flag  string
		value string
		field *string
	}{
		{"account-id", f.accountID, &cfg.AccountID},
		{"region", f.region, &cfg.Region},
		{"pipeline-name", f.pipelineName, &cfg.PipelineName},
		{"pipeline-execution-id", f.pipelineExecutionID, &cfg.PipelineExecutionID},
		{"image", f.buildImage, &cfg.BuildImage},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			*o.field = o.value
		}
	}

	return cfg, nil
}
