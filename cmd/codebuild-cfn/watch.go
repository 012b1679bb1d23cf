package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/internal/config"
	"github.com/lex00/codebuild-cfn-go/internal/generator"
	"github.com/lex00/codebuild-cfn-go/internal/lint"
)

// newWatchCmd creates the "watch" subcommand for regenerating on config changes.
func newWatchCmd() *cobra.Command {
	var (
		configFile   string
		debounce     time.Duration
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the template whenever the config file changes",
		Long: `Watch monitors the config file and regenerates the template on every write.

The watch command:
- Generates once at startup
- Debounces rapid writes to avoid excessive rebuilds
- Logs generation and lint errors without exiting

Examples:
    codebuild-cfn watch --config prod.yaml -o codebuild.json
    codebuild-cfn watch --config prod.yaml --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return errors.New("--config is required")
			}
			return runWatch(cmd.OutOrStdout(), watchOptions{
				configFile:   configFile,
				debounce:     debounce,
				outputFormat: outputFormat,
				outputFile:   outputFile,
			})
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file to watch")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", generator.FormatJSON, "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

type watchOptions struct {
	configFile   string
	debounce     time.Duration
	outputFormat string
	outputFile   string
}

// runWatch regenerates on config changes until interrupted.
func runWatch(w io.Writer, opts watchOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	// Editors often replace the file instead of writing it, so watch the
	// directory and filter on the file name.
	target, err := filepath.Abs(opts.configFile)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.configFile, err)
	}

	log := zap.S()
	log.Infow("watching", "config", target)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logBuild(regenerate(w, opts))

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isConfigChange(event, target) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			log.Infow("change detected, regenerating", "config", target)
			logBuild(regenerate(w, opts))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorw("watch error", "error", err)

		case <-sigChan:
			log.Info("stopping watch")
			return nil
		}
	}
}

// isConfigChange reports whether event writes or recreates the target file.
func isConfigChange(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// regenerate loads the config, generates, lints and writes the template.
// Failures are reported in the result rather than returned.
func regenerate(w io.Writer, opts watchOptions) codebuild_cfn.BuildResult {
	fail := func(err error) codebuild_cfn.BuildResult {
		return codebuild_cfn.BuildResult{Errors: []string{err.Error()}}
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fail(err)
	}

	tmpl, err := generator.Generate(cfg)
	if err != nil {
		return fail(err)
	}

	result := codebuild_cfn.BuildResult{Template: *tmpl, Resources: tmpl.ResourceNames()}

	lintResult := lint.Template(tmpl, lint.Options{})
	for _, issue := range lintResult.Errors() {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", issue.Rule, issue.Message))
	}
	if !lintResult.Success {
		return result
	}

	data, err := generator.Serialize(tmpl, opts.outputFormat)
	if err != nil {
		return fail(err)
	}
	if err := writeArtifact(w, data, opts.outputFile); err != nil {
		return fail(err)
	}

	result.Success = true
	return result
}

func logBuild(result codebuild_cfn.BuildResult) {
	if !result.Success {
		for _, e := range result.Errors {
			zap.S().Errorw("generation failed", "error", e)
		}
		return
	}
	zap.S().Infow("generation succeeded", "resources", result.Resources)
}
