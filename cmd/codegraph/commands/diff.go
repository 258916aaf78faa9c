package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/pkg/config"
	"github.com/codegraph-dev/codegraph/pkg/detectors"
	"github.com/codegraph-dev/codegraph/pkg/diffengine"
	"github.com/codegraph-dev/codegraph/pkg/pipeline"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand() *cobra.Command {
	var (
		configFile string
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "diff [path]",
		Short: "Compare the last analysis against a fresh run",
		Long:  "Loads the last persisted findings/health for the repository, runs a fresh analysis, and reports what's new and what's fixed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			baseline, baselineReport, err := pipeline.LoadLast(path)
			if err != nil {
				return fmt.Errorf("load last analysis: %w", err)
			}

			providers, err := initCLIObservability()
			if err != nil {
				return fmt.Errorf("init observability: %w", err)
			}

			defer func() {
				if shutdownErr := providers.Shutdown(cmd.Context()); shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			parser, err := requireParser()
			if err != nil {
				return err
			}

			pl := pipeline.New(cfg, detectors.All(detectors.DefaultThresholds()), providers)

			head, err := pl.Run(cmd.Context(), path, parser)
			if err != nil {
				return fmt.Errorf("run analysis: %w", err)
			}

			priorScore := baselineReport.Overall
			postScore := head.Report.Overall

			result := diffengine.Diff(baseline, head.Findings, &priorScore, &postScore)

			diffengine.PrintStdout(result, noColor)

			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
