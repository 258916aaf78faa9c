package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/pkg/config"
	"github.com/codegraph-dev/codegraph/pkg/detectors"
	"github.com/codegraph-dev/codegraph/pkg/watch"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a repository and re-analyze changed files as they settle",
		Long:  "Watches the repository tree, debounces changes, and re-runs the detector suite against each changed file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			parser, err := requireParser()
			if err != nil {
				return err
			}

			extensions := make(map[string]bool, len(cfg.Watch.Extensions))
			for _, e := range cfg.Watch.Extensions {
				extensions[e] = true
			}

			w, err := watch.New(path, parser, detectors.All(detectors.DefaultThresholds()), extensions, cfg.Watch.Debounce)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")

	return cmd
}
