package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/pkg/config"
	"github.com/codegraph-dev/codegraph/pkg/detectors"
	"github.com/codegraph-dev/codegraph/pkg/observability"
	"github.com/codegraph-dev/codegraph/pkg/pipeline"
	"github.com/codegraph-dev/codegraph/pkg/toolserver"
	"github.com/codegraph-dev/codegraph/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug      bool
		path       string
		configFile string
		proAPIKey  string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes codegraph's analysis capabilities as tools that AI
agents can discover and invoke: graph queries, finding lookups, the health
report, and (with an API key) the pro-tier search/ask/ai_fix tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			providers, err := initMCPObservability(debug)
			if err != nil {
				return err
			}

			defer func() {
				if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			parser, err := requireParser()
			if err != nil {
				return err
			}

			pl := pipeline.New(cfg, detectors.All(detectors.DefaultThresholds()), providers)
			pl.RED = red

			result, err := pl.Run(cobraCmd.Context(), path, parser)
			if err != nil {
				return fmt.Errorf("initial analysis: %w", err)
			}

			deps := toolserver.ServerDeps{
				Snapshot:  result.ToSnapshot(),
				Runner:    pl.Runner(path, parser),
				ProAPIKey: proAPIKey,
				Logger:    providers.Logger,
				Metrics:   red,
				Tracer:    providers.Tracer,
			}

			srv := toolserver.NewServer(deps)

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVarP(&path, "path", "p", ".", "Repository path to analyze")
	cmd.Flags().StringVar(&configFile, "config", "", "Configuration file path")
	cmd.Flags().StringVar(&proAPIKey, "pro-api-key", os.Getenv("CODEGRAPH_PRO_API_KEY"), "API key unlocking pro-tier tools")

	return cmd
}

func initMCPObservability(debug bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeMCP
	cfg.LogJSON = true

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	return observability.Init(cfg)
}
