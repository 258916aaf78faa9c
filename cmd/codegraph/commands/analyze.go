package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/pkg/config"
	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/detectors"
	"github.com/codegraph-dev/codegraph/pkg/observability"
	"github.com/codegraph-dev/codegraph/pkg/pipeline"
	"github.com/codegraph-dev/codegraph/pkg/score"
	"github.com/codegraph-dev/codegraph/pkg/version"
)

// Output format names for the analyze command.
const (
	formatText    = "text"
	formatCompact = "compact"
	formatJSON    = "json"
)

// gradeRank orders letter grades best-to-worst for --fail-under gating;
// score.Grade carries no exported comparison helper.
var gradeRank = map[score.Grade]int{
	score.GradeA: 0,
	score.GradeB: 1,
	score.GradeC: 2,
	score.GradeD: 3,
	score.GradeF: 4,
}

// AnalyzeCommand holds the flags for the analyze command.
type AnalyzeCommand struct {
	path       string
	configFile string
	format     string
	output     string
	noColor    bool
	failUnder  string
}

// NewAnalyzeCommand creates and configures the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	ac := &AnalyzeCommand{}

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Run the full pipeline once and report findings/health score",
		Long:  "Ingests the repository, runs every detector, and prints the findings and health report.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  ac.run,
	}

	cmd.Flags().StringVarP(&ac.configFile, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVarP(&ac.format, "format", "f", formatText, "Output format: text, compact, or json")
	cmd.Flags().StringVarP(&ac.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&ac.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&ac.failUnder, "fail-under", "", "Exit non-zero if the grade is worse than this letter (overrides scoring.fail_under)")

	return cmd
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, args []string) error {
	ac.path = "."
	if len(args) == 1 {
		ac.path = args[0]
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

	cfg, err := config.LoadConfig(ac.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	failUnder := ac.failUnder
	if failUnder == "" {
		failUnder = cfg.Scoring.FailUnder
	}

	parser, err := requireParser()
	if err != nil {
		return err
	}

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	pl := pipeline.New(cfg, detectors.All(detectors.DefaultThresholds()), providers)
	pl.RED = red
	pl.Metrics = metrics

	result, err := pl.Run(cmd.Context(), ac.path, parser)
	if err != nil {
		return fmt.Errorf("run analysis: %w", err)
	}

	writer := ac.createOutputWriter()
	defer closeIfFile(writer)

	if err := ac.printReport(writer, result); err != nil {
		return err
	}

	if failUnder != "" && gradeRank[result.Report.Grade] > gradeRank[score.Grade(failUnder)] {
		return fmt.Errorf("grade %s worse than --fail-under %s", result.Report.Grade, failUnder)
	}

	return nil
}

func (ac *AnalyzeCommand) createOutputWriter() io.Writer {
	if ac.output == "" {
		return os.Stdout
	}

	file, err := os.Create(ac.output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating output file: %v\n", err)

		return os.Stdout
	}

	return file
}

func closeIfFile(w io.Writer) {
	if f, ok := w.(*os.File); ok && f != os.Stdout {
		f.Close()
	}
}

func (ac *AnalyzeCommand) printReport(w io.Writer, result *pipeline.Result) error {
	switch ac.format {
	case formatJSON:
		return ac.printJSON(w, result)
	case formatCompact:
		ac.printCompact(w, result)

		return nil
	default:
		ac.printText(w, result)

		return nil
	}
}

// jsonReport is the stable on-disk/stdout shape for --format json.
type jsonReport struct {
	RepoRoot string           `json:"repo_root"`
	Findings []detect.Finding `json:"findings"`
	Report   score.Report     `json:"report"`
}

func (ac *AnalyzeCommand) printJSON(w io.Writer, result *pipeline.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	report := jsonReport{RepoRoot: result.RepoRoot, Findings: result.Findings, Report: result.Report}

	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func (ac *AnalyzeCommand) printText(w io.Writer, result *pipeline.Result) {
	if ac.noColor {
		color.NoColor = true //nolint:reassign // explicit override per caller request
	}

	severityColor := map[detect.Severity]*color.Color{
		detect.SeverityCritical: color.New(color.FgRed, color.Bold),
		detect.SeverityHigh:     color.New(color.FgRed),
		detect.SeverityMedium:   color.New(color.FgYellow),
		detect.SeverityLow:      color.New(color.FgBlue),
		detect.SeverityInfo:     color.New(color.FgWhite),
	}

	for _, f := range result.Findings {
		c := severityColor[f.Severity]
		if c == nil {
			c = color.New(color.Reset)
		}

		c.Fprintf(w, "[%s] %s %s:%d %s\n", f.Severity, f.Detector, f.PrimaryFile(), f.LineStart, f.Title)

		if f.Description != "" {
			fmt.Fprintf(w, "    %s\n", f.Description)
		}
	}

	fmt.Fprintln(w)
	ac.printSummary(w, result)
}

func (ac *AnalyzeCommand) printCompact(w io.Writer, result *pipeline.Result) {
	for _, f := range result.Findings {
		fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s\n", f.Severity, f.Detector, f.PrimaryFile(), f.LineStart, f.Title)
	}

	ac.printSummary(w, result)
}

func (ac *AnalyzeCommand) printSummary(w io.Writer, result *pipeline.Result) {
	cyan := color.New(color.FgCyan, color.Bold)
	if ac.noColor {
		color.NoColor = true //nolint:reassign // explicit override per caller request
	}

	cyan.Fprintf(w, "health: %.1f (%s)  structure=%.1f quality=%.1f architecture=%.1f  findings=%d\n",
		result.Report.Overall, result.Report.Grade,
		result.Report.Structure, result.Report.Quality, result.Report.Architecture,
		len(result.Findings))
}

func initCLIObservability() (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeCLI

	return observability.Init(cfg)
}
