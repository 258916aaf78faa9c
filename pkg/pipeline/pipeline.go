// Package pipeline wires the graph builder, git enrichment, function
// context, detector engine, FP classifier, and scorer into the single
// ingest-to-report flow every entrypoint (CLI, watcher, tool server) drives
// (spec sec 2 "Orchestration / pipeline").
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/codegraph-dev/codegraph/pkg/cachedir"
	"github.com/codegraph-dev/codegraph/pkg/classify"
	"github.com/codegraph-dev/codegraph/pkg/config"
	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/filecache"
	"github.com/codegraph-dev/codegraph/pkg/funccontext"
	"github.com/codegraph-dev/codegraph/pkg/gitenrich"
	"github.com/codegraph-dev/codegraph/pkg/githistory"
	"github.com/codegraph-dev/codegraph/pkg/gitlib"
	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/graphbuilder"
	"github.com/codegraph-dev/codegraph/pkg/observability"
	"github.com/codegraph-dev/codegraph/pkg/score"
)

// tracerName is the default OTel tracer name for the pipeline package,
// mirroring the teacher's pkg/framework.Runner fallback-tracer idiom.
const tracerName = "codegraph"

// appName names the per-repo cache directory under ~/.cache (spec sec 6).
const appName = "codegraph"

// ErrNoDetectors is returned by Run when the pipeline was built with an
// empty detector suite.
var ErrNoDetectors = errors.New("pipeline: no detectors registered")

// Pipeline orchestrates one repository's analysis run: graph build, git
// enrichment, function context, detection, classification, and scoring.
type Pipeline struct {
	Config     *config.Config
	Detectors  []detect.Detector
	Classifier *classify.Classifier

	Logger  *slog.Logger
	Tracer  trace.Tracer
	RED     *observability.REDMetrics
	Metrics *observability.PipelineMetrics

	Files *filecache.Cache
}

// New builds a Pipeline from configuration, a detector suite, and the
// observability providers produced by observability.Init. Any zero-value
// provider field falls back to a safe default (global tracer, slog.Default
// logger, nil metrics).
func New(cfg *config.Config, detectors []detect.Detector, providers observability.Providers) *Pipeline {
	logger := providers.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := providers.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Pipeline{
		Config:     cfg,
		Detectors:  detectors,
		Classifier: classify.NewClassifier(),
		Logger:     logger,
		Tracer:     tracer,
		Files:      filecache.Global(),
	}
}

// Result is the outcome of one full pipeline run.
type Result struct {
	RepoRoot  string
	Store     *graph.Store
	Findings  []detect.Finding
	Report    score.Report
	Detectors []detect.Detector
	History   *githistory.History // nil when repoRoot isn't a Git repository or Git.Enabled is false.
	Blame     *githistory.Blame   // nil under the same conditions as History.
	Truncated bool
}

// Run executes the full ingest -> graph -> enrich -> context -> detect ->
// classify -> score flow against repoRoot, using parser for per-file
// parsing (spec sec 2 control-flow line). Git enrichment runs concurrently
// with detection on a background goroutine, synchronized only through the
// graph store's RWMutex (spec sec 5).
func (p *Pipeline) Run(ctx context.Context, repoRoot string, parser graphbuilder.Parser) (*Result, error) {
	ctx, span := p.Tracer.Start(ctx, "pipeline.run")
	defer span.End()

	if len(p.Detectors) == 0 {
		return nil, ErrNoDetectors
	}

	if timeout := p.Config.Detect.Timeout; timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	store, err := p.buildGraph(ctx, repoRoot, parser)
	if err != nil {
		return nil, err
	}

	history, blame, repo := p.openGitEnrichment(repoRoot)
	if repo != nil {
		defer repo.Free()
	}

	var enrichErr error

	var enrichWG sync.WaitGroup

	if blame != nil {
		enrichWG.Add(1)

		go func() {
			defer enrichWG.Done()

			enrichErr = p.enrichGit(ctx, store, blame)
		}()
	}

	funcCtx := p.buildFunctionContext(store)

	detResult, err := p.runDetectors(ctx, store, funcCtx)
	if err != nil {
		return nil, err
	}

	enrichWG.Wait()

	if enrichErr != nil {
		p.Logger.WarnContext(ctx, "git enrichment failed, continuing without it", "error", enrichErr)
	}

	findings := p.classifyFindings(store, history, detResult.Findings)

	report := score.Score(store, findings)

	p.recordRun(ctx, store, start)

	result := &Result{
		RepoRoot:  repoRoot,
		Store:     store,
		Findings:  findings,
		Report:    report,
		Detectors: p.Detectors,
		History:   history,
		Blame:     blame,
		Truncated: detResult.Truncated,
	}

	if persistErr := p.persist(repoRoot, result); persistErr != nil {
		p.Logger.WarnContext(ctx, "failed to persist pipeline state", "error", persistErr)
	}

	return result, nil
}

func (p *Pipeline) buildGraph(ctx context.Context, repoRoot string, parser graphbuilder.Parser) (*graph.Store, error) {
	ctx, span := p.Tracer.Start(ctx, "pipeline.graph_build")
	defer span.End()

	stop := p.trackInflight(ctx, "phase.graph_build")
	defer stop()

	opts := graphbuilder.Options{
		Extensions: extensionSet(p.Config.Detect.Extensions),
		Workers:    p.Config.Detect.Workers,
	}

	phaseStart := time.Now()

	store, err := graphbuilder.Build(ctx, repoRoot, parser, opts, p.Logger)

	p.recordRequest(ctx, "phase.graph_build", err, time.Since(phaseStart))

	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	return store, nil
}

// openGitEnrichment opens the repository and its blame cache when Git
// enrichment is enabled and repoRoot is a Git repository. Returns nil
// values (no error) when either condition doesn't hold, since a non-Git
// target degrades gracefully rather than failing the run (spec sec 8).
func (p *Pipeline) openGitEnrichment(repoRoot string) (*githistory.History, *githistory.Blame, *gitlib.Repository) {
	if !p.Config.Git.Enabled {
		return nil, nil, nil
	}

	repo, err := gitlib.OpenRepository(repoRoot)
	if err != nil {
		p.Logger.Debug("repository is not a git repository, skipping enrichment", "path", repoRoot, "error", err)

		return nil, nil, nil
	}

	history := githistory.NewHistory(repo)

	cacheDir, err := cachedir.Resolve(appName, repoRoot)
	if err != nil {
		p.Logger.Warn("failed to resolve cache directory, blame cache disabled", "error", err)

		cacheDir = ""
	}

	gitCache := githistory.NewGitCache(cacheDir)
	if cacheDir != "" {
		if loadErr := gitCache.Load(); loadErr != nil {
			p.Logger.Debug("no existing blame cache, starting fresh", "error", loadErr)
		}
	}

	blame := githistory.NewBlame(repo, gitCache)

	return history, blame, repo
}

func (p *Pipeline) enrichGit(ctx context.Context, store *graph.Store, blame *githistory.Blame) error {
	ctx, span := p.Tracer.Start(ctx, "pipeline.git_enrich")
	defer span.End()

	stop := p.trackInflight(ctx, "phase.git_enrich")
	defer stop()

	phaseStart := time.Now()

	if err := p.prewarmBlame(ctx, store, blame); err != nil {
		p.Logger.WarnContext(ctx, "blame prewarm failed, falling back to on-demand blame", "error", err)
	}

	enricher := gitenrich.New(store, blame, p.Logger)
	err := enricher.EnrichAll(ctx)
	p.recordRequest(ctx, "phase.git_enrich", err, time.Since(phaseStart))

	if err != nil {
		return fmt.Errorf("enrich git history: %w", err)
	}

	return nil
}

// prewarmBlame computes blame for every known file in parallel before the
// enricher walks them one at a time, so EnrichAll mostly hits the blame
// cache instead of recomputing per-entity (spec sec 2.2: "parallel blame
// prewarm").
func (p *Pipeline) prewarmBlame(ctx context.Context, store *graph.Store, blame *githistory.Blame) error {
	files := store.GetNodesByKind(graph.KindFile)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}

	workers := p.Config.Git.BlamePrewarmWorkers

	return githistory.Prewarm(ctx, blame, paths, workers)
}

func (p *Pipeline) buildFunctionContext(store *graph.Store) map[string]funccontext.Context {
	return funccontext.Build(store, funccontext.DefaultThresholds())
}

func (p *Pipeline) runDetectors(
	ctx context.Context, store *graph.Store, funcCtx map[string]funccontext.Context,
) (*detect.Result, error) {
	ctx, span := p.Tracer.Start(ctx, "pipeline.detect")
	defer span.End()

	stop := p.trackInflight(ctx, "phase.detect")
	defer stop()

	engine := detect.New(p.Detectors...)

	dctx := &detect.Context{Store: store, Files: p.Files, FuncCtx: funcCtx}

	opts := detect.Options{
		Workers:           p.Config.Detect.Workers,
		EngineMaxFindings: p.Config.Detect.EngineMaxFindings,
	}

	phaseStart := time.Now()
	result, err := engine.Run(ctx, dctx, opts)
	p.recordRequest(ctx, "phase.detect", err, time.Since(phaseStart))

	if err != nil {
		return nil, fmt.Errorf("run detectors: %w", err)
	}

	return result, nil
}

// classifyFindings scores every finding with the FP classifier and drops
// those it recommends filtering (spec sec 4.7: "a prediction is turned
// into {is_true_positive, high_confidence, likely_fp, should_filter}").
// When history is available, fix-commit/stale-code labels mined from it
// seed each finding's detector with one round of classifier feedback
// before scoring, bootstrapping the historical FP rate feature (spec sec
// 2.3 "bootstrap label mining").
func (p *Pipeline) classifyFindings(store *graph.Store, history *githistory.History, findings []detect.Finding) []detect.Finding {
	if history != nil {
		p.bootstrapLabels(history, findings)
	}

	extractor := classify.NewExtractor(store)

	byFile := make(map[string][]detect.Finding)
	for _, f := range findings {
		byFile[f.PrimaryFile()] = append(byFile[f.PrimaryFile()], f)
	}

	fileContexts := make(map[string]classify.FileContext, len(byFile))
	for path, fs := range byFile {
		fileContexts[path] = extractor.BuildFileContext(path, fs)
	}

	kept := make([]detect.Finding, 0, len(findings))

	for _, f := range findings {
		fc := fileContexts[f.PrimaryFile()]
		fpRate := p.Classifier.HistoricalFPRate(f.Detector)
		features := extractor.Extract(f, fc, fpRate)
		prediction := p.Classifier.Classify(f.Category, features)

		if prediction.ShouldFilter {
			continue
		}

		kept = append(kept, f)
	}

	return kept
}

func (p *Pipeline) bootstrapLabels(history *githistory.History, findings []detect.Finding) {
	labels, err := classify.MineLabels(history)
	if err != nil {
		p.Logger.Debug("label mining failed, skipping classifier bootstrap", "error", err)

		return
	}

	byPath := make(map[string]classify.Label, len(labels))
	for _, l := range labels {
		byPath[l.Path] = l
	}

	for _, f := range findings {
		label, ok := byPath[f.PrimaryFile()]
		if !ok {
			continue
		}

		p.Classifier.Feedback(f.Detector, !label.IsTruePositive)
	}
}

func (p *Pipeline) trackInflight(ctx context.Context, op string) func() {
	if p.RED == nil {
		return func() {}
	}

	return p.RED.TrackInflight(ctx, op)
}

func (p *Pipeline) recordRequest(ctx context.Context, op string, err error, d time.Duration) {
	if p.RED == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	p.RED.RecordRequest(ctx, op, status, d)
}

func (p *Pipeline) recordRun(ctx context.Context, store *graph.Store, start time.Time) {
	if p.Metrics == nil {
		return
	}

	stats := store.Stats()

	p.Metrics.RecordRun(ctx, observability.PipelineStats{
		FilesParsed:    stats.ByKind[graph.KindFile],
		ParseDurations: []time.Duration{time.Since(start)},
	})
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[e] = true
	}

	return set
}

// ensureDir creates dir (and parents) if it does not already exist.
func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}

	return os.MkdirAll(dir, 0o755)
}
