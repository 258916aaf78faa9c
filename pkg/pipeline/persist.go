package pipeline

import (
	"path/filepath"

	"github.com/codegraph-dev/codegraph/pkg/cachedir"
	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/persist"
	"github.com/codegraph-dev/codegraph/pkg/score"
)

// Persisted file basenames under the per-repo cache directory (spec sec 3
// "Lifecycles": "graph stats JSON, last findings JSON, last health JSON").
const (
	graphStatsBasename   = "graph_stats"
	lastFindingsBasename = "last_findings"
	lastHealthBasename   = "last_health"
	graphDBFilename      = "graph.bolt"
)

var (
	statsPersister    = persist.NewPersister[graph.Stats](graphStatsBasename, persist.NewJSONCodec())
	findingsPersister = persist.NewPersister[[]detect.Finding](lastFindingsBasename, persist.NewJSONCodec())
	healthPersister   = persist.NewPersister[score.Report](lastHealthBasename, persist.NewJSONCodec())
)

// persist writes the graph DB, graph stats, last findings, and last health
// report into repoRoot's per-repo cache directory (spec sec 3/6), so a
// later `diff` or `mcp` invocation can load the last analysis without
// re-running the full pipeline.
func (p *Pipeline) persist(repoRoot string, result *Result) error {
	if !p.Config.Cache.Enabled {
		return nil
	}

	dir, err := cacheDirFor(repoRoot)
	if err != nil {
		return err
	}

	if err := ensureDir(dir); err != nil {
		return err
	}

	if err := result.Store.Save(filepath.Join(dir, graphDBFilename)); err != nil {
		return err
	}

	stats := result.Store.Stats()
	if err := statsPersister.Save(dir, func() *graph.Stats { return &stats }); err != nil {
		return err
	}

	findings := result.Findings
	if err := findingsPersister.Save(dir, func() *[]detect.Finding { return &findings }); err != nil {
		return err
	}

	report := result.Report
	if err := healthPersister.Save(dir, func() *score.Report { return &report }); err != nil {
		return err
	}

	return nil
}

// LoadLast restores the last persisted findings and health report for
// repoRoot, used by `codegraph diff` to compare against a fresh run without
// re-scoring the prior one.
func LoadLast(repoRoot string) ([]detect.Finding, score.Report, error) {
	dir, err := cacheDirFor(repoRoot)
	if err != nil {
		return nil, score.Report{}, err
	}

	var findings []detect.Finding

	if err := findingsPersister.Load(dir, func(s *[]detect.Finding) { findings = *s }); err != nil {
		return nil, score.Report{}, err
	}

	var report score.Report

	if err := healthPersister.Load(dir, func(s *score.Report) { report = *s }); err != nil {
		return nil, score.Report{}, err
	}

	return findings, report, nil
}

func cacheDirFor(repoRoot string) (string, error) {
	return cachedir.Resolve(appName, repoRoot)
}
