package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/config"
	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/observability"
	"github.com/codegraph-dev/codegraph/pkg/parsemodel"
	"github.com/codegraph-dev/codegraph/pkg/pipeline"
)

// stubParser returns a single, fixed-complexity function per file,
// mirroring pkg/watch's own test stub (pkg/watch/watch_test.go).
type stubParser struct {
	complexity int
}

func (p *stubParser) Parse(_ context.Context, path string) (parsemodel.ParseResult, error) {
	c := p.complexity

	return parsemodel.ParseResult{
		Functions: []parsemodel.FunctionDecl{
			{Name: "Do", QualifiedName: path + ":Do", LineStart: 1, LineEnd: 20, Complexity: &c},
		},
		LOC:      20,
		Language: "go",
	}, nil
}

// highComplexityDetector flags any function whose complexity exceeds a
// threshold; used here purely to exercise the pipeline end to end.
type highComplexityDetector struct {
	detect.Base
	threshold int
}

func newHighComplexityDetector(threshold int) *highComplexityDetector {
	return &highComplexityDetector{
		Base:      detect.Base{NameValue: "quality_high_complexity", CategoryValue: detect.CategoryCodeQuality},
		threshold: threshold,
	}
}

func (d *highComplexityDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, n := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		complexity, ok := n.Complexity()
		if !ok || complexity <= d.threshold {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.NameValue, n.FilePath, n.LineStart, "function too complex"),
			Detector:      d.NameValue,
			Severity:      detect.SeverityMedium,
			Title:         "function too complex",
			Category:      detect.CategoryCodeQuality,
			AffectedFiles: []string{n.FilePath},
			LineStart:     n.LineStart,
			HasLineRange:  true,
			Confidence:    0.9,
		})
	}

	return findings, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Detect: config.DetectConfig{
			Extensions:        []string{".go"},
			Workers:           1,
			EngineMaxFindings: 100,
			Timeout:           10 * time.Second,
		},
		Git:     config.GitConfig{Enabled: false},
		Cache:   config.CacheConfig{Enabled: false},
		Scoring: config.ScoringConfig{},
	}
}

func writeGoFile(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	return path
}

func TestRunBuildsGraphRunsDetectorsAndScores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGoFile(t, dir, "main.go")

	p := pipeline.New(testConfig(), []detect.Detector{newHighComplexityDetector(10)}, observability.Providers{})

	result, err := p.Run(context.Background(), dir, &stubParser{complexity: 50})
	require.NoError(t, err)

	assert.Positive(t, result.Store.Stats().TotalNodes)
	assert.Nil(t, result.History)
	assert.Len(t, result.Findings, 1)
	assert.Equal(t, "quality_high_complexity", result.Findings[0].Detector)
	assert.NotEmpty(t, result.Report.Grade)
}

func TestRunFiltersLowComplexityBelowThreshold(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGoFile(t, dir, "main.go")

	p := pipeline.New(testConfig(), []detect.Detector{newHighComplexityDetector(10)}, observability.Providers{})

	result, err := p.Run(context.Background(), dir, &stubParser{complexity: 1})
	require.NoError(t, err)

	assert.Empty(t, result.Findings)
}

func TestRunReturnsErrNoDetectors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	p := pipeline.New(testConfig(), nil, observability.Providers{})

	_, err := p.Run(context.Background(), dir, &stubParser{complexity: 1})
	require.ErrorIs(t, err, pipeline.ErrNoDetectors)
}

func TestToSnapshotCopiesResultFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGoFile(t, dir, "main.go")

	p := pipeline.New(testConfig(), []detect.Detector{newHighComplexityDetector(10)}, observability.Providers{})

	result, err := p.Run(context.Background(), dir, &stubParser{complexity: 50})
	require.NoError(t, err)

	snap := result.ToSnapshot()
	assert.Equal(t, dir, snap.RepoRoot)
	assert.Equal(t, result.Store, snap.Store)
	assert.Equal(t, result.Findings, snap.Findings)
	assert.Equal(t, result.Report, snap.Report)
	assert.Nil(t, snap.History)
}

func TestRunnerInvokesPipelineRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGoFile(t, dir, "main.go")

	p := pipeline.New(testConfig(), []detect.Detector{newHighComplexityDetector(10)}, observability.Providers{})

	runner := p.Runner(dir, &stubParser{complexity: 50})

	snap, err := runner(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Findings, 1)
}
