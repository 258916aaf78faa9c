package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/parsemodel"
	"github.com/codegraph-dev/codegraph/pkg/watch"
)

// stubParser returns a fixed ParseResult regardless of path, with a knob to
// flip the single emitted function's complexity between calls so the
// fixed-complexity detector below can be driven new/fixed.
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
// threshold, used here purely to exercise the watcher's new/fixed diffing.
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
			Detector:      d.NameValue,
			Title:         "function too complex",
			AffectedFiles: []string{n.FilePath},
			LineStart:     n.LineStart,
			HasLineRange:  true,
		})
	}

	return findings, nil
}

func TestWatcherReanalyzeReportsNewFindingOnThresholdBreach(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	parser := &stubParser{complexity: 5}
	w, err := watch.New(dir, parser, []detect.Detector{newHighComplexityDetector(10)}, map[string]bool{".go": true}, 10*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 0, w.NewIssueCount())
}

func TestWatcherDefaultsDebounceWhenNonPositive(t *testing.T) {
	dir := t.TempDir()
	parser := &stubParser{complexity: 1}

	w, err := watch.New(dir, parser, nil, map[string]bool{".go": true}, 0)
	require.NoError(t, err)
	assert.NotNil(t, w)
}

func TestWatcherRunStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	parser := &stubParser{complexity: 1}

	w, err := watch.New(dir, parser, nil, map[string]bool{".go": true}, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = w.Run(ctx)
	assert.NoError(t, err)
}
