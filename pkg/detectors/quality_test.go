package detectors_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/detectors"
	"github.com/codegraph-dev/codegraph/pkg/filecache"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func newDetectContext(t *testing.T, store *graph.Store) *detect.Context {
	t.Helper()

	return &detect.Context{Store: store, Files: filecache.New(0)}
}

func runOne(t *testing.T, d detect.Detector, dctx *detect.Context) []detect.Finding {
	t.Helper()

	findings, err := d.Run(context.Background(), dctx, nil)
	require.NoError(t, err)

	return findings
}

func TestLongMethodDetectorFlagsOversizedFunctions(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "big.go", strings.Repeat("x := 1\n", 100))

	store := graph.NewStore()
	store.AddNode(graph.Node{
		QualifiedName: "pkg.Big", Kind: graph.KindFunction, Name: "Big",
		FilePath: path, LineStart: 1, LineEnd: 100,
	})

	d := detectors.NewQualityDetectors(detectors.DefaultQualityThresholds())[0]
	findings := runOne(t, d, newDetectContext(t, store))

	require.Len(t, findings, 1)
	assert.Equal(t, "quality_long_method", findings[0].Detector)
}

func TestGodClassDetectorRequiresBothManyMethodsAndLargeBody(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "god.go", strings.Repeat("x := 1\n", 600))

	store := graph.NewStore()
	store.AddNode(graph.Node{
		QualifiedName: "pkg.God", Kind: graph.KindClass, Name: "God",
		FilePath: path, LineStart: 1, LineEnd: 600,
		Properties: graph.Property{"methodCount": 25},
	})

	qualities := detectors.NewQualityDetectors(detectors.DefaultQualityThresholds())
	var godDetector detect.Detector

	for _, d := range qualities {
		if d.Name() == "quality_god_class" {
			godDetector = d
		}
	}

	require.NotNil(t, godDetector)
	findings := runOne(t, godDetector, newDetectContext(t, store))
	require.Len(t, findings, 1)
}

func TestHighComplexityDetectorUsesGraphPropertyWhenPresent(t *testing.T) {
	store := graph.NewStore()
	store.AddNode(graph.Node{
		QualifiedName: "pkg.Complex", Kind: graph.KindFunction, Name: "Complex",
		FilePath: "nonexistent.go", LineStart: 1, LineEnd: 10,
		Properties: graph.Property{"complexity": 20},
	})

	qualities := detectors.NewQualityDetectors(detectors.DefaultQualityThresholds())
	var d detect.Detector

	for _, c := range qualities {
		if c.Name() == "quality_high_complexity" {
			d = c
		}
	}

	require.NotNil(t, d)
	findings := runOne(t, d, newDetectContext(t, store))
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Title, "20")
}

func TestMagicNumberDetectorIgnoresZeroOneAndConstants(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "magic.go", "const Max = 100\n\nfunc f() {\n\tx := 0\n\ty := 1\n\tz := 4096\n}\n")

	store := graph.NewStore()
	store.AddNode(graph.Node{QualifiedName: "file:" + path, Kind: graph.KindFile, FilePath: path})

	d := findQuality(t, "quality_magic_numbers")
	findings := runOne(t, d, newDetectContext(t, store))

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Title, "4096")
}

func TestWildcardImportDetectorFlagsDotImport(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "wild.go", "package p\n\nimport (\n\t. \"fmt\"\n)\n")

	store := graph.NewStore()
	store.AddNode(graph.Node{QualifiedName: "file:" + path, Kind: graph.KindFile, FilePath: path})

	d := findQuality(t, "quality_wildcard_import")
	findings := runOne(t, d, newDetectContext(t, store))
	require.Len(t, findings, 1)
}

func TestGlobalMutableStateDetectorFlagsPackageLevelVar(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "state.go", "package p\n\nvar counter int\n\nfunc f() {\n\tvar local int\n\t_ = local\n}\n")

	store := graph.NewStore()
	store.AddNode(graph.Node{QualifiedName: "file:" + path, Kind: graph.KindFile, FilePath: path})

	d := findQuality(t, "quality_global_mutable_state")
	findings := runOne(t, d, newDetectContext(t, store))
	require.Len(t, findings, 1)
	assert.Equal(t, 3, findings[0].LineStart)
}

func TestEmptyCatchDetectorFlagsSwallowedException(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "catch.py", "try:\n    risky()\nexcept Exception:\n    pass\n")

	store := graph.NewStore()
	store.AddNode(graph.Node{QualifiedName: "file:" + path, Kind: graph.KindFile, FilePath: path})

	d := findQuality(t, "quality_empty_catch")
	findings := runOne(t, d, newDetectContext(t, store))
	require.Len(t, findings, 1)
}

func TestInconsistentReturnsDetectorFlagsMixedReturnShapes(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "ret.go", "func f(ok bool) int {\n\tif ok {\n\t\treturn 1\n\t}\n\treturn\n}\n")

	store := graph.NewStore()
	store.AddNode(graph.Node{
		QualifiedName: "pkg.f", Kind: graph.KindFunction, Name: "f",
		FilePath: path, LineStart: 1, LineEnd: 6,
	})

	d := findQuality(t, "quality_inconsistent_returns")
	findings := runOne(t, d, newDetectContext(t, store))
	require.Len(t, findings, 1)
}

func TestUnusedCodeDetectorSkipsFunctionsWithCallers(t *testing.T) {
	store := graph.NewStore()
	store.AddNode(graph.Node{QualifiedName: "pkg.Used", Kind: graph.KindFunction, Name: "Used", FilePath: "a.go"})
	store.AddNode(graph.Node{QualifiedName: "pkg.Caller", Kind: graph.KindFunction, Name: "Caller", FilePath: "a.go"})
	store.AddNode(graph.Node{QualifiedName: "pkg.Dead", Kind: graph.KindFunction, Name: "Dead", FilePath: "a.go"})
	store.AddEdgeByName("pkg.Caller", "pkg.Used", graph.EdgeCalls, nil)

	d := findQuality(t, "quality_unused_code")
	findings := runOne(t, d, newDetectContext(t, store))

	var names []string
	for _, f := range findings {
		names = append(names, f.Title)
	}

	assert.Contains(t, strings.Join(names, " "), "Dead")
	assert.NotContains(t, strings.Join(names, " "), "Used has no callers")
}

func findQuality(t *testing.T, name string) detect.Detector {
	t.Helper()

	for _, d := range detectors.NewQualityDetectors(detectors.DefaultQualityThresholds()) {
		if d.Name() == name {
			return d
		}
	}

	t.Fatalf("quality detector %q not found", name)

	return nil
}
