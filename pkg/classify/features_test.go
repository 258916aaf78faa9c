package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func buildStore() *graph.Store {
	store := graph.NewStore()

	store.AddNode(graph.Node{
		QualifiedName: "file:auth/login.go",
		Name:          "login.go",
		FilePath:      "auth/login.go",
		Kind:          graph.KindFile,
		LineStart:     1,
		LineEnd:       100,
	})

	store.AddNode(graph.Node{
		QualifiedName: "auth/login.go:Authenticate",
		Name:          "Authenticate",
		FilePath:      "auth/login.go",
		Kind:          graph.KindFunction,
		LineStart:     10,
		LineEnd:       40,
		Properties: graph.Property{
			"complexity":     12,
			"nesting_depth":  3,
			"commit_count":   5,
			"author_count":   2,
			"last_modified":  "2026-07-01T00:00:00Z",
		},
	})

	store.AddNode(graph.Node{
		QualifiedName: "commit:aaa111",
		Kind:          graph.KindCommit,
		Properties: graph.Property{
			"author":    "alice",
			"timestamp": "2026-06-15T00:00:00Z",
		},
	})

	store.AddNode(graph.Node{
		QualifiedName: "commit:bbb222",
		Kind:          graph.KindCommit,
		Properties: graph.Property{
			"author":    "bob",
			"timestamp": "2026-07-01T00:00:00Z",
		},
	})

	store.AddEdgeByName("auth/login.go:Authenticate", "commit:aaa111", graph.EdgeModifiedIn, nil)
	store.AddEdgeByName("auth/login.go:Authenticate", "commit:bbb222", graph.EdgeModifiedIn, nil)

	return store
}

func TestExtractIdentityGroupReadsFindingFields(t *testing.T) {
	store := buildStore()
	ex := NewExtractor(store)

	f := detect.Finding{
		Detector:      "sql-injection",
		Severity:      detect.SeverityCritical,
		Category:      detect.CategorySecurity,
		CWEID:         "CWE-89",
		AffectedFiles: []string{"auth/login.go"},
		LineStart:     15,
		HasLineRange:  false,
	}

	fc := ex.BuildFileContext("auth/login.go", []detect.Finding{f})
	v := ex.Extract(f, fc, 0)

	assert.Equal(t, float64(0), v[1], "Critical severity has ordinal 0")
	assert.InDelta(t, 0.5, v[2], 0.0001, "missing confidence defaults to 0.5")
	assert.Equal(t, float64(0), v[3], "Security category has ordinal 0")
	assert.Equal(t, float64(1), v[4], "has-CWE flag set")
}

func TestExtractCodeStructureGroupResolvesContainingFunction(t *testing.T) {
	store := buildStore()
	ex := NewExtractor(store)

	f := detect.Finding{
		Detector:      "long-method",
		AffectedFiles: []string{"auth/login.go"},
		LineStart:     20,
	}

	fc := ex.BuildFileContext("auth/login.go", []detect.Finding{f})
	v := ex.Extract(f, fc, 0)

	assert.Equal(t, entityFunction, v[5])
	assert.Equal(t, float64(31), v[6], "Authenticate spans lines 10-40")
	assert.Equal(t, float64(100), v[7], "file loc")
	assert.Equal(t, float64(12), v[10], "complexity read from graph property")
	assert.Equal(t, float64(3), v[11], "nesting depth read from graph property")
}

func TestExtractGitGroupUsesModifiedInEdges(t *testing.T) {
	store := buildStore()
	ex := NewExtractor(store)

	restore := nowUTC
	nowUTC = fixedClock(mustParse(t, "2026-07-31T00:00:00Z"))

	defer func() { nowUTC = restore }()

	f := detect.Finding{Detector: "x", AffectedFiles: []string{"auth/login.go"}, LineStart: 20}
	fc := ex.BuildFileContext("auth/login.go", []detect.Finding{f})
	v := ex.Extract(f, fc, 0)

	assert.Equal(t, float64(5), v[16], "commit count from graph property")
	assert.Equal(t, float64(2), v[17], "author count from graph property")
	assert.Equal(t, float64(2), v[18], "two ModifiedIn edges")
	assert.InDelta(t, 0.5, v[20], 0.0001, "two equal-weight authors split the major fraction")
}

func TestExtractPathGroupCountsFuzzyIndicators(t *testing.T) {
	store := buildStore()
	ex := NewExtractor(store)

	f := detect.Finding{Detector: "x", AffectedFiles: []string{"auth/login.go"}}
	fc := ex.BuildFileContext("auth/login.go", []detect.Finding{f})
	v := ex.Extract(f, fc, 0)

	assert.Equal(t, float64(1), v[22], "one directory segment before the file")
	assert.Equal(t, float64(0), v[23], "no FP-indicator segment")
	assert.Equal(t, float64(1), v[24], "auth/ matches a TP-path indicator")
}

func TestExtractPathGroupFuzzyMatchesTestDirVariants(t *testing.T) {
	store := graph.NewStore()
	store.AddNode(graph.Node{QualifiedName: "file:pkg/widget/tests/widget_test.go", FilePath: "pkg/widget/tests/widget_test.go", Kind: graph.KindFile})

	ex := NewExtractor(store)

	f := detect.Finding{Detector: "x", AffectedFiles: []string{"pkg/widget/tests/widget_test.go"}}
	fc := ex.BuildFileContext("pkg/widget/tests/widget_test.go", []detect.Finding{f})
	v := ex.Extract(f, fc, 0)

	assert.Equal(t, float64(1), v[23], "'tests' segment matches the fp indicator exactly")
}

func TestExtractCrossFindingGroupComputesDensityAndDetectorCount(t *testing.T) {
	store := buildStore()
	ex := NewExtractor(store)

	findings := []detect.Finding{
		{Detector: "long-method", AffectedFiles: []string{"auth/login.go"}},
		{Detector: "long-method", AffectedFiles: []string{"auth/login.go"}},
		{Detector: "magic-number", AffectedFiles: []string{"auth/login.go"}},
	}

	fc := ex.BuildFileContext("auth/login.go", findings)
	v := ex.Extract(findings[0], fc, 0.1)

	assert.InDelta(t, 3.0/(100.0/1000.0), v[25], 0.0001, "3 findings over a 100-loc file")
	assert.Equal(t, float64(2), v[26], "two long-method findings in this file")
	assert.InDelta(t, 0.1, v[27], 0.0001, "historical fp rate passed through")
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()

	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)

	return tm
}
