package detectors

import (
	"path/filepath"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// nonProductionFragment marks a path as test/fixture/vendored/generated
// content most detectors skip (spec "Skip files under non-production path
// fragments (tests, fixtures, vendored, build, scripts)").
var nonProductionFragment = []string{
	"/test/", "/tests/", "/fixture/", "/fixtures/", "/vendor/", "/build/",
	"/dist/", "/scripts/", "/testdata/", "/__pycache__/", "/node_modules/",
}

// IsProductionPath reports whether path should be scanned by a
// production-oriented detector.
func IsProductionPath(path string) bool {
	slash := "/" + filepath.ToSlash(path) + "/"

	for _, frag := range nonProductionFragment {
		if strings.Contains(slash, frag) {
			return false
		}
	}

	if strings.Contains(filepath.Base(path), "_test.") {
		return false
	}

	return true
}

// forEachProductionFile reads every File node's content through the shared
// file cache and invokes fn with its line split, skipping non-production
// paths and unreadable files.
func forEachProductionFile(dctx *detect.Context, fn func(path string, lines []string)) {
	for _, f := range dctx.Store.GetNodesByKind(graph.KindFile) {
		if !IsProductionPath(f.FilePath) {
			continue
		}

		entry, err := dctx.Files.Get(f.FilePath)
		if err != nil {
			continue
		}

		fn(f.FilePath, entry.Lines())
	}
}
