package graphbuilder_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/graphbuilder"
	"github.com/codegraph-dev/codegraph/pkg/parsemodel"
)

// fakeParser returns a canned ParseResult per path, used to drive Build
// without depending on a real language parser adapter.
type fakeParser struct {
	results map[string]parsemodel.ParseResult
}

func (f fakeParser) Parse(_ context.Context, path string) (parsemodel.ParseResult, error) {
	return f.results[path], nil
}

func TestBuildResolvesCallsAndImportsAcrossFiles(t *testing.T) {
	dir := t.TempDir()

	mainPath := filepath.Join(dir, "main.go")
	utilPath := filepath.Join(dir, "util.go")

	require.NoError(t, os.WriteFile(mainPath, []byte("package main\n"), 0o600))
	require.NoError(t, os.WriteFile(utilPath, []byte("package main\n"), 0o600))

	parser := fakeParser{results: map[string]parsemodel.ParseResult{
		mainPath: {
			Language: "go",
			Functions: []parsemodel.FunctionDecl{
				{Name: "main", QualifiedName: "main.main", LineStart: 2, LineEnd: 4},
			},
			Calls: []parsemodel.Call{
				{CallerQN: "main.main", CalleeSymbol: "util::Helper"},
			},
			Imports: []parsemodel.Import{{RawSpec: "./util"}},
		},
		utilPath: {
			Language: "go",
			Functions: []parsemodel.FunctionDecl{
				{Name: "Helper", QualifiedName: "util.Helper", LineStart: 2, LineEnd: 6, IsExported: true},
			},
		},
	}}

	store, err := graphbuilder.Build(context.Background(), dir, parser, graphbuilder.Options{
		Extensions: map[string]bool{".go": true},
	}, nil)
	require.NoError(t, err)

	assert.Contains(t, store.GetCallees("main.main"), "util.Helper")
	assert.Contains(t, store.GetImporters("file:"+utilPath), "file:"+mainPath)

	fn := store.GetNode("main.main")
	require.NotNil(t, fn)
	assert.Equal(t, graph.KindFunction, fn.Kind)
}

func TestBuildDropsUnresolvedCallsAndImports(t *testing.T) {
	dir := t.TempDir()
	onlyPath := filepath.Join(dir, "only.go")
	require.NoError(t, os.WriteFile(onlyPath, []byte("package main\n"), 0o600))

	parser := fakeParser{results: map[string]parsemodel.ParseResult{
		onlyPath: {
			Language: "go",
			Functions: []parsemodel.FunctionDecl{
				{Name: "Run", QualifiedName: "main.Run", LineStart: 1, LineEnd: 2},
			},
			Calls:   []parsemodel.Call{{CallerQN: "main.Run", CalleeSymbol: "externalpkg::DoThing"}},
			Imports: []parsemodel.Import{{RawSpec: "some/external/package"}},
		},
	}}

	store, err := graphbuilder.Build(context.Background(), dir, parser, graphbuilder.Options{
		Extensions: map[string]bool{".go": true},
	}, nil)
	require.NoError(t, err)

	assert.Empty(t, store.GetCallees("main.Run"))
	assert.Empty(t, store.GetImporters("file:"+onlyPath))
}

func TestWalkFilesHonorsIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "skip.go"), []byte("package vendor\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.go"), []byte("package main\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codegraphignore"), []byte("vendor\n"), 0o600))

	parser := fakeParser{results: map[string]parsemodel.ParseResult{}}

	store, err := graphbuilder.Build(context.Background(), dir, parser, graphbuilder.Options{
		Extensions: map[string]bool{".go": true},
	}, nil)
	require.NoError(t, err)

	files := store.GetNodesByKind(graph.KindFile)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}

	assert.Contains(t, paths, filepath.Join(dir, "keep.go"))
	assert.NotContains(t, paths, filepath.Join(dir, "vendor", "skip.go"))
}
