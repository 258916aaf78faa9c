package gitenrich_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/gitenrich"
	"github.com/codegraph-dev/codegraph/pkg/githistory"
	"github.com/codegraph-dev/codegraph/pkg/gitlib"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

func newTestRepo(t *testing.T) (path string, native *git2go.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	return dir, repo
}

func writeAndCommit(t *testing.T, dir string, native *git2go.Repository, name, content, author string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	index, err := native.Index()
	require.NoError(t, err)
	defer index.Free()

	require.NoError(t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(t, err)

	tree, err := native.LookupTree(treeID)
	require.NoError(t, err)
	defer tree.Free()

	sig := &git2go.Signature{Name: author, Email: author + "@example.com", When: time.Now()}

	var parents []*git2go.Commit

	if head, herr := native.Head(); herr == nil {
		headCommit, lerr := native.LookupCommit(head.Target())
		require.NoError(t, lerr)

		parents = append(parents, headCommit)

		head.Free()
	}

	_, err = native.CreateCommit("HEAD", sig, sig, "update "+name, tree, parents...)
	require.NoError(t, err)

	for _, p := range parents {
		p.Free()
	}
}

func TestEnrichFileWritesGitMetadataAndCommitNodes(t *testing.T) {
	dir, native := newTestRepo(t)
	writeAndCommit(t, dir, native, "a.go", "package a\n\nfunc One() {}\n", "alice")

	repo, err := gitlib.OpenRepository(dir)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	cache := githistory.NewGitCache(dir)
	require.NoError(t, cache.Load())
	blame := githistory.NewBlame(repo, cache)

	store := graph.NewStore()
	store.AddNodesBatch([]graph.Node{
		{QualifiedName: "file:a.go", Kind: graph.KindFile, FilePath: "a.go"},
		{QualifiedName: "a.One", Kind: graph.KindFunction, FilePath: "a.go", LineStart: 3, LineEnd: 3},
	})

	enricher := gitenrich.New(store, blame, nil)
	enricher.EnrichFile("a.go")

	node := store.GetNode("a.One")
	require.NotNil(t, node)

	author, ok := node.Author()
	require.True(t, ok)
	assert.Equal(t, "alice", author)

	count, ok := node.CommitCount()
	require.True(t, ok)
	assert.Equal(t, 1, count)

	commits := store.GetNodesByKind(graph.KindCommit)
	assert.Len(t, commits, 1)
}

func TestEnrichFileSkipsAlreadyEnrichedNodes(t *testing.T) {
	dir, native := newTestRepo(t)
	writeAndCommit(t, dir, native, "a.go", "package a\n\nfunc One() {}\n", "alice")

	repo, err := gitlib.OpenRepository(dir)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	cache := githistory.NewGitCache(dir)
	require.NoError(t, cache.Load())
	blame := githistory.NewBlame(repo, cache)

	store := graph.NewStore()
	store.AddNode(graph.Node{
		QualifiedName: "a.One", Kind: graph.KindFunction, FilePath: "a.go", LineStart: 3, LineEnd: 3,
		Properties: graph.Property{"last_modified": "2020-01-01T00:00:00Z"},
	})

	enricher := gitenrich.New(store, blame, nil)
	enricher.EnrichFile("a.go")

	node := store.GetNode("a.One")
	require.NotNil(t, node)

	_, ok := node.Author()
	assert.False(t, ok, "already-enriched node must not be overwritten")
}
