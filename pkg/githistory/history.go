package githistory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codegraph-dev/codegraph/pkg/cache"
	"github.com/codegraph-dev/codegraph/pkg/gitlib"
)

// History exposes commit log, per-file commits, churn, and a repo-wide
// churn map over a single repository (spec sec 3 "History").
type History struct {
	repo      *gitlib.Repository
	blobCache *cache.LRUBlobCache

	mu         sync.RWMutex
	commits    []CommitInfo // time-descending, populated on first use.
	commitsErr error
	loaded     bool
}

// NewHistory wraps an already-opened repository. Blob content seen while
// resolving line-range commits is memoized in a shared LRU blob cache
// (spec sec 5 "Shared-resource policy").
func NewHistory(repo *gitlib.Repository) *History {
	return &History{repo: repo, blobCache: cache.NewLRUBlobCache(cache.DefaultLRUCacheSize)}
}

// RecentCommits returns commits ordered newest-first, optionally filtered to
// those authored at or after since.
func (h *History) RecentCommits(since *time.Time) ([]CommitInfo, error) {
	all, err := h.allCommits()
	if err != nil {
		return nil, err
	}

	if since == nil {
		return all, nil
	}

	out := make([]CommitInfo, 0, len(all))

	for _, c := range all {
		if !c.When.Before(*since) {
			out = append(out, c)
		}
	}

	return out, nil
}

// FileCommits returns every commit that touched path, newest first.
func (h *History) FileCommits(path string) ([]CommitInfo, error) {
	all, err := h.allCommits()
	if err != nil {
		return nil, err
	}

	out := make([]CommitInfo, 0)

	for _, c := range all {
		for _, f := range c.Files {
			if f == path {
				out = append(out, c)

				break
			}
		}
	}

	return out, nil
}

// FileChurnFor computes the churn summary for a single file.
func (h *History) FileChurnFor(path string) (FileChurn, error) {
	commits, err := h.FileCommits(path)
	if err != nil {
		return FileChurn{}, err
	}

	return churnFromCommits(commits), nil
}

// RepoChurn computes the churn summary for every file touched across the
// repository's history.
func (h *History) RepoChurn() (map[string]FileChurn, error) {
	all, err := h.allCommits()
	if err != nil {
		return nil, err
	}

	byFile := make(map[string][]CommitInfo)

	for _, c := range all {
		for _, f := range c.Files {
			byFile[f] = append(byFile[f], c)
		}
	}

	out := make(map[string]FileChurn, len(byFile))
	for f, commits := range byFile {
		out[f] = churnFromCommits(commits)
	}

	return out, nil
}

// FileLineRangeCommits returns commits touching path whose line-level diff
// overlaps [lineStart, lineEnd] in the post-commit file (spec sec 3:
// "per-file-plus-line-range commits (filter by hunk overlap)"). Commits
// whose blob-level diff cannot be resolved degrade to inclusion (file-level
// granularity), never silent exclusion.
func (h *History) FileLineRangeCommits(path string, lineStart, lineEnd int) ([]CommitInfo, error) {
	candidates, err := h.FileCommits(path)
	if err != nil {
		return nil, err
	}

	out := make([]CommitInfo, 0, len(candidates))

	for _, c := range candidates {
		overlaps, ok := h.lineRangeOverlap(c.Hash, path, lineStart, lineEnd)
		if !ok || overlaps {
			out = append(out, c)
		}
	}

	return out, nil
}

// lineRangeOverlap reports whether commitHash's change to path touched any
// line within [lineStart, lineEnd] of the resulting file. ok is false when
// the blobs could not be resolved (binary file, root commit add, lookup
// failure), in which case the caller should not filter the commit out.
func (h *History) lineRangeOverlap(commitHash, path string, lineStart, lineEnd int) (overlaps bool, ok bool) {
	oldHash, newHash, found := h.blobHashesForCommit(commitHash, path)
	if !found {
		return false, false
	}

	if diffs, ok := h.nativeLineDiff(oldHash, newHash, path); ok {
		return hunksOverlapRange(diffs, lineStart, lineEnd), true
	}

	// Native blob lookup failed (e.g. pack corruption): fall back to the
	// cached-content fast path, which degrades to a full-replacement diff
	// but never produces a false "commit didn't touch this range" negative.
	oldBlob, err := h.cachedBlob(oldHash)
	if err != nil {
		oldBlob = nil
	}

	newBlob, err := h.cachedBlob(newHash)
	if err != nil {
		return false, false
	}

	diff := gitlib.DiffBlobsFromCache(blobData(oldBlob), blobData(newBlob))

	return hunksOverlapRange(diff.Diffs, lineStart, lineEnd), true
}

// nativeLineDiff computes a real line-level diff via libgit2's native blob
// diff, the precise path gitlib.DiffBlobs is built for.
func (h *History) nativeLineDiff(oldHash, newHash gitlib.Hash, path string) ([]gitlib.LineDiff, bool) {
	var oldBlob, newBlob *gitlib.Blob

	if !oldHash.IsZero() {
		b, err := h.repo.LookupBlob(context.Background(), oldHash)
		if err != nil {
			return nil, false
		}
		defer b.Free()

		oldBlob = b
	}

	if !newHash.IsZero() {
		b, err := h.repo.LookupBlob(context.Background(), newHash)
		if err != nil {
			return nil, false
		}
		defer b.Free()

		newBlob = b
	}

	result, err := gitlib.DiffBlobs(oldBlob, newBlob, path, path)
	if err != nil {
		return nil, false
	}

	return result.Diffs, true
}

func blobData(b *gitlib.CachedBlob) []byte {
	if b == nil {
		return nil
	}

	return b.Data
}

// hunksOverlapRange walks the new-file line position as diff hunks are
// consumed and reports whether any inserted span intersects
// [lineStart, lineEnd] in new-file line numbers.
func hunksOverlapRange(diffs []gitlib.LineDiff, lineStart, lineEnd int) bool {
	pos := 1 // 1-based new-file line position.

	for _, d := range diffs {
		if d.Type == gitlib.LineDiffDelete {
			continue
		}

		spanStart, spanEnd := pos, pos+d.LineCount-1

		if d.Type == gitlib.LineDiffInsert && spanStart <= lineEnd && spanEnd >= lineStart {
			return true
		}

		pos += d.LineCount
	}

	return false
}

// blobHashesForCommit resolves the old/new blob hashes for path in the diff
// between commitHash and its first parent (empty oldHash for a root add).
func (h *History) blobHashesForCommit(commitHash, path string) (oldHash, newHash gitlib.Hash, found bool) {
	commit, err := h.repo.LookupCommit(context.Background(), gitlib.NewHash(commitHash))
	if err != nil {
		return gitlib.Hash{}, gitlib.Hash{}, false
	}
	defer commit.Free()

	newTree, err := commit.Tree()
	if err != nil {
		return gitlib.Hash{}, gitlib.Hash{}, false
	}
	defer newTree.Free()

	var oldTree *gitlib.Tree

	if commit.NumParents() > 0 {
		parent, perr := commit.Parent(0)
		if perr != nil {
			return gitlib.Hash{}, gitlib.Hash{}, false
		}
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return gitlib.Hash{}, gitlib.Hash{}, false
		}
		defer oldTree.Free()
	}

	diff, err := h.repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return gitlib.Hash{}, gitlib.Hash{}, false
	}
	defer diff.Free()

	n, err := diff.NumDeltas()
	if err != nil {
		return gitlib.Hash{}, gitlib.Hash{}, false
	}

	for i := 0; i < n; i++ {
		delta, derr := diff.Delta(i)
		if derr != nil {
			continue
		}

		if delta.NewFile.Path == path || delta.OldFile.Path == path {
			return delta.OldFile.Hash, delta.NewFile.Hash, true
		}
	}

	return gitlib.Hash{}, gitlib.Hash{}, false
}

// cachedBlob resolves hash through the shared LRU blob cache, loading and
// caching it from the repository on a miss.
func (h *History) cachedBlob(hash gitlib.Hash) (*gitlib.CachedBlob, error) {
	if hash.IsZero() {
		return nil, nil //nolint:nilnil // zero hash means "no blob" (add/delete boundary), not an error.
	}

	if blob := h.blobCache.Get(hash); blob != nil {
		return blob, nil
	}

	blob, err := gitlib.NewCachedBlobFromRepo(h.repo, hash)
	if err != nil {
		return nil, err
	}

	h.blobCache.Put(hash, blob)

	return blob, nil
}

func churnFromCommits(commits []CommitInfo) FileChurn {
	churn := FileChurn{}
	authorSet := make(map[string]struct{})

	for i, c := range commits {
		churn.TotalInsertions += c.Insertions
		churn.TotalDeletions += c.Deletions
		churn.CommitCount++
		authorSet[c.Author] = struct{}{}

		if i == 0 {
			when := c.When
			churn.LastModified = &when
			churn.LastAuthor = c.Author
		}
	}

	authors := make([]string, 0, len(authorSet))
	for a := range authorSet {
		authors = append(authors, a)
	}

	sort.Strings(authors)
	churn.Authors = authors

	return churn
}

// allCommits lazily walks the full commit log once and caches the result
// for the lifetime of the History (spec "Caching").
func (h *History) allCommits() ([]CommitInfo, error) {
	h.mu.RLock()
	if h.loaded {
		defer h.mu.RUnlock()

		return h.commits, h.commitsErr
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loaded {
		return h.commits, h.commitsErr
	}

	commits, err := h.walkCommits()
	h.commits = commits
	h.commitsErr = err
	h.loaded = true

	return h.commits, h.commitsErr
}

func (h *History) walkCommits() ([]CommitInfo, error) {
	iter, err := h.repo.Log(nil)
	if err != nil {
		return nil, fmt.Errorf("open commit log: %w", err)
	}
	defer iter.Close()

	var out []CommitInfo

	err = iter.ForEach(func(c *gitlib.Commit) error {
		info := CommitInfo{
			Hash:    c.Hash().String(),
			Author:  c.Author().Name,
			Email:   c.Author().Email,
			When:    c.Author().When,
			Message: strings.TrimSpace(c.Message()),
		}

		files, stats, err := diffAgainstFirstParent(h.repo, c)
		if err == nil {
			info.Files = files
			info.Insertions = stats.insertions
			info.Deletions = stats.deletions
		}

		out = append(out, info)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk commit log: %w", err)
	}

	return out, nil
}

type diffTotals struct {
	insertions int
	deletions  int
}

// diffAgainstFirstParent diffs c's tree against its first parent's tree
// (or the empty tree for a root commit), returning the touched file paths
// and aggregate insertion/deletion counts.
func diffAgainstFirstParent(repo *gitlib.Repository, c *gitlib.Commit) ([]string, diffTotals, error) {
	newTree, err := c.Tree()
	if err != nil {
		return nil, diffTotals{}, err
	}
	defer newTree.Free()

	var oldTree *gitlib.Tree

	if c.NumParents() > 0 {
		parent, perr := c.Parent(0)
		if perr != nil {
			return nil, diffTotals{}, perr
		}
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return nil, diffTotals{}, err
		}
		defer oldTree.Free()
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, diffTotals{}, err
	}
	defer diff.Free()

	n, err := diff.NumDeltas()
	if err != nil {
		return nil, diffTotals{}, err
	}

	files := make([]string, 0, n)

	for i := 0; i < n; i++ {
		delta, derr := diff.Delta(i)
		if derr != nil {
			continue
		}

		path := delta.NewFile.Path
		if path == "" {
			path = delta.OldFile.Path
		}

		files = append(files, path)
	}

	stats, err := diff.Stats()
	if err != nil {
		return files, diffTotals{}, nil //nolint:nilerr // stats are best-effort.
	}
	defer stats.Free()

	return files, diffTotals{insertions: stats.Insertions(), deletions: stats.Deletions()}, nil
}
