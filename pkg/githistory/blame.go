package githistory

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/codegraph-dev/codegraph/pkg/alg/interval"
	"github.com/codegraph-dev/codegraph/pkg/gitlib"
)

// Blame computes and caches per-file, per-line-range blame (spec sec 3/4.3
// "Blame"). Results are memoized through a GitCache keyed by file mtime.
type Blame struct {
	repo  *gitlib.Repository
	cache *GitCache
}

// NewBlame wraps a repository with an on-disk blame cache.
func NewBlame(repo *gitlib.Repository, cache *GitCache) *Blame {
	return &Blame{repo: repo, cache: cache}
}

// FileBlame returns the merged-hunk blame for path (relative to the
// repository root), consulting the in-memory/disk cache before recomputing
// (spec "Caching"). The cache is keyed by the absolute path so mtime checks
// are independent of the caller's working directory.
func (b *Blame) FileBlame(path string) ([]LineBlame, error) {
	cacheKey := b.absPath(path)

	if entries, ok := b.cache.Get(cacheKey); ok {
		return entries, nil
	}

	entries, err := b.computeFileBlame(path)
	if err != nil {
		return nil, err
	}

	b.cache.Put(cacheKey, entries)

	return entries, nil
}

func (b *Blame) absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(b.repo.Path(), path)
}

func (b *Blame) computeFileBlame(path string) ([]LineBlame, error) {
	raw, err := b.repo.BlameFile(path)
	if err != nil {
		return nil, fmt.Errorf("blame %s: %w", path, err)
	}
	defer raw.Free()

	hunks := raw.Hunks()
	sort.Slice(hunks, func(i, j int) bool { return hunks[i].StartLine < hunks[j].StartLine })

	return mergeHunks(hunks), nil
}

// mergeHunks coalesces consecutive hunks attributed to the same commit into
// a single LineBlame entry spanning their combined range (spec "Blame":
// "merging consecutive hunks of the same commit into a single entry").
func mergeHunks(hunks []gitlib.BlameHunk) []LineBlame {
	out := make([]LineBlame, 0, len(hunks))

	for _, h := range hunks {
		hash := h.Commit.String()

		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.FullHash == hash && last.LineEnd+1 == h.StartLine {
				last.LineEnd = h.EndLine()
				last.LineCount = last.LineEnd - last.LineStart + 1

				continue
			}
		}

		out = append(out, LineBlame{
			CommitHash:  hash[:shortHashLen(hash)],
			FullHash:    hash,
			Author:      h.Author.Name,
			AuthorEmail: h.Author.Email,
			Timestamp:   h.Author.When,
			LineStart:   h.StartLine,
			LineEnd:     h.EndLine(),
			LineCount:   h.LineCount,
		})
	}

	return out
}

const shortHashDisplayLen = 8

func shortHashLen(hash string) int {
	if len(hash) < shortHashDisplayLen {
		return len(hash)
	}

	return shortHashDisplayLen
}

// EntityBlameFor aggregates a file's blame over [lineStart, lineEnd] into a
// single summary (spec "Blame": "For an entity range").
func (b *Blame) EntityBlameFor(path string, lineStart, lineEnd int) (EntityBlame, error) {
	entries, err := b.FileBlame(path)
	if err != nil {
		return EntityBlame{}, err
	}

	tree := interval.New[int, LineBlame]()
	for _, e := range entries {
		tree.Insert(e.LineStart, e.LineEnd, e)
	}

	overlapping := tree.QueryOverlap(lineStart, lineEnd)

	return aggregateEntityBlame(overlapping)
}

func aggregateEntityBlame(overlapping []interval.Interval[int, LineBlame]) (EntityBlame, error) {
	if len(overlapping) == 0 {
		return EntityBlame{}, nil
	}

	authorSet := make(map[string]struct{})

	var (
		latest      LineBlame
		latestFound bool
	)

	for _, iv := range overlapping {
		entry := iv.Value
		authorSet[entry.Author] = struct{}{}

		if !latestFound || entry.Timestamp.After(latest.Timestamp) {
			latest = entry
			latestFound = true
		}
	}

	authors := make([]string, 0, len(authorSet))
	for a := range authorSet {
		authors = append(authors, a)
	}

	sort.Strings(authors)

	when := latest.Timestamp

	return EntityBlame{
		LastModified: &when,
		LastAuthor:   latest.Author,
		CommitCount:  countDistinctCommits(overlapping),
		AuthorCount:  len(authors),
		Authors:      authors,
	}, nil
}

func countDistinctCommits(overlapping []interval.Interval[int, LineBlame]) int {
	seen := make(map[string]struct{}, len(overlapping))
	for _, iv := range overlapping {
		seen[iv.Value.FullHash] = struct{}{}
	}

	return len(seen)
}
