package githistory

import (
	"context"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/pkg/persist"
)

const cacheBasename = "git_cache"

// cacheRecord is one file's persisted blame, keyed by the file's mtime at
// the time blame was computed (spec "Caching": "valid iff file mtime
// matches").
type cacheRecord struct {
	Entries  []LineBlame
	MtimeSec int64
}

// cacheFile is the on-disk shape of the whole blame cache.
type cacheFile struct {
	Files map[string]cacheRecord
}

// GitCache is a reader-writer-locked, mtime-validated blame cache shared
// across a repository's Blame calls, persisted to a single JSON file (spec
// "Caching": "A persistent JSON on disk maps file_path -> {entries,
// mtime_secs}").
type GitCache struct {
	mu        sync.RWMutex
	dir       string
	files     map[string]cacheRecord
	persister *persist.Persister[cacheFile]
}

// NewGitCache creates a blame cache rooted at dir (the per-repo cache
// directory). Load must be called to populate it from disk.
func NewGitCache(dir string) *GitCache {
	return &GitCache{
		dir:       dir,
		files:     make(map[string]cacheRecord),
		persister: persist.NewPersister[cacheFile](cacheBasename, persist.NewJSONCodec()),
	}
}

// Load reads the on-disk cache, if present. A missing file is not an error.
func (c *GitCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.persister.Load(c.dir, func(state *cacheFile) {
		if state.Files != nil {
			c.files = state.Files
		}
	})
	if err != nil {
		return nil //nolint:nilerr // missing/corrupt cache degrades to a cold cache.
	}

	return nil
}

// Flush writes the current in-memory cache to disk.
func (c *GitCache) Flush() error {
	c.mu.RLock()
	snapshot := make(map[string]cacheRecord, len(c.files))
	for k, v := range c.files {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	return c.persister.Save(c.dir, func() *cacheFile {
		return &cacheFile{Files: snapshot}
	})
}

// Get returns the cached blame for path if present and the on-disk mtime
// still matches the file's current mtime.
func (c *GitCache) Get(path string) ([]LineBlame, bool) {
	c.mu.RLock()
	rec, ok := c.files[path]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	info, err := os.Stat(path)
	if err != nil || info.ModTime().Unix() != rec.MtimeSec {
		return nil, false
	}

	return rec.Entries, true
}

// Put stores entries for path, stamped with the file's current mtime.
func (c *GitCache) Put(path string, entries []LineBlame) {
	mtime := int64(0)
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime().Unix()
	}

	c.mu.Lock()
	c.files[path] = cacheRecord{Entries: entries, MtimeSec: mtime}
	c.mu.Unlock()
}

// Prewarm recomputes and caches blame for every path in files, in parallel,
// and flushes the disk cache once at the end (spec "Caching": "A prewarm
// operation runs the recompute-and-cache step over a given file set in
// parallel and flushes the disk cache once").
func Prewarm(ctx context.Context, blame *Blame, files []string, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, path := range files {
		path := path

		group.Go(func() error {
			entries, err := blame.computeFileBlame(path)
			if err != nil {
				return nil //nolint:nilerr // per-file blame failure is non-fatal (spec sec 8).
			}

			blame.cache.Put(blame.absPath(path), entries)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	return blame.cache.Flush()
}
