// Package filecache provides a process-wide memoized read of text files,
// line-split on demand (spec sec 2: "File cache"). Contents are read once
// and retained for the analysis run; the global cache is a singleton
// initialized on first use (spec sec 5).
package filecache

import (
	"os"
	"strings"
	"sync"

	"github.com/codegraph-dev/codegraph/pkg/alg/lru"
)

// Entry holds a file's full content and its lazily computed line split.
type Entry struct {
	mu       sync.Mutex
	Content  string
	lines    []string
	hasLines bool
}

// Lines returns the content split on "\n", computed and cached on first call.
func (e *Entry) Lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasLines {
		e.lines = strings.Split(e.Content, "\n")
		e.hasLines = true
	}

	return e.lines
}

// Cache is a sharded-by-LRU concurrent map keyed by file path.
type Cache struct {
	entries *lru.Cache[string, *Entry]
}

// DefaultMaxEntries bounds the number of distinct files memoized at once.
const DefaultMaxEntries = 20000

// New creates a file cache bounded to maxEntries distinct files.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Cache{entries: lru.New[string, *Entry](lru.WithMaxEntries[string, *Entry](maxEntries))}
}

// Get returns the memoized entry for path, reading it from disk on first
// access. Read errors are returned and not cached.
func (c *Cache) Get(path string) (*Entry, error) {
	if e, ok := c.entries.Get(path); ok {
		return e, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	e := &Entry{Content: string(raw)}
	c.entries.Put(path, e)

	return e, nil
}

var (
	globalOnce  sync.Once
	globalCache *Cache
)

// Global returns the process-wide singleton file cache, initialized on
// first use.
func Global() *Cache {
	globalOnce.Do(func() {
		globalCache = New(DefaultMaxEntries)
	})

	return globalCache
}
