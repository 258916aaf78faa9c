// Package watch recursively watches a repository for source changes,
// debounces them, and re-analyzes each changed file against the last known
// findings for that file (spec sec 4.10).
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/filecache"
	"github.com/codegraph-dev/codegraph/pkg/funccontext"
	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/parsemodel"
)

// DefaultDebounce is the default quiet period before a changed file is
// re-analyzed (spec "debouncing layer (default 500 ms)").
const DefaultDebounce = 500 * time.Millisecond

// defaultIgnoredDirs are skipped while walking the repository for watch
// targets, mirroring the directories excluded from the initial graph build.
var defaultIgnoredDirs = map[string]struct{}{
	".git": {}, "vendor": {}, "node_modules": {}, ".hg": {}, ".svn": {},
}

// Parser is the single-file parse boundary (spec sec 1), mirroring
// graphbuilder.Parser.
type Parser interface {
	Parse(ctx context.Context, path string) (parsemodel.ParseResult, error)
}

// Watcher monitors a repository for changes and re-analyzes one file at a
// time as changes settle.
type Watcher struct {
	root       string
	parser     Parser
	detectors  []detect.Detector
	extensions map[string]bool
	debounce   time.Duration

	fsWatcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	last    map[string][]fingerprint // path -> last findings, for diffing.

	newIssues int
}

// fingerprint is the (detector, line_start, title) identity a finding is
// diffed by within the watcher (spec "by tuple (detector, line_start,
// title)").
type fingerprint struct {
	detector  string
	lineStart int
	title     string
}

// New creates a Watcher over root, parsing changed files with parser and
// running detectors against each one's mini graph. debounce <= 0 uses
// DefaultDebounce.
func New(root string, parser Parser, detectors []detect.Detector, extensions map[string]bool, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		root:       root,
		parser:     parser,
		detectors:  detectors,
		extensions: extensions,
		debounce:   debounce,
		fsWatcher:  fsWatcher,
		pending:    make(map[string]time.Time),
		last:       make(map[string][]fingerprint),
	}, nil
}

// NewIssueCount returns the session-cumulative count of new findings
// surfaced since the watcher started (spec "Tracks a session counter of
// new issues").
func (w *Watcher) NewIssueCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.newIssues
}

// Run recursively registers every directory under root and processes
// events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	color.New(color.FgCyan).Fprintf(os.Stdout, "Watching %s for changes (Ctrl+C to stop)...\n", w.root)

	go w.debounceLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return w.fsWatcher.Close()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}

			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}

			color.New(color.FgRed).Fprintf(os.Stdout, "watch error: %v\n", err)
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped, not fatal.
		}

		if !info.IsDir() {
			return nil
		}

		if _, ignored := defaultIgnoredDirs[info.Name()]; ignored && path != root {
			return filepath.SkipDir
		}

		if strings.HasPrefix(info.Name(), ".") && path != root {
			return filepath.SkipDir
		}

		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if !w.extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	const tick = 100 * time.Millisecond

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processReady(ctx)
		}
	}
}

func (w *Watcher) processReady(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()

	var ready []string

	for path, seenAt := range w.pending {
		if now.Sub(seenAt) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}

	w.mu.Unlock()

	for _, path := range ready {
		w.reanalyze(ctx, path)
	}
}

// reanalyze parses path alone, builds a single-file graph, runs the
// detector suite against it, diffs against the file's last known
// findings, and prints the result (spec sec 4.10).
func (w *Watcher) reanalyze(ctx context.Context, path string) {
	start := time.Now()

	result, err := w.parser.Parse(ctx, path)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stdout, "[%s] parse failed for %s: %v\n", start.Format(time.RFC3339), path, err)

		return
	}

	store := buildSingleFileStore(path, result)

	dctx := &detect.Context{
		Store:   store,
		Files:   filecache.New(1),
		FuncCtx: funccontext.Build(store, funccontext.DefaultThresholds()),
	}

	engine := detect.New(w.detectors...)

	res, err := engine.Run(ctx, dctx, detect.Options{})
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stdout, "[%s] analysis failed for %s: %v\n", start.Format(time.RFC3339), path, err)

		return
	}

	w.report(path, res.Findings, start)
}

func (w *Watcher) report(path string, findings []detect.Finding, start time.Time) {
	current := make([]fingerprint, 0, len(findings))
	byFingerprint := make(map[fingerprint]detect.Finding, len(findings))

	for _, f := range findings {
		fp := fingerprint{detector: f.Detector, lineStart: f.LineStart, title: f.Title}
		current = append(current, fp)
		byFingerprint[fp] = f
	}

	w.mu.Lock()
	previous := w.last[path]
	w.last[path] = current
	w.mu.Unlock()

	previousSet := make(map[fingerprint]struct{}, len(previous))
	for _, fp := range previous {
		previousSet[fp] = struct{}{}
	}

	currentSet := make(map[fingerprint]struct{}, len(current))
	for _, fp := range current {
		currentSet[fp] = struct{}{}
	}

	elapsed := time.Since(start)
	stamp := start.Format("15:04:05")

	var newCount int

	for _, fp := range current {
		if _, ok := previousSet[fp]; ok {
			continue
		}

		newCount++

		f := byFingerprint[fp]
		color.New(color.FgRed).Fprintf(os.Stdout, "[%s] new   %s %s:%d %s\n", stamp, f.Detector, path, f.LineStart, f.Title)
	}

	for _, fp := range previous {
		if _, ok := currentSet[fp]; ok {
			continue
		}

		color.New(color.FgGreen).Fprintf(os.Stdout, "[%s] fixed %s %s:%d %s\n", stamp, fp.detector, path, fp.lineStart, fp.title)
	}

	if newCount > 0 {
		w.mu.Lock()
		w.newIssues += newCount
		w.mu.Unlock()
	}

	color.New(color.FgCyan).Fprintf(os.Stdout, "[%s] %s analyzed in %s (%d new this session)\n", stamp, path, elapsed.Round(time.Millisecond), w.NewIssueCount())
}

// buildSingleFileStore builds an in-memory graph containing only path's
// File/Function/Class nodes (spec "mini in-memory graph with just that
// file"); cross-file Calls/Imports edges are out of scope for a one-file
// re-analysis.
func buildSingleFileStore(path string, result parsemodel.ParseResult) *graph.Store {
	store := graph.NewStore()

	fileQN := "file:" + path

	store.AddNode(graph.Node{
		QualifiedName: fileQN,
		Name:          filepath.Base(path),
		Kind:          graph.KindFile,
		FilePath:      path,
		Language:      result.Language,
		Properties:    graph.Property{"loc": result.LOC},
	})

	for _, fn := range result.Functions {
		props := graph.Property{"is_async": fn.IsAsync, "is_exported": fn.IsExported}
		if fn.Complexity != nil {
			props["complexity"] = *fn.Complexity
		}

		if fn.ParamCount != nil {
			props["param_count"] = *fn.ParamCount
		}

		if fn.NestingDepth != nil {
			props["nesting_depth"] = *fn.NestingDepth
		}

		store.AddNode(graph.Node{
			QualifiedName: fn.QualifiedName,
			Name:          fn.Name,
			Kind:          graph.KindFunction,
			FilePath:      path,
			Language:      result.Language,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			Properties:    props,
		})
		store.AddEdgeByName(fileQN, fn.QualifiedName, graph.EdgeContains, nil)
	}

	for _, cl := range result.Classes {
		store.AddNode(graph.Node{
			QualifiedName: cl.QualifiedName,
			Name:          cl.Name,
			Kind:          graph.KindClass,
			FilePath:      path,
			Language:      result.Language,
			LineStart:     cl.LineStart,
			LineEnd:       cl.LineEnd,
			Properties:    graph.Property{"is_exported": cl.IsExported, "methodCount": len(cl.Methods)},
		})
		store.AddEdgeByName(fileQN, cl.QualifiedName, graph.EdgeContains, nil)
	}

	return store
}
