// Package gitenrich walks Function/Class nodes lacking git metadata and
// annotates them with blame-derived authorship and churn summaries, adding
// Commit nodes and ModifiedIn edges as it goes (spec sec 3 "Enricher").
package gitenrich

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codegraph-dev/codegraph/pkg/githistory"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// Enricher wires a graph.Store to a githistory.Blame so functions/classes
// gain git-derived properties.
type Enricher struct {
	store *graph.Store
	blame *githistory.Blame
	log   *slog.Logger

	mu         sync.Mutex // guards commitSeen across concurrent EnrichFile calls.
	commitSeen map[string]struct{}
}

// New creates an enricher over store, backed by blame.
func New(store *graph.Store, blame *githistory.Blame, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Enricher{store: store, blame: blame, log: logger, commitSeen: make(map[string]struct{})}
}

// EnrichAll walks every File node's Function/Class children lacking git
// metadata and enriches them, run concurrently with detector execution per
// spec sec 5 ("One background thread performs git enrichment concurrently
// with detector execution").
func (e *Enricher) EnrichAll(ctx context.Context) error {
	files := e.store.GetNodesByKind(graph.KindFile)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.EnrichFile(f.FilePath)
	}

	return nil
}

// EnrichFile enriches every Function/Class node in path lacking git
// metadata. Blame failures for individual entities are logged and
// non-fatal (spec sec 8: "blame failure for an entity" is degradable).
func (e *Enricher) EnrichFile(path string) {
	entities := append(
		append([]*graph.Node{}, e.store.GetFunctionsInFile(path)...),
		e.store.GetClassesInFile(path)...,
	)

	for _, n := range entities {
		if _, ok := n.LastModified(); ok {
			continue // already enriched.
		}

		if err := e.enrichEntity(path, n); err != nil {
			e.log.Debug("entity blame failed, skipping", "file", path, "entity", n.QualifiedName, "error", err)
		}
	}
}

func (e *Enricher) enrichEntity(path string, n *graph.Node) error {
	summary, err := e.blame.EntityBlameFor(path, n.LineStart, n.LineEnd)
	if err != nil {
		return fmt.Errorf("entity blame for %s: %w", n.QualifiedName, err)
	}

	if summary.CommitCount == 0 {
		return nil
	}

	props := graph.Property{
		"author":       summary.LastAuthor,
		"commit_count": summary.CommitCount,
		"author_count": summary.AuthorCount,
	}

	if summary.LastModified != nil {
		props["last_modified"] = summary.LastModified.Format(time.RFC3339)
	}

	e.store.UpdateProperties(n.QualifiedName, props)

	fb, err := e.blame.FileBlame(path)
	if err != nil {
		return fmt.Errorf("file blame for %s: %w", path, err)
	}

	for _, lb := range fb {
		if lb.LineEnd < n.LineStart || lb.LineStart > n.LineEnd {
			continue
		}

		e.ensureCommitNode(lb)
		e.store.AddEdgeByName(n.QualifiedName, commitQualifiedName(lb.FullHash), graph.EdgeModifiedIn, graph.Property{
			"line_start": lb.LineStart,
			"line_end":   lb.LineEnd,
		})
	}

	return nil
}

// ensureCommitNode creates a Commit node for lb's commit hash exactly once
// (spec "creates a Commit node per observed short hash (once)").
func (e *Enricher) ensureCommitNode(lb githistory.LineBlame) {
	e.mu.Lock()
	_, seen := e.commitSeen[lb.FullHash]
	if !seen {
		e.commitSeen[lb.FullHash] = struct{}{}
	}
	e.mu.Unlock()

	if seen {
		return
	}

	e.store.AddNode(graph.Node{
		QualifiedName: commitQualifiedName(lb.FullHash),
		Name:          lb.CommitHash,
		Kind:          graph.KindCommit,
		Properties: graph.Property{
			"author":       lb.Author,
			"author_email": lb.AuthorEmail,
			"timestamp":    lb.Timestamp.Format(time.RFC3339),
			"full_hash":    lb.FullHash,
		},
	})
}

func commitQualifiedName(fullHash string) string {
	return "commit:" + fullHash
}
