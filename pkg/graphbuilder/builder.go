// Package graphbuilder walks a repository, invokes an external parser in
// parallel over every supported source file, resolves call/import edges,
// and batch-inserts the result into a graph.Store (spec 4.2).
package graphbuilder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/pkg/alg/bloom"
	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/parsemodel"
)

// Parser is the external per-language parser adapter boundary (spec 1/3):
// it is out of scope here, only its contract is defined.
type Parser interface {
	Parse(ctx context.Context, path string) (parsemodel.ParseResult, error)
}

// Options configures a Build run.
type Options struct {
	Extensions map[string]bool // lower-cased extensions including the dot, e.g. ".go".
	Workers    int             // 0 = auto, min(GOMAXPROCS, 16).
}

const maxAutoWorkers = 16

func (o Options) workerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}

	n := runtime.GOMAXPROCS(0)
	if n > maxAutoWorkers {
		n = maxAutoWorkers
	}

	if n < 1 {
		n = 1
	}

	return n
}

// fileParse is the per-file parse result plus the local short-name index
// used by resolveCallee's same-file fast path.
type fileParse struct {
	result     parsemodel.ParseResult
	funcByName map[string]string // short name -> qualified name, this file only.
}

// Build walks root for files matching opts.Extensions, parses them in
// parallel, resolves edges, and returns a populated graph.Store. Parse
// failures and unresolved symbols are logged and non-fatal (spec 4.2/7).
func Build(ctx context.Context, root string, parser Parser, opts Options, logger *slog.Logger) (*graph.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	files, err := walkFiles(root, opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("walk repository: %w", err)
	}

	parsed := parseAll(ctx, files, parser, opts.workerCount(), logger)

	store := graph.NewStore()

	byFile, shortNameMap := indexParses(parsed)
	known := buildKnownSymbolFilter(shortNameMap)

	nodes := buildFileAndEntityNodes(parsed)
	store.AddNodesBatch(nodes)

	edges := resolveEdges(parsed, byFile, shortNameMap, known, files, extensionList(opts.Extensions), logger)
	store.AddEdgesBatch(edges)

	return store, nil
}

func extensionList(exts map[string]bool) []string {
	out := make([]string, 0, len(exts))
	for e := range exts {
		out = append(out, e)
	}

	return out
}

// parseAll invokes the parser for each file on a bounded worker pool,
// collecting (path, ParseResult) pairs. Parse failures are logged and
// dropped (spec 4.2 step 2).
func parseAll(ctx context.Context, files []string, parser Parser, workers int, logger *slog.Logger) map[string]parsemodel.ParseResult {
	results := make(map[string]parsemodel.ParseResult, len(files))

	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, path := range files {
		path := path

		group.Go(func() error {
			res, err := parser.Parse(gctx, path)
			if err != nil {
				logger.Warn("parse failed, skipping file", "path", path, "error", err)

				return nil //nolint:nilerr // non-fatal per spec 4.2/7.
			}

			mu.Lock()
			results[path] = res
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait() // Go() never returns a non-nil error above; nothing to propagate.

	return results
}

// indexParses builds the per-file short-name index and the global
// short-name -> qualified-name map (last writer wins, spec 4.2 step 3/9).
func indexParses(parsed map[string]parsemodel.ParseResult) (map[string]fileParse, map[string]string) {
	byFile := make(map[string]fileParse, len(parsed))
	global := make(map[string]string)

	for path, res := range parsed {
		local := make(map[string]string, len(res.Functions))

		for _, fn := range res.Functions {
			local[fn.Name] = fn.QualifiedName
			global[fn.Name] = fn.QualifiedName // last writer wins across files (map iteration order is irrelevant to this being "last write" semantics in a single pass; see builder tests).
		}

		byFile[path] = fileParse{result: res, funcByName: local}
	}

	return byFile, global
}

// buildFileAndEntityNodes creates one File node per parsed file plus a node
// for every function/class (spec 4.2 step 4).
func buildFileAndEntityNodes(parsed map[string]parsemodel.ParseResult) []graph.Node {
	var nodes []graph.Node

	for path, res := range parsed {
		nodes = append(nodes, graph.Node{
			QualifiedName: "file:" + path,
			Name:          filepath.Base(path),
			Kind:          graph.KindFile,
			FilePath:      path,
			Language:      res.Language,
			Properties:    graph.Property{"loc": res.LOC},
		})

		for _, fn := range res.Functions {
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

			nodes = append(nodes, graph.Node{
				QualifiedName: fn.QualifiedName,
				Name:          fn.Name,
				Kind:          graph.KindFunction,
				FilePath:      path,
				Language:      res.Language,
				LineStart:     fn.LineStart,
				LineEnd:       fn.LineEnd,
				Properties:    props,
			})
		}

		for _, cl := range res.Classes {
			nodes = append(nodes, graph.Node{
				QualifiedName: cl.QualifiedName,
				Name:          cl.Name,
				Kind:          graph.KindClass,
				FilePath:      path,
				Language:      res.Language,
				LineStart:     cl.LineStart,
				LineEnd:       cl.LineEnd,
				Properties:    graph.Property{"is_exported": cl.IsExported, "methodCount": len(cl.Methods)},
			})
		}
	}

	return nodes
}

// resolveEdges builds Contains, Calls, and Imports edges (spec 4.2 steps
// 4-6). Unresolved calls/imports are dropped, logged at debug level.
func resolveEdges(
	parsed map[string]parsemodel.ParseResult,
	byFile map[string]fileParse,
	shortNameMap map[string]string,
	known *bloom.Filter,
	files []string,
	extensions []string,
	logger *slog.Logger,
) []graph.Edge {
	var edges []graph.Edge

	for path, res := range parsed {
		fileQN := "file:" + path

		for _, fn := range res.Functions {
			edges = append(edges, graph.Edge{Source: fileQN, Target: fn.QualifiedName, Kind: graph.EdgeContains})
		}

		for _, cl := range res.Classes {
			edges = append(edges, graph.Edge{Source: fileQN, Target: cl.QualifiedName, Kind: graph.EdgeContains})
		}

		for _, call := range res.Calls {
			target := resolveCallee(path, call.CalleeSymbol, byFile, shortNameMap, known)
			if target == "" {
				logger.Debug("unresolved call target", "file", path, "caller", call.CallerQN, "symbol", call.CalleeSymbol)

				continue
			}

			edges = append(edges, graph.Edge{Source: call.CallerQN, Target: target, Kind: graph.EdgeCalls})
		}

		for _, imp := range res.Imports {
			targetFile := resolveImport(path, imp.RawSpec, files, extensions)
			if targetFile == "" || targetFile == path {
				continue
			}

			edges = append(edges, graph.Edge{
				Source: fileQN, Target: "file:" + targetFile, Kind: graph.EdgeImports,
			})
		}
	}

	return edges
}
