// Package funccontext derives a role-aware view of every function in the
// graph: degree, cross-module spread, call depth, betweenness centrality,
// and an architectural role, used to calibrate detector severity (spec sec
// 4.4).
package funccontext

import (
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// Role is a function's architectural classification (spec sec 3, 4.4).
type Role string

// Supported roles, in decision-cascade priority order.
const (
	RoleTest         Role = "Test"
	RoleHub          Role = "Hub"
	RoleUtility      Role = "Utility"
	RoleEntryPoint   Role = "EntryPoint"
	RoleOrchestrator Role = "Orchestrator"
	RoleLeaf         Role = "Leaf"
	RoleUnknown      Role = "Unknown"
)

// SeverityMultiplier maps a role to the factor detectors scale severity by
// (spec "Role→severity multiplier").
func (r Role) SeverityMultiplier() float64 {
	switch r {
	case RoleUtility:
		return 0.5
	case RoleLeaf:
		return 0.7
	case RoleTest:
		return 0.3
	case RoleHub:
		return 1.2
	default:
		return 1.0
	}
}

// Thresholds configures the role decision cascade (spec "Defaults").
type Thresholds struct {
	UtilityInDegree    int
	UtilitySpread      int
	OrchestratorOutDeg int
	HubBetweenness     float64
	LeafMaxDegree      int
	EntryPointMaxInDeg int
	UtilityModuleNames []string
}

// DefaultThresholds returns the spec's documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		UtilityInDegree:    10,
		UtilitySpread:      5,
		OrchestratorOutDeg: 10,
		HubBetweenness:     0.05,
		LeafMaxDegree:      2,
		EntryPointMaxInDeg: 2,
		UtilityModuleNames: []string{"util", "utils", "helper", "helpers", "common"},
	}
}

// Context is the derived, read-only per-function view (spec "FunctionContext").
type Context struct {
	InDegree          int
	OutDegree         int
	Betweenness       float64
	CallerModules     int
	CalleeModules     int
	CallDepth         int
	Role              Role
	IsExported        bool
	IsTest            bool
	IsInUtilityModule bool
	Complexity        *int
	LOC               int
}

// Build computes a Context for every Function node in store, built once per
// analysis (spec "Output. A read-only map... built once per analysis").
func Build(store *graph.Store, thresholds Thresholds) map[string]Context {
	functions := store.GetNodesByKind(graph.KindFunction)

	callerModules, calleeModules := moduleSpread(store, functions)
	depths := callDepths(store, functions)
	betweenness := computeBetweenness(store, functions)

	out := make(map[string]Context, len(functions))

	for _, fn := range functions {
		inDeg := store.CallFanIn(fn.QualifiedName)
		outDeg := store.CallFanOut(fn.QualifiedName)

		var complexityPtr *int
		if c, ok := fn.Complexity(); ok {
			complexityPtr = &c
		}

		ctx := Context{
			InDegree:          inDeg,
			OutDegree:         outDeg,
			Betweenness:       betweenness[fn.QualifiedName],
			CallerModules:     callerModules[fn.QualifiedName],
			CalleeModules:     calleeModules[fn.QualifiedName],
			CallDepth:         depths[fn.QualifiedName],
			IsExported:        fn.IsExported(),
			IsTest:            isTestPath(fn.FilePath),
			IsInUtilityModule: isUtilityModule(fn.FilePath, thresholds.UtilityModuleNames),
			Complexity:        complexityPtr,
			LOC:               fn.LOC(),
		}

		ctx.Role = classify(ctx, thresholds)
		out[fn.QualifiedName] = ctx
	}

	return out
}

// classify implements the spec 4.4 decision cascade, first match wins.
func classify(ctx Context, t Thresholds) Role {
	switch {
	case ctx.IsTest:
		return RoleTest
	case ctx.Betweenness > t.HubBetweenness:
		return RoleHub
	case ctx.InDegree >= t.UtilityInDegree || ctx.CallerModules >= t.UtilitySpread || ctx.IsInUtilityModule:
		return RoleUtility
	case ctx.IsExported && ctx.InDegree <= t.EntryPointMaxInDeg:
		return RoleEntryPoint
	case ctx.OutDegree >= t.OrchestratorOutDeg:
		return RoleOrchestrator
	case ctx.InDegree <= t.LeafMaxDegree && ctx.OutDegree <= t.LeafMaxDegree:
		return RoleLeaf
	default:
		return RoleUnknown
	}
}

func isTestPath(path string) bool {
	base := filepath.Base(path)

	return strings.Contains(base, "_test.") || strings.Contains(filepath.ToSlash(path), "/test/") ||
		strings.Contains(filepath.ToSlash(path), "/tests/")
}

func isUtilityModule(path string, names []string) bool {
	dir := strings.ToLower(filepath.ToSlash(filepath.Dir(path)))

	for _, n := range names {
		if strings.Contains(dir, "/"+n) || strings.HasPrefix(dir, n+"/") || dir == n {
			return true
		}
	}

	return false
}

// commonRoots are stripped when deriving a function's "module" from its
// file path (spec "parent directory, with common roots ... stripped").
var commonRoots = map[string]struct{}{
	"src": {}, "lib": {}, "app": {}, "pkg": {}, "internal": {}, "cmd": {},
}

// ModuleOf derives a function's "module" from its file path: the parent
// directory with common roots (src/lib/app/pkg/internal/cmd) stripped.
func ModuleOf(path string) string {
	return moduleOf(path)
}

func moduleOf(path string) string {
	dir := filepath.ToSlash(filepath.Dir(path))

	parts := strings.Split(dir, "/")

	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if _, skip := commonRoots[p]; skip || p == "." || p == "" {
			continue
		}

		out = append(out, p)
	}

	if len(out) == 0 {
		return "."
	}

	return strings.Join(out, "/")
}

// moduleSpread counts, per function, the number of distinct modules among
// its callers and callees respectively.
func moduleSpread(store *graph.Store, functions []*graph.Node) (callerModules, calleeModules map[string]int) {
	callerModules = make(map[string]int, len(functions))
	calleeModules = make(map[string]int, len(functions))

	for _, fn := range functions {
		callers := store.GetCallers(fn.QualifiedName)
		callerModules[fn.QualifiedName] = distinctModuleCount(store, callers)

		callees := store.GetCallees(fn.QualifiedName)
		calleeModules[fn.QualifiedName] = distinctModuleCount(store, callees)
	}

	return callerModules, calleeModules
}

func distinctModuleCount(store *graph.Store, qns []string) int {
	seen := make(map[string]struct{}, len(qns))

	for _, qn := range qns {
		n := store.GetNode(qn)
		if n == nil {
			continue
		}

		seen[moduleOf(n.FilePath)] = struct{}{}
	}

	return len(seen)
}

// callDepths runs a BFS over the call graph from every zero-call-in-degree
// entry point, recording the shortest depth reached at each node. Nodes
// unreachable from any entry point get the sentinel depth 0 (spec
// "treated as 0 by consumers").
func callDepths(store *graph.Store, functions []*graph.Node) map[string]int {
	depths := make(map[string]int, len(functions))

	var entryPoints []string

	for _, fn := range functions {
		if store.CallFanIn(fn.QualifiedName) == 0 {
			entryPoints = append(entryPoints, fn.QualifiedName)
		}
	}

	visited := make(map[string]bool)
	queue := make([]string, 0, len(entryPoints))

	for _, e := range entryPoints {
		if !visited[e] {
			visited[e] = true
			depths[e] = 0
			queue = append(queue, e)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, callee := range store.GetCallees(cur) {
			if visited[callee] {
				continue
			}

			visited[callee] = true
			depths[callee] = depths[cur] + 1
			queue = append(queue, callee)
		}
	}

	return depths
}

// computeBetweenness runs Brandes' algorithm over the call graph via gonum,
// normalized to [0,1] by the observed maximum (spec "betweenness").
func computeBetweenness(store *graph.Store, functions []*graph.Node) map[string]float64 {
	g := simple.NewDirectedGraph()

	idOf := make(map[string]int64, len(functions))
	qnOf := make(map[int64]string, len(functions))

	var nextID int64

	ensureNode := func(qn string) int64 {
		if id, ok := idOf[qn]; ok {
			return id
		}

		id := nextID
		nextID++
		idOf[qn] = id
		qnOf[id] = qn
		g.AddNode(simple.Node(id))

		return id
	}

	for _, fn := range functions {
		ensureNode(fn.QualifiedName)
	}

	for _, fn := range functions {
		srcID := ensureNode(fn.QualifiedName)

		for _, callee := range store.GetCallees(fn.QualifiedName) {
			if _, ok := idOf[callee]; !ok {
				continue // callee outside the function set (e.g. unresolved), skip.
			}

			dstID := idOf[callee]
			if srcID == dstID {
				continue
			}

			g.SetEdge(simple.Edge{F: simple.Node(srcID), T: simple.Node(dstID)})
		}
	}

	raw := network.Betweenness(g)

	max := 0.0
	for _, v := range raw {
		if v > max {
			max = v
		}
	}

	out := make(map[string]float64, len(raw))

	for id, v := range raw {
		qn, ok := qnOf[id]
		if !ok {
			continue
		}

		if max > 0 {
			out[qn] = v / max
		}
	}

	return out
}
