package toolserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph-dev/codegraph/pkg/graph"
)

const defaultTraceDepth = 5

// TraceDependenciesInput is the input schema for trace_dependencies.
type TraceDependenciesInput struct {
	Name      string `json:"name"                jsonschema:"qualified name of the entity to trace from"`
	Direction string `json:"direction,omitempty" jsonschema:"upstream, downstream, or both (default both)"`
	MaxDepth  int    `json:"max_depth,omitempty" jsonschema:"maximum BFS depth, default 5"`
}

// TraceNode is one entity reached during a dependency trace.
type TraceNode struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Kind  string `json:"kind"`
	Depth int    `json:"depth"`
}

func handleTraceDependencies(s *Server) func(context.Context, *mcpsdk.CallToolRequest, TraceDependenciesInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in TraceDependenciesInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		snap := s.snap()

		if snap.Store.GetNode(in.Name) == nil {
			return errorResult(ErrEntityNotFound)
		}

		direction := in.Direction
		if direction == "" {
			direction = "both"
		}

		if direction != "upstream" && direction != "downstream" && direction != "both" {
			return errorResult(ErrUnknownTraceDirection)
		}

		maxDepth := in.MaxDepth
		if maxDepth <= 0 {
			maxDepth = defaultTraceDepth
		}

		results := bfsTrace(snap.Store, in.Name, direction, maxDepth)

		return jsonResult(results)
	}
}

// bfsTrace runs a bounded breadth-first search over Calls/Imports edges
// (spec "bounded BFS upstream/downstream/both over Calls/Imports").
func bfsTrace(store *graph.Store, start, direction string, maxDepth int) []TraceNode {
	visited := map[string]bool{start: true}
	frontier := []string{start}

	var out []TraceNode

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string

		for _, qn := range frontier {
			for _, neighbor := range neighborsFor(store, qn, direction) {
				if visited[neighbor] {
					continue
				}

				visited[neighbor] = true
				next = append(next, neighbor)

				n := store.GetNode(neighbor)
				if n == nil {
					continue
				}

				out = append(out, TraceNode{Name: n.QualifiedName, File: n.FilePath, Kind: string(n.Kind), Depth: depth})
			}
		}

		frontier = next
	}

	return out
}

func neighborsFor(store *graph.Store, qn, direction string) []string {
	var out []string

	if direction == "upstream" || direction == "both" {
		out = append(out, store.GetCallers(qn)...)
		out = append(out, store.GetImporters(qn)...)
	}

	if direction == "downstream" || direction == "both" {
		out = append(out, store.GetCallees(qn)...)
		out = append(out, store.GetImportees(qn)...)
	}

	return out
}

// AnalyzeImpactInput is the input schema for analyze_impact.
type AnalyzeImpactInput struct {
	Name string `json:"name" jsonschema:"qualified name of the entity to assess"`
}

// AnalyzeImpactOutput is the blast-radius assessment of changing an entity.
type AnalyzeImpactOutput struct {
	Name                string   `json:"name"`
	DirectDependents     []string `json:"direct_dependents"`
	TransitiveDependents []string `json:"transitive_dependents"`
	AffectedFiles        []string `json:"affected_files"`
	RiskBucket           string   `json:"risk_bucket"`
	StronglyConnected    bool     `json:"strongly_connected"`
}

func handleAnalyzeImpact(s *Server) func(context.Context, *mcpsdk.CallToolRequest, AnalyzeImpactInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in AnalyzeImpactInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		snap := s.snap()

		if snap.Store.GetNode(in.Name) == nil {
			return errorResult(ErrEntityNotFound)
		}

		direct := append(append([]string{}, snap.Store.GetCallers(in.Name)...), snap.Store.GetImporters(in.Name)...)

		transitive := bfsTrace(snap.Store, in.Name, "upstream", 1<<20)

		transitiveNames := make([]string, 0, len(transitive))
		affectedFiles := make(map[string]struct{})

		for _, t := range transitive {
			transitiveNames = append(transitiveNames, t.Name)
			affectedFiles[t.File] = struct{}{}
		}

		files := make([]string, 0, len(affectedFiles))
		for f := range affectedFiles {
			files = append(files, f)
		}

		strongly := inAnyCycle(snap.Store, in.Name)

		return jsonResult(AnalyzeImpactOutput{
			Name:                 in.Name,
			DirectDependents:     direct,
			TransitiveDependents: transitiveNames,
			AffectedFiles:        files,
			RiskBucket:           riskBucket(len(transitiveNames), strongly),
			StronglyConnected:    strongly,
		})
	}
}

func inAnyCycle(store *graph.Store, qn string) bool {
	for _, cycle := range append(store.FindImportCycles(), store.FindCallCycles()...) {
		for _, member := range cycle {
			if member == qn {
				return true
			}
		}
	}

	return false
}

func riskBucket(transitiveCount int, stronglyConnected bool) string {
	switch {
	case stronglyConnected:
		return "high"
	case transitiveCount > 20:
		return "high"
	case transitiveCount > 5:
		return "medium"
	default:
		return "low"
	}
}
