package toolserver

import (
	"context"
	"fmt"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// ArchitectureOverviewInput is the input schema for architecture_overview.
type ArchitectureOverviewInput struct{}

// ArchitectureOverviewOutput summarizes the repository's structure and health.
type ArchitectureOverviewOutput struct {
	GraphStats       graph.Stats      `json:"graph_stats"`
	Report           ReportView       `json:"report"`
	ImportCycleCount int              `json:"import_cycle_count"`
	CallCycleCount   int              `json:"call_cycle_count"`
	TopDetectors     []DetectorTally  `json:"top_detectors"`
}

// ReportView is the JSON-friendly projection of score.Report.
type ReportView struct {
	Structure    float64 `json:"structure"`
	Quality      float64 `json:"quality"`
	Architecture float64 `json:"architecture"`
	Overall      float64 `json:"overall"`
	Grade        string  `json:"grade"`
}

// DetectorTally is one detector's finding count within a run.
type DetectorTally struct {
	Detector string `json:"detector"`
	Count    int    `json:"count"`
}

func handleArchitectureOverview(s *Server) func(context.Context, *mcpsdk.CallToolRequest, ArchitectureOverviewInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, _ ArchitectureOverviewInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		snap := s.snap()

		counts := make(map[string]int)
		for _, f := range snap.Findings {
			counts[f.Detector]++
		}

		top := make([]DetectorTally, 0, len(counts))
		for name, count := range counts {
			top = append(top, DetectorTally{Detector: name, Count: count})
		}

		sort.Slice(top, func(i, j int) bool {
			if top[i].Count != top[j].Count {
				return top[i].Count > top[j].Count
			}

			return top[i].Detector < top[j].Detector
		})

		if len(top) > 10 {
			top = top[:10]
		}

		return jsonResult(ArchitectureOverviewOutput{
			GraphStats: snap.Store.Stats(),
			Report: ReportView{
				Structure:    snap.Report.Structure,
				Quality:      snap.Report.Quality,
				Architecture: snap.Report.Architecture,
				Overall:      snap.Report.Overall,
				Grade:        string(snap.Report.Grade),
			},
			ImportCycleCount: len(snap.Store.FindImportCycles()),
			CallCycleCount:   len(snap.Store.FindCallCycles()),
			TopDetectors:     top,
		})
	}
}

// ListHotspotsInput is the input schema for list_hotspots.
type ListHotspotsInput struct {
	Offset int `json:"offset,omitempty" jsonschema:"pagination offset, default 0"`
	Limit  int `json:"limit,omitempty"  jsonschema:"page size, default 50, max 500"`
}

// Hotspot ranks one function or class by coupling and finding density.
type Hotspot struct {
	Name         string `json:"name"`
	File         string `json:"file"`
	Kind         string `json:"kind"`
	FanIn        int    `json:"fan_in"`
	FanOut       int    `json:"fan_out"`
	FindingCount int    `json:"finding_count"`
	Score        int    `json:"score"`
}

func handleListHotspots(s *Server) func(context.Context, *mcpsdk.CallToolRequest, ListHotspotsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in ListHotspotsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		snap := s.snap()

		findingsByFile := make(map[string]int)
		for _, f := range snap.Findings {
			findingsByFile[f.PrimaryFile()]++
		}

		var hotspots []Hotspot

		for _, n := range snap.Store.GetNodesByKind(graph.KindFunction) {
			fanIn := snap.Store.CallFanIn(n.QualifiedName)
			fanOut := snap.Store.CallFanOut(n.QualifiedName)
			fc := findingsByFile[n.FilePath]

			hotspots = append(hotspots, Hotspot{
				Name: n.QualifiedName, File: n.FilePath, Kind: "Function",
				FanIn: fanIn, FanOut: fanOut, FindingCount: fc,
				Score: fanIn + fanOut + fc,
			})
		}

		for _, n := range snap.Store.GetNodesByKind(graph.KindClass) {
			fc := findingsByFile[n.FilePath]

			hotspots = append(hotspots, Hotspot{
				Name: n.QualifiedName, File: n.FilePath, Kind: "Class",
				FindingCount: fc, Score: fc,
			})
		}

		sort.SliceStable(hotspots, func(i, j int) bool {
			if hotspots[i].Score != hotspots[j].Score {
				return hotspots[i].Score > hotspots[j].Score
			}

			return hotspots[i].Name < hotspots[j].Name
		})

		return jsonResult(paginate(hotspots, in.Offset, in.Limit))
	}
}

// QueryGraphInput is the input schema for query_graph.
type QueryGraphInput struct {
	Kind   string `json:"kind"             jsonschema:"one of: functions, classes, files, stats, callers, callees"`
	Name   string `json:"name,omitempty"   jsonschema:"qualified entity name, required for callers/callees"`
	Offset int    `json:"offset,omitempty" jsonschema:"pagination offset, default 0"`
	Limit  int    `json:"limit,omitempty"  jsonschema:"page size, default 50, max 500"`
}

// QueryGraphEntity is one function/class/file node in a query_graph result.
type QueryGraphEntity struct {
	Name string `json:"name"`
	File string `json:"file"`
	Kind string `json:"kind"`
}

func handleQueryGraph(s *Server) func(context.Context, *mcpsdk.CallToolRequest, QueryGraphInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in QueryGraphInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		snap := s.snap()

		switch in.Kind {
		case "functions":
			return jsonResult(paginate(toEntities(snap.Store.GetNodesByKind(graph.KindFunction)), in.Offset, in.Limit))
		case "classes":
			return jsonResult(paginate(toEntities(snap.Store.GetNodesByKind(graph.KindClass)), in.Offset, in.Limit))
		case "files":
			return jsonResult(paginate(toEntities(snap.Store.GetNodesByKind(graph.KindFile)), in.Offset, in.Limit))
		case "stats":
			return jsonResult(snap.Store.Stats())
		case "callers":
			if in.Name == "" {
				return errorResult(fmt.Errorf("%w: name", errRequiredField))
			}

			return jsonResult(paginate(snap.Store.GetCallers(in.Name), in.Offset, in.Limit))
		case "callees":
			if in.Name == "" {
				return errorResult(fmt.Errorf("%w: name", errRequiredField))
			}

			return jsonResult(paginate(snap.Store.GetCallees(in.Name), in.Offset, in.Limit))
		default:
			return errorResult(fmt.Errorf("%w: %q", errUnknownGraphQueryKind, in.Kind))
		}
	}
}

func toEntities(nodes []*graph.Node) []QueryGraphEntity {
	out := make([]QueryGraphEntity, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, QueryGraphEntity{Name: n.QualifiedName, File: n.FilePath, Kind: string(n.Kind)})
	}

	return out
}
