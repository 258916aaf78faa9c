package toolserver

import (
	"context"
	"os"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph-dev/codegraph/pkg/detect"
)

// RunAnalysisInput is the input schema for run_analysis. It takes no
// parameters; the repository root is fixed at server construction.
type RunAnalysisInput struct{}

// RunAnalysisOutput summarizes the freshly computed snapshot.
type RunAnalysisOutput struct {
	FindingCount int         `json:"finding_count"`
	Grade        string      `json:"grade"`
	Overall      float64     `json:"overall_score"`
	Structure    float64     `json:"structure_score"`
	Quality      float64     `json:"quality_score"`
	Architecture float64     `json:"architecture_score"`
	GraphStats   interface{} `json:"graph_stats"`
}

func handleRunAnalysis(s *Server) func(context.Context, *mcpsdk.CallToolRequest, RunAnalysisInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, _ RunAnalysisInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		if s.runner != nil {
			fresh, err := s.runner(ctx)
			if err != nil {
				return errorResult(err)
			}

			s.setSnap(fresh)
		}

		snap := s.snap()

		return jsonResult(RunAnalysisOutput{
			FindingCount: len(snap.Findings),
			Grade:        string(snap.Report.Grade),
			Overall:      snap.Report.Overall,
			Structure:    snap.Report.Structure,
			Quality:      snap.Report.Quality,
			Architecture: snap.Report.Architecture,
			GraphStats:   snap.Store.Stats(),
		})
	}
}

// ListFindingsInput is the input schema for list_findings.
type ListFindingsInput struct {
	Severity string `json:"severity,omitempty" jsonschema:"filter by exact severity (Critical, High, Medium, Low, Info)"`
	Category string `json:"category,omitempty" jsonschema:"filter by exact category (Security, CodeQuality, MachineLearning, Performance, Other)"`
	Detector string `json:"detector,omitempty" jsonschema:"filter by exact detector name"`
	File     string `json:"file,omitempty"     jsonschema:"filter to findings whose affected files include this path"`
	Offset   int    `json:"offset,omitempty"   jsonschema:"pagination offset, default 0"`
	Limit    int    `json:"limit,omitempty"    jsonschema:"page size, default 50, max 500"`
}

func handleListFindings(s *Server) func(context.Context, *mcpsdk.CallToolRequest, ListFindingsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in ListFindingsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		findings := s.snap().Findings

		filtered := make([]detect.Finding, 0, len(findings))

		for _, f := range findings {
			if in.Severity != "" && string(f.Severity) != in.Severity {
				continue
			}

			if in.Category != "" && string(f.Category) != in.Category {
				continue
			}

			if in.Detector != "" && f.Detector != in.Detector {
				continue
			}

			if in.File != "" && !containsFile(f.AffectedFiles, in.File) {
				continue
			}

			filtered = append(filtered, f)
		}

		sort.SliceStable(filtered, func(i, j int) bool {
			if filtered[i].Severity.Ordinal() != filtered[j].Severity.Ordinal() {
				return filtered[i].Severity.Ordinal() < filtered[j].Severity.Ordinal()
			}

			if filtered[i].PrimaryFile() != filtered[j].PrimaryFile() {
				return filtered[i].PrimaryFile() < filtered[j].PrimaryFile()
			}

			return filtered[i].LineStart < filtered[j].LineStart
		})

		return jsonResult(paginate(filtered, in.Offset, in.Limit))
	}
}

func containsFile(files []string, want string) bool {
	for _, f := range files {
		if f == want {
			return true
		}
	}

	return false
}

// ReadFileInput is the input schema for read_file.
type ReadFileInput struct {
	Path string `json:"path" jsonschema:"repository-relative path to read"`
}

// ReadFileOutput is the content of a repository file.
type ReadFileOutput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func handleReadFile(s *Server) func(context.Context, *mcpsdk.CallToolRequest, ReadFileInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in ReadFileInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		snap := s.snap()
		if snap.RepoRoot == "" {
			return errorResult(ErrEmptyRepoPath)
		}

		abs, err := resolveWithinRoot(snap.RepoRoot, in.Path)
		if err != nil {
			return errorResult(err)
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			return errorResult(ErrFileNotFound)
		}

		return jsonResult(ReadFileOutput{Path: in.Path, Content: string(data)})
	}
}

// ListDetectorsInput is the input schema for list_detectors.
type ListDetectorsInput struct{}

// DetectorInfo describes one registered detector.
type DetectorInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Dependent   bool   `json:"is_dependent"`
}

func handleListDetectors(s *Server) func(context.Context, *mcpsdk.CallToolRequest, ListDetectorsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListDetectorsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		snap := s.snap()

		infos := make([]DetectorInfo, 0, len(snap.Detectors))
		for _, d := range snap.Detectors {
			infos = append(infos, DetectorInfo{
				Name:        d.Name(),
				Description: d.Description(),
				Category:    string(d.Category()),
				Dependent:   d.IsDependent(),
			})
		}

		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

		return jsonResult(paginate(infos, 0, maxPageSize))
	}
}
