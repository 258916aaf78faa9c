package toolserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants (spec sec 4.11 "Tools (free tier)" plus the pro tier).
const (
	toolRunAnalysis           = "run_analysis"
	toolListFindings          = "list_findings"
	toolReadFile              = "read_file"
	toolArchitectureOverview  = "architecture_overview"
	toolListDetectors         = "list_detectors"
	toolListHotspots          = "list_hotspots"
	toolQueryGraph            = "query_graph"
	toolTraceDependencies     = "trace_dependencies"
	toolAnalyzeImpact         = "analyze_impact"
	toolQueryEvolution        = "query_evolution"
	toolSearch                = "search"
	toolAsk                   = "ask"
	toolAIFix                 = "ai_fix"
)

// defaultPageSize and maxPageSize bound the list-returning tools' pagination
// envelope (spec "All list-returning tools return
// {results|items, total_count, returned|offset, has_more}").
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Sentinel errors for tool input validation.
var (
	ErrEmptyRepoPath       = errors.New("no repository has been analyzed yet; call run_analysis first")
	ErrPathTraversal       = errors.New("path escapes the repository root")
	ErrFileNotFound        = errors.New("file not found")
	ErrEntityNotFound      = errors.New("no entity with that name was found in the graph")
	ErrProKeyRequired        = errors.New("this tool requires a pro API key")
	ErrUnknownTraceDirection = errors.New("direction must be one of: upstream, downstream, both")

	errRequiredField          = errors.New("required field missing")
	errUnknownGraphQueryKind  = errors.New("kind must be one of: functions, classes, files, stats, callers, callees")
	errProBackendUnconfigured = errors.New("a pro API key is present but no cloud or local LLM backend is configured")
)

// ToolOutput is a generic wrapper for tool results, used as the structured
// output of every AddTool registration.
type ToolOutput struct {
	Data any `json:"data"`
}

// Page is the pagination envelope shared by every list-returning tool.
type Page[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
}

// paginate slices items[offset:offset+limit], clamping limit to
// [1, maxPageSize] and offset to a valid range.
func paginate[T any](items []T, offset, limit int) Page[T] {
	if limit <= 0 {
		limit = defaultPageSize
	}

	if limit > maxPageSize {
		limit = maxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	total := len(items)
	if offset > total {
		offset = total
	}

	end := offset + limit
	if end > total {
		end = total
	}

	page := items[offset:end]
	out := make([]T, len(page))
	copy(out, page)

	return Page[T]{
		Items:      out,
		TotalCount: total,
		Offset:     offset,
		HasMore:    end < total,
	}
}

// errorResult builds a CallToolResult with IsError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}

// resolveWithinRoot joins root and rel, then rejects the result unless it
// remains within root (spec "repo-root containment check to reject path
// traversal").
func resolveWithinRoot(root, rel string) (string, error) {
	joined := filepath.Join(root, rel)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve repo root: %w", err)
	}

	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	if absJoined != absRoot && !strings.HasPrefix(absJoined, absRoot+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return absJoined, nil
}

// Tool description constants.
const (
	runAnalysisDescription = "Run (or re-run) the full analysis pipeline over the configured " +
		"repository: rebuild the code graph, enrich it with Git history, run every detector, " +
		"and recompute the health report."

	listFindingsDescription = "List findings from the last analysis run, with pagination and " +
		"optional filtering by severity, category, detector, or file."

	readFileDescription = "Read a file from the analyzed repository, rejecting any path that " +
		"escapes the repository root."

	architectureOverviewDescription = "Summarize the repository's architecture: graph size, " +
		"health report, import/call cycles, and the detectors contributing the most findings."

	listDetectorsDescription = "List every registered detector with its category and whether it " +
		"is dependent on other detectors' output."

	listHotspotsDescription = "List the functions and classes with the highest combined fan-in, " +
		"fan-out, and finding density, as a proxy for change risk."

	queryGraphDescription = "Query the code graph: list functions, classes, or files, fetch " +
		"graph-wide stats, or (with a required name) list a function's callers or callees."

	traceDependenciesDescription = "Bounded breadth-first traversal of Calls/Imports edges from a " +
		"named entity, upstream (callers/importers), downstream (callees/importees), or both."

	analyzeImpactDescription = "Estimate the blast radius of changing a named entity: direct and " +
		"transitive reverse dependents, the files they live in, a risk bucket, and whether the " +
		"entity participates in a cycle."

	queryEvolutionDescription = "Query a file or function's Git history: churn, commit list, " +
		"blame-derived ownership, and ownership distribution across authors."

	searchDescription = "Semantic search over the repository (pro tier)."
	askDescription     = "Ask a natural-language question about the repository (pro tier)."
	aiFixDescription   = "Generate a suggested fix for a finding (pro tier)."
)
