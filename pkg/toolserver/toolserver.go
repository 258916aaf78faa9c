// Package toolserver implements a Model Context Protocol server exposing
// the analyzer's graph, findings, and repository history as MCP tools over
// stdio transport (spec sec 4.11).
package toolserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/githistory"
	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/observability"
	"github.com/codegraph-dev/codegraph/pkg/score"
)

const (
	serverName    = "codegraph"
	serverVersion = "1.0.0"

	toolCount = 13
)

// Snapshot is the analyzer state a tool call reads or refreshes: the code
// graph, the last finding set and health report, and (when the target is a
// Git repository) its commit history.
type Snapshot struct {
	RepoRoot  string
	Store     *graph.Store
	Findings  []detect.Finding
	Report    score.Report
	Detectors []detect.Detector
	History   *githistory.History // nil when RepoRoot isn't a Git repository.
	Blame     *githistory.Blame   // nil when RepoRoot isn't a Git repository.
}

// ServerDeps holds injectable dependencies for the tool server. Zero-value
// fields use production defaults.
type ServerDeps struct {
	Snapshot *Snapshot

	// Runner re-executes the full pipeline (ingest, graph build, git
	// enrichment, detection, classification, scoring) and returns a fresh
	// Snapshot; invoked by the run_analysis tool. Nil makes run_analysis
	// report the current snapshot unchanged.
	Runner func(ctx context.Context) (*Snapshot, error)

	// ProAPIKey, when non-empty, unlocks the pro-tier tools (search, ask,
	// ai_fix). Empty leaves them registered but answering with a
	// requires-API-key error (spec "Pro-tier tools ... require an
	// external key").
	ProAPIKey string

	Logger  *slog.Logger
	Metrics *observability.REDMetrics
	Tracer  trace.Tracer
}

// Server wraps the MCP SDK server with the analyzer's tool registrations.
type Server struct {
	inner *mcpsdk.Server

	mu       sync.RWMutex
	snapshot *Snapshot
	runner   func(ctx context.Context) (*Snapshot, error)
	proKey   string

	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates a tool server with every free- and pro-tier tool
// registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: serverName, Version: serverVersion},
		opts,
	)

	snapshot := deps.Snapshot
	if snapshot == nil {
		snapshot = &Snapshot{Store: graph.NewStore()}
	}

	srv := &Server{
		inner:    inner,
		snapshot: snapshot,
		runner:   deps.Runner,
		proKey:   deps.ProAPIKey,
		tools:    make([]string, 0, toolCount),
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the tool server on stdio transport, blocking until the
// context is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	if err := s.inner.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("tool server: %w", err)
	}

	return nil
}

// RunWithTransport starts the tool server on the given transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("tool server: %w", err)
	}

	return nil
}

// snap returns the current snapshot; held under a read lock so RunAnalysis
// can swap it out while calls are in flight.
func (s *Server) snap() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot
}

// setSnap replaces the snapshot, used by the run_analysis tool to publish a
// fresh graph/findings/report triple.
func (s *Server) setSnap(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snap
}

func (s *Server) registerTools() {
	register(s, toolRunAnalysis, runAnalysisDescription, handleRunAnalysis(s))
	register(s, toolListFindings, listFindingsDescription, handleListFindings(s))
	register(s, toolReadFile, readFileDescription, handleReadFile(s))
	register(s, toolArchitectureOverview, architectureOverviewDescription, handleArchitectureOverview(s))
	register(s, toolListDetectors, listDetectorsDescription, handleListDetectors(s))
	register(s, toolListHotspots, listHotspotsDescription, handleListHotspots(s))
	register(s, toolQueryGraph, queryGraphDescription, handleQueryGraph(s))
	register(s, toolTraceDependencies, traceDependenciesDescription, handleTraceDependencies(s))
	register(s, toolAnalyzeImpact, analyzeImpactDescription, handleAnalyzeImpact(s))
	register(s, toolQueryEvolution, queryEvolutionDescription, handleQueryEvolution(s))
	register(s, toolSearch, searchDescription, handleSearch(s))
	register(s, toolAsk, askDescription, handleAsk(s))
	register(s, toolAIFix, aiFixDescription, handleAIFix(s))
}

// register wraps handler with tracing/metrics and adds it to inner under
// name, parameterized by that tool's own input struct.
func register[Input any](
	s *Server,
	name, description string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description},
		withMetrics(s.metrics, name, withTracing(s.tracer, name, handler)))

	s.mu.Lock()
	s.tools = append(s.tools, name)
	s.mu.Unlock()
}

const mcpSpanPrefix = "tool."

const traceIDMetaKey = "trace_id"

func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("tool.name", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{
				Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String()),
			})
		}

		return result, output, err
	}
}

func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, "tool."+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, "tool."+toolName, status, time.Since(start))

		return result, output, err
	}
}
