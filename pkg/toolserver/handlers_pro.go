package toolserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Pro-tier tools call out to a cloud endpoint or a local LLM backend when an
// API key is configured; this adapter does not host either (spec "The
// adapter itself does not host the model"). Without a key every pro tool
// answers with a structured requires-API-key error.

// SearchInput is the input schema for search.
type SearchInput struct {
	Query string `json:"query" jsonschema:"natural-language or symbol search query"`
}

func handleSearch(s *Server) func(context.Context, *mcpsdk.CallToolRequest, SearchInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, _ SearchInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		if s.proKey == "" {
			return errorResult(ErrProKeyRequired)
		}

		return errorResult(errProBackendUnconfigured)
	}
}

// AskInput is the input schema for ask.
type AskInput struct {
	Question string `json:"question" jsonschema:"a natural-language question about the repository"`
}

func handleAsk(s *Server) func(context.Context, *mcpsdk.CallToolRequest, AskInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, _ AskInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		if s.proKey == "" {
			return errorResult(ErrProKeyRequired)
		}

		return errorResult(errProBackendUnconfigured)
	}
}

// AIFixInput is the input schema for ai_fix.
type AIFixInput struct {
	FindingID string `json:"finding_id" jsonschema:"the id of the finding to generate a fix for"`
}

func handleAIFix(s *Server) func(context.Context, *mcpsdk.CallToolRequest, AIFixInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in AIFixInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		if s.proKey == "" {
			return errorResult(ErrProKeyRequired)
		}

		snap := s.snap()

		for _, f := range snap.Findings {
			if f.ID == in.FindingID {
				return errorResult(errProBackendUnconfigured)
			}
		}

		return errorResult(ErrEntityNotFound)
	}
}
