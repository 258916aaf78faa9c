package toolserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph-dev/codegraph/pkg/githistory"
)

// QueryEvolutionInput is the input schema for query_evolution.
type QueryEvolutionInput struct {
	Kind string `json:"kind"           jsonschema:"one of: file_churn, hottest_files, file_commits, function_history, entity_blame, file_ownership, recent_commits"`
	Path string `json:"path,omitempty" jsonschema:"repository-relative file path, required for file_churn/file_commits/entity_blame/file_ownership"`
	Name string `json:"name,omitempty" jsonschema:"qualified function name, required for function_history"`
	Since string `json:"since,omitempty" jsonschema:"RFC3339 timestamp; only commits after this time, used by recent_commits"`
	Offset int `json:"offset,omitempty" jsonschema:"pagination offset, default 0"`
	Limit  int `json:"limit,omitempty"  jsonschema:"page size, default 50, max 500"`
}

// CommitView is the JSON-friendly projection of githistory.CommitInfo.
type CommitView struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Email   string `json:"email"`
	When    string `json:"when"`
	Message string `json:"message"`
}

func toCommitView(c githistory.CommitInfo) CommitView {
	return CommitView{Hash: c.Hash, Author: c.Author, Email: c.Email, When: c.When.Format("2006-01-02T15:04:05Z07:00"), Message: c.Message}
}

// FileChurnView is the JSON-friendly projection of githistory.FileChurn.
type FileChurnView struct {
	Path            string   `json:"path"`
	TotalInsertions int      `json:"total_insertions"`
	TotalDeletions  int      `json:"total_deletions"`
	CommitCount     int      `json:"commit_count"`
	Authors         []string `json:"authors"`
	LastAuthor      string   `json:"last_author"`
}

func handleQueryEvolution(s *Server) func(context.Context, *mcpsdk.CallToolRequest, QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
		snap := s.snap()
		if snap.History == nil {
			return errorResult(fmt.Errorf("%w: the analyzed path is not a Git repository", ErrEmptyRepoPath))
		}

		switch in.Kind {
		case "file_churn":
			return evolutionFileChurn(snap.History, in)
		case "hottest_files":
			return evolutionHottestFiles(snap.History, in)
		case "file_commits":
			return evolutionFileCommits(snap.History, in)
		case "function_history":
			return evolutionFunctionHistory(snap, in)
		case "entity_blame":
			return evolutionEntityBlame(snap, in)
		case "file_ownership":
			return evolutionFileOwnership(snap.History, in)
		case "recent_commits":
			return evolutionRecentCommits(snap.History, in)
		default:
			return errorResult(fmt.Errorf("%w: %q", errUnknownEvolutionKind, in.Kind))
		}
	}
}

func evolutionFileChurn(hist *githistory.History, in QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.Path == "" {
		return errorResult(fmt.Errorf("%w: path", errRequiredField))
	}

	churn, err := hist.FileChurnFor(in.Path)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(FileChurnView{
		Path: in.Path, TotalInsertions: churn.TotalInsertions, TotalDeletions: churn.TotalDeletions,
		CommitCount: churn.CommitCount, Authors: churn.Authors, LastAuthor: churn.LastAuthor,
	})
}

func evolutionHottestFiles(hist *githistory.History, in QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	churn, err := hist.RepoChurn()
	if err != nil {
		return errorResult(err)
	}

	views := make([]FileChurnView, 0, len(churn))
	for path, c := range churn {
		views = append(views, FileChurnView{
			Path: path, TotalInsertions: c.TotalInsertions, TotalDeletions: c.TotalDeletions,
			CommitCount: c.CommitCount, Authors: c.Authors, LastAuthor: c.LastAuthor,
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].CommitCount != views[j].CommitCount {
			return views[i].CommitCount > views[j].CommitCount
		}

		return views[i].Path < views[j].Path
	})

	return jsonResult(paginate(views, in.Offset, in.Limit))
}

func evolutionFileCommits(hist *githistory.History, in QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.Path == "" {
		return errorResult(fmt.Errorf("%w: path", errRequiredField))
	}

	commits, err := hist.FileCommits(in.Path)
	if err != nil {
		return errorResult(err)
	}

	views := make([]CommitView, 0, len(commits))
	for _, c := range commits {
		views = append(views, toCommitView(c))
	}

	return jsonResult(paginate(views, in.Offset, in.Limit))
}

func evolutionFunctionHistory(snap *Snapshot, in QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.Name == "" {
		return errorResult(fmt.Errorf("%w: name", errRequiredField))
	}

	n := snap.Store.GetNode(in.Name)
	if n == nil {
		return errorResult(ErrEntityNotFound)
	}

	commits, err := snap.History.FileLineRangeCommits(n.FilePath, n.LineStart, n.LineEnd)
	if err != nil {
		return errorResult(err)
	}

	views := make([]CommitView, 0, len(commits))
	for _, c := range commits {
		views = append(views, toCommitView(c))
	}

	return jsonResult(paginate(views, in.Offset, in.Limit))
}

// EntityBlameView is the JSON-friendly projection of githistory.EntityBlame.
type EntityBlameView struct {
	LastAuthor  string   `json:"last_author"`
	CommitCount int      `json:"commit_count"`
	AuthorCount int      `json:"author_count"`
	Authors     []string `json:"authors"`
}

func evolutionEntityBlame(snap *Snapshot, in QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var lineStart, lineEnd int

	path := in.Path

	if in.Name != "" {
		n := snap.Store.GetNode(in.Name)
		if n == nil {
			return errorResult(ErrEntityNotFound)
		}

		path, lineStart, lineEnd = n.FilePath, n.LineStart, n.LineEnd
	}

	if path == "" {
		return errorResult(fmt.Errorf("%w: path or name", errRequiredField))
	}

	if snap.Blame == nil {
		return errorResult(fmt.Errorf("%w: the analyzed path is not a Git repository", ErrEmptyRepoPath))
	}

	blame, err := snap.Blame.EntityBlameFor(path, lineStart, lineEnd)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(EntityBlameView{
		LastAuthor: blame.LastAuthor, CommitCount: blame.CommitCount,
		AuthorCount: blame.AuthorCount, Authors: blame.Authors,
	})
}

// OwnershipEntry is one author's share of a file's commits.
type OwnershipEntry struct {
	Author      string  `json:"author"`
	CommitCount int     `json:"commit_count"`
	Share       float64 `json:"share"`
}

func evolutionFileOwnership(hist *githistory.History, in QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.Path == "" {
		return errorResult(fmt.Errorf("%w: path", errRequiredField))
	}

	commits, err := hist.FileCommits(in.Path)
	if err != nil {
		return errorResult(err)
	}

	byAuthor := make(map[string]int)
	for _, c := range commits {
		byAuthor[c.Author]++
	}

	total := len(commits)

	entries := make([]OwnershipEntry, 0, len(byAuthor))

	for author, count := range byAuthor {
		share := 0.0
		if total > 0 {
			share = float64(count) / float64(total)
		}

		entries = append(entries, OwnershipEntry{Author: author, CommitCount: count, Share: share})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CommitCount != entries[j].CommitCount {
			return entries[i].CommitCount > entries[j].CommitCount
		}

		return entries[i].Author < entries[j].Author
	})

	return jsonResult(entries)
}

func evolutionRecentCommits(hist *githistory.History, in QueryEvolutionInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var since *time.Time

	if in.Since != "" {
		parsed, err := time.Parse(time.RFC3339, in.Since)
		if err != nil {
			return errorResult(fmt.Errorf("parse since: %w", err))
		}

		since = &parsed
	}

	commits, err := hist.RecentCommits(since)
	if err != nil {
		return errorResult(err)
	}

	views := make([]CommitView, 0, len(commits))
	for _, c := range commits {
		views = append(views, toCommitView(c))
	}

	return jsonResult(paginate(views, in.Offset, in.Limit))
}

var errUnknownEvolutionKind = errors.New("kind must be one of: file_churn, hottest_files, file_commits, " +
	"function_history, entity_blame, file_ownership, recent_commits")
