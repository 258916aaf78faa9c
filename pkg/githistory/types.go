// Package githistory exposes commit log, per-file churn, and per-line-range
// blame over a repository, with an on-disk mtime-keyed blame cache (spec
// "History"/"Blame"/"Caching" in sec 3/4.3).
package githistory

import "time"

// CommitInfo is a lightweight, garbage-collectable summary of a commit,
// decoupled from the gitlib.Commit's native libgit2 handle.
type CommitInfo struct {
	Hash      string
	Author    string
	Email     string
	When      time.Time
	Message   string
	Insertions int
	Deletions  int
	Files      []string
}

// FileChurn is the per-file commit-activity summary (spec sec 3).
type FileChurn struct {
	TotalInsertions int
	TotalDeletions  int
	CommitCount     int
	Authors         []string
	LastModified    *time.Time
	LastAuthor      string
}

// LineBlame is a merged-hunk blame entry for a contiguous line range (spec
// sec 3). Consecutive hunks attributed to the same commit are merged into a
// single entry covering their combined range.
type LineBlame struct {
	CommitHash  string
	FullHash    string
	Author      string
	AuthorEmail string
	Timestamp   time.Time
	LineStart   int
	LineEnd     int
	LineCount   int
}

// EntityBlame aggregates a file's blame over a single entity's line range
// (spec "Blame": "For an entity range [ls, le]").
type EntityBlame struct {
	LastModified *time.Time
	LastAuthor   string
	CommitCount  int
	AuthorCount  int
	Authors      []string
}
