package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// BlameHunk is a contiguous range of lines in a file attributed to a single
// commit, as produced by git blame.
type BlameHunk struct {
	Commit      Hash
	Author      Signature
	StartLine   int // 1-based, inclusive.
	LineCount   int
	OrigPath    string
	IsBoundary  bool
}

// EndLine returns the 1-based inclusive end line of the hunk.
func (h BlameHunk) EndLine() int {
	return h.StartLine + h.LineCount - 1
}

// Blame wraps a libgit2 blame result for a single file.
type Blame struct {
	blame *git2go.Blame
}

// BlameFile computes a full-history blame for path, as checked out at HEAD.
func (r *Repository) BlameFile(path string) (*Blame, error) {
	opts, err := git2go.DefaultBlameOptions()
	if err != nil {
		return nil, fmt.Errorf("default blame options: %w", err)
	}

	b, err := r.repo.BlameFile(path, &opts)
	if err != nil {
		return nil, fmt.Errorf("blame file %s: %w", path, err)
	}

	return &Blame{blame: b}, nil
}

// BlameFileAt computes a blame for path as of newestCommit (inclusive),
// used to blame a historical revision rather than HEAD.
func (r *Repository) BlameFileAt(path string, newestCommit Hash) (*Blame, error) {
	opts, err := git2go.DefaultBlameOptions()
	if err != nil {
		return nil, fmt.Errorf("default blame options: %w", err)
	}

	opts.NewestCommit = *newestCommit.ToOid()

	b, err := r.repo.BlameFile(path, &opts)
	if err != nil {
		return nil, fmt.Errorf("blame file %s at %s: %w", path, newestCommit, err)
	}

	return &Blame{blame: b}, nil
}

// HunkCount returns the number of hunks in the blame.
func (b *Blame) HunkCount() int {
	if b.blame == nil {
		return 0
	}

	return b.blame.HunkCount()
}

// Hunks returns every hunk in the blame, in file-line order.
func (b *Blame) Hunks() []BlameHunk {
	n := b.HunkCount()
	out := make([]BlameHunk, 0, n)

	for i := 0; i < n; i++ {
		h, err := b.blame.HunkByIndex(i)
		if err != nil {
			continue
		}

		out = append(out, BlameHunk{
			Commit:    HashFromOid(h.FinalCommitId),
			Author:    Signature{Name: h.FinalSignature.Name, Email: h.FinalSignature.Email, When: h.FinalSignature.When},
			StartLine: h.FinalStartLineNumber,
			LineCount: h.LinesInHunk,
			OrigPath:  h.OrigPath,
			IsBoundary: h.Boundary,
		})
	}

	return out
}

// Free releases the blame's native resources.
func (b *Blame) Free() {
	if b.blame != nil {
		b.blame.Free()
		b.blame = nil
	}
}
