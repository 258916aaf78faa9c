package detectors

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/codegraph-dev/codegraph/pkg/alg/lsh"
	"github.com/codegraph-dev/codegraph/pkg/alg/minhash"
	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

const (
	duplicateNumHashes      = 64
	duplicateLSHBands       = 16
	duplicateLSHRows        = duplicateNumHashes / duplicateLSHBands
	duplicateMinLines       = 5
	duplicateDiffRatioFloor = 0.75
)

var identifierToken = regexp.MustCompile(`\w+`)

// duplicateBoilerplateDetector finds near-duplicate function bodies by
// shingling each body into overlapping normalized 3-line windows,
// summarizing the shingle set with a MinHash signature, clustering
// candidates via LSH, and confirming each candidate pair with a
// character-level diff ratio over the joined lines (spec
// "Duplicate boilerplate: generate MinHash signatures per function body,
// cluster candidates with LSH, confirm with a diff-based similarity
// ratio").
type duplicateBoilerplateDetector struct{}

func (d duplicateBoilerplateDetector) Name() string { return "quality_duplicate_boilerplate" }
func (d duplicateBoilerplateDetector) Description() string {
	return "Function body is a near-duplicate of another function elsewhere in the codebase"
}
func (d duplicateBoilerplateDetector) Category() Category { return detect.CategoryCodeQuality }
func (d duplicateBoilerplateDetector) IsDependent() bool  { return false }
func (d duplicateBoilerplateDetector) UsesContext() bool  { return false }
func (d duplicateBoilerplateDetector) MaxFindings() int   { return 500 }

type duplicateCandidate struct {
	fn    *graph.Node
	lines []string
	sig   *minhash.Signature
}

func (d duplicateBoilerplateDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	candidates, err := d.collectCandidates(dctx)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	index, err := lsh.New(duplicateLSHBands, duplicateLSHRows)
	if err != nil {
		return nil, fmt.Errorf("build lsh index: %w", err)
	}

	byID := make(map[string]*duplicateCandidate, len(candidates))

	for _, c := range candidates {
		id := c.fn.QualifiedName
		byID[id] = c

		if err := index.Insert(id, c.sig); err != nil {
			return nil, fmt.Errorf("insert %s into lsh index: %w", id, err)
		}
	}

	reported := make(map[string]struct{})
	var findings []detect.Finding

	for _, c := range candidates {
		matches, err := index.QueryThreshold(c.sig, duplicateDiffRatioFloor)
		if err != nil {
			continue
		}

		for _, otherID := range matches {
			if otherID == c.fn.QualifiedName {
				continue
			}

			other, ok := byID[otherID]
			if !ok {
				continue
			}

			pairKey := pairSignature(c.fn.QualifiedName, otherID)
			if _, seen := reported[pairKey]; seen {
				continue
			}

			ratio := diffSimilarityRatio(c.lines, other.lines)
			if ratio < duplicateDiffRatioFloor {
				continue
			}

			reported[pairKey] = struct{}{}

			findings = append(findings, detect.Finding{
				ID:            detect.NewFindingID(d.Name(), c.fn.FilePath, c.fn.LineStart, "Duplicate boilerplate"),
				Detector:      d.Name(),
				Severity:      detect.SeverityLow,
				Title:         fmt.Sprintf("%s duplicates %s (%.0f%% similar)", c.fn.Name, other.fn.Name, ratio*100),
				Description:   "These two function bodies are nearly identical, which usually means a shared helper is missing.",
				AffectedFiles: []string{c.fn.FilePath, other.fn.FilePath},
				SuggestedFix:  "Extract the shared logic into a single function both call sites use.",
				Category:      detect.CategoryCodeQuality,
				LineStart:     c.fn.LineStart,
				LineEnd:       c.fn.LineEnd,
				HasLineRange:  true,
				Confidence:    ratio,
			})
		}
	}

	return findings, nil
}

func (d duplicateBoilerplateDetector) collectCandidates(dctx *detect.Context) ([]*duplicateCandidate, error) {
	var candidates []*duplicateCandidate

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		if !IsProductionPath(fn.FilePath) {
			continue
		}

		lines, ok := functionLinesFor(dctx.Files, fn)
		if !ok || len(lines) < duplicateMinLines {
			continue
		}

		sig, err := minhash.New(duplicateNumHashes)
		if err != nil {
			return nil, fmt.Errorf("build minhash signature: %w", err)
		}

		for _, shingle := range shingleBody(lines) {
			sig.Add([]byte(shingle))
		}

		candidates = append(candidates, &duplicateCandidate{fn: fn, lines: lines, sig: sig})
	}

	return candidates, nil
}

// shingleBody reduces a function body to normalized 3-line windows, so
// whitespace and variable-name differences don't prevent a match on
// structurally identical code.
func shingleBody(lines []string) []string {
	normalized := make([]string, 0, len(lines))

	for _, l := range lines {
		trimmed := strings.TrimSpace(stripComment(l))
		if trimmed == "" {
			continue
		}

		normalized = append(normalized, identifierToken.ReplaceAllString(trimmed, "x"))
	}

	const window = 3
	if len(normalized) < window {
		return normalized
	}

	shingles := make([]string, 0, len(normalized)-window+1)

	for i := 0; i+window <= len(normalized); i++ {
		shingles = append(shingles, strings.Join(normalized[i:i+window], "\n"))
	}

	return shingles
}

// diffSimilarityRatio confirms an LSH candidate pair by computing the
// fraction of matched (unchanged) text across a character-level diff of the
// two bodies joined with newlines.
func diffSimilarityRatio(a, b []string) float64 {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(strings.Join(a, "\n"), strings.Join(b, "\n"), false)

	var equal, total int

	for _, diff := range diffs {
		n := len(diff.Text)
		total += n

		if diff.Type == diffmatchpatch.DiffEqual {
			equal += n
		}
	}

	if total == 0 {
		return 0
	}

	return float64(equal) / float64(total)
}

func pairSignature(a, b string) string {
	if a < b {
		return a + "|" + b
	}

	return b + "|" + a
}
