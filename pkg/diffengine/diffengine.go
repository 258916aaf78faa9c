// Package diffengine fuzzily matches two finding sets to report what's new
// and what's fixed between a baseline and a head analysis (spec sec 4.9).
package diffengine

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/codegraph-dev/codegraph/pkg/detect"
)

// lineSlack is the maximum |Δline| two line-bearing findings may differ by
// and still be considered the same finding across a diff (spec "±3").
const lineSlack = 3

// Result is the outcome of diffing a baseline finding set against a head
// finding set, plus the score movement between them when both are known.
type Result struct {
	NewFindings   []detect.Finding
	FixedFindings []detect.Finding
	ScoreDelta    *float64
}

// Diff fuzzily matches baseline against head (spec "Matching is fuzzy:
// same detector, same first affected file, and either both file-level (no
// line) or both line-bearing with |Δline| ≤ 3"). A head finding unmatched
// in baseline is new; a baseline finding unmatched in head is fixed.
func Diff(baseline, head []detect.Finding, priorScore, postScore *float64) Result {
	matchedBaseline := make([]bool, len(baseline))
	matchedHead := make([]bool, len(head))

	for hi, h := range head {
		for bi, b := range baseline {
			if matchedBaseline[bi] {
				continue
			}

			if fuzzyMatch(b, h) {
				matchedBaseline[bi] = true
				matchedHead[hi] = true

				break
			}
		}
	}

	var result Result

	for hi, h := range head {
		if !matchedHead[hi] {
			result.NewFindings = append(result.NewFindings, h)
		}
	}

	for bi, b := range baseline {
		if !matchedBaseline[bi] {
			result.FixedFindings = append(result.FixedFindings, b)
		}
	}

	if priorScore != nil && postScore != nil {
		delta := *postScore - *priorScore
		result.ScoreDelta = &delta
	}

	return result
}

// fuzzyMatch reports whether a and b should be treated as the same finding
// across a diff.
func fuzzyMatch(a, b detect.Finding) bool {
	if a.Detector != b.Detector {
		return false
	}

	if a.PrimaryFile() != b.PrimaryFile() {
		return false
	}

	if a.HasLineRange != b.HasLineRange {
		return false
	}

	if !a.HasLineRange {
		return true
	}

	delta := a.LineStart - b.LineStart
	if delta < 0 {
		delta = -delta
	}

	return delta <= lineSlack
}

// PrintText renders a Result as colorized text to w (plain when the
// terminal doesn't support color or NoColor is set).
func PrintText(w io.Writer, r Result, noColor bool) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	if noColor {
		color.NoColor = true //nolint:reassign // explicit override per caller request
	}

	if len(r.NewFindings) == 0 && len(r.FixedFindings) == 0 {
		fmt.Fprintln(w, "No finding changes.")
	}

	for _, f := range r.NewFindings {
		red.Fprintf(w, "+ new   %s %s:%d %s\n", f.Detector, f.PrimaryFile(), f.LineStart, f.Title)
	}

	for _, f := range r.FixedFindings {
		green.Fprintf(w, "- fixed %s %s:%d %s\n", f.Detector, f.PrimaryFile(), f.LineStart, f.Title)
	}

	if r.ScoreDelta != nil {
		sign := "+"
		if *r.ScoreDelta < 0 {
			sign = ""
		}

		cyan.Fprintf(w, "score delta: %s%.1f\n", sign, *r.ScoreDelta)
	}
}

// PrintStdout is a convenience wrapper around PrintText writing to
// os.Stdout.
func PrintStdout(r Result, noColor bool) {
	PrintText(os.Stdout, r, noColor)
}
