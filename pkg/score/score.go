// Package score computes the repository health score from graph size and
// weighted finding deductions across three pillars (spec sec 4.8).
package score

import (
	"math"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// Pillar weights sum to 1.0.
const (
	structureWeight    = 0.40
	qualityWeight      = 0.30
	architectureWeight = 0.30
)

const (
	pillarMin = 25.0
	pillarMax = 100.0
)

const securityMultiplier = 3.0

const minSizeFactor = 5.0

// baseDeduction is the per-severity deduction before size scaling and
// category multipliers (spec "Base per-finding deduction").
var baseDeduction = map[detect.Severity]float64{
	detect.SeverityCritical: 10,
	detect.SeverityHigh:     5,
	detect.SeverityMedium:   1.5,
	detect.SeverityLow:      0.3,
	detect.SeverityInfo:     0,
}

// Grade is a letter grade derived from the weighted score, capped by the
// worst severity present (spec "Letter grade").
type Grade string

// Supported grades.
const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Report is the full scoring result for one analysis run.
type Report struct {
	Structure    float64
	Quality      float64
	Architecture float64
	Overall      float64
	Grade        Grade
}

// Score computes a Report from store's size and findings (spec sec 4.8).
func Score(store *graph.Store, findings []detect.Finding) Report {
	sizeFactor := computeSizeFactor(store)

	var structureDeduction, qualityDeduction, architectureDeduction float64

	var hasCritical, hasHigh bool

	for _, f := range findings {
		switch f.Severity {
		case detect.SeverityCritical:
			hasCritical = true
		case detect.SeverityHigh:
			hasHigh = true
		}

		deduction := baseDeduction[f.Severity] / sizeFactor

		sStruct, sQuality, sArch := pillarShare(f)

		isSecurity := f.Category == detect.CategorySecurity || f.CWEID != ""
		if isSecurity {
			deduction *= securityMultiplier
		}

		structureDeduction += deduction * sStruct
		qualityDeduction += deduction * sQuality
		architectureDeduction += deduction * sArch
	}

	structure := clampPillar(pillarMax - structureDeduction)
	quality := clampPillar(pillarMax - qualityDeduction)
	architecture := clampPillar(pillarMax - architectureDeduction)

	overall := structure*structureWeight + quality*qualityWeight + architecture*architectureWeight

	return Report{
		Structure:    structure,
		Quality:      quality,
		Architecture: architecture,
		Overall:      overall,
		Grade:        grade(overall, hasCritical, hasHigh),
	}
}

func computeSizeFactor(store *graph.Store) float64 {
	totalFiles := len(store.GetNodesByKind(graph.KindFile))
	totalFunctions := len(store.GetNodesByKind(graph.KindFunction))

	return math.Max(minSizeFactor, math.Sqrt(float64(totalFiles+totalFunctions)))
}

func clampPillar(v float64) float64 {
	if v < pillarMin {
		return pillarMin
	}

	if v > pillarMax {
		return pillarMax
	}

	return v
}

// pillarShare returns the fraction of f's deduction assigned to
// (structure, quality, architecture), summing to 1.
//
// Structure: naming/complexity/readability findings (the quality.go family
// minus its handful of non-readability checks).
// Architecture: cycles, bottlenecks, feature envy (the structural.go
// family).
// Quality: security findings (scaled by the 3x multiplier elsewhere).
// Everything else (global mutable state, empty catch, inconsistent
// returns, unused code, duplicate boilerplate) is neither a structure nor
// an architecture concern on its own, so it is split a third into each
// pillar.
func pillarShare(f detect.Finding) (structure, quality, architecture float64) {
	switch {
	case strings.HasPrefix(f.Detector, "structural_"):
		return 0, 0, 1
	case f.Category == detect.CategorySecurity || f.CWEID != "":
		return 0, 1, 0
	case isStructureDetector(f.Detector):
		return 1, 0, 0
	default:
		third := 1.0 / 3.0

		return third, third, third
	}
}

var structureDetectors = map[string]struct{}{
	"quality_long_method":         {},
	"quality_god_class":           {},
	"quality_high_complexity":     {},
	"quality_low_maintainability": {},
	"quality_deep_nesting":        {},
	"quality_magic_numbers":       {},
	"quality_single_char_name":    {},
	"quality_wildcard_import":     {},
}

func isStructureDetector(name string) bool {
	_, ok := structureDetectors[name]

	return ok
}

// grade maps the weighted overall score to a letter grade, then applies the
// severity-driven caps (spec "any Critical caps the grade at C; any High
// with no Critical caps at B").
func grade(overall float64, hasCritical, hasHigh bool) Grade {
	g := rawGrade(overall)

	if hasCritical {
		g = worseOf(g, GradeC)
	} else if hasHigh {
		g = worseOf(g, GradeB)
	}

	return g
}

func rawGrade(overall float64) Grade {
	switch {
	case overall >= 90:
		return GradeA
	case overall >= 80:
		return GradeB
	case overall >= 70:
		return GradeC
	case overall >= 60:
		return GradeD
	default:
		return GradeF
	}
}

var gradeRank = map[Grade]int{GradeA: 0, GradeB: 1, GradeC: 2, GradeD: 3, GradeF: 4}

// worseOf returns whichever of g and floor has the higher (worse) rank.
func worseOf(g, floor Grade) Grade {
	if gradeRank[g] < gradeRank[floor] {
		return floor
	}

	return g
}
