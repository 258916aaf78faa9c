package detect

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Severity is a finding's urgency, ordered Critical (worst) to Info (best).
type Severity string

// Supported severities.
const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// ordinal returns the severity's sort rank, lower sorts first (more severe).
func (s Severity) ordinal() int { return s.Ordinal() }

// Ordinal returns the severity's numeric rank, 0 (Critical) through 4
// (Info), used both for sorting and as a feature-vector input.
func (s Severity) Ordinal() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

// AdjustSeverity scales base by a function-context role multiplier (spec
// "Role→severity multiplier"), then clamps the result so it is never more
// severe than max (spec "detectors clamp after multiplier"). Severity has no
// continuous scale, so the multiplier is applied to the inverted ordinal
// (0=Info..4=Critical) and rounded back to the nearest severity level.
func AdjustSeverity(base Severity, multiplier float64, max Severity) Severity {
	weight := 4 - base.Ordinal()
	adjusted := int(math.Round(float64(weight) * multiplier))

	if adjusted > 4 {
		adjusted = 4
	} else if adjusted < 0 {
		adjusted = 0
	}

	ordinal := 4 - adjusted
	if ordinal < max.Ordinal() {
		ordinal = max.Ordinal()
	}

	return severityFromOrdinal(ordinal)
}

// severityFromOrdinal reverses Ordinal.
func severityFromOrdinal(o int) Severity {
	switch o {
	case 0:
		return SeverityCritical
	case 1:
		return SeverityHigh
	case 2:
		return SeverityMedium
	case 3:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Category groups a detector for feature extraction and scoring.
type Category string

// Supported categories.
const (
	CategorySecurity        Category = "Security"
	CategoryCodeQuality     Category = "CodeQuality"
	CategoryMachineLearning Category = "MachineLearning"
	CategoryPerformance     Category = "Performance"
	CategoryOther           Category = "Other"
)

// Ordinal returns the category's stable numeric encoding, used as a
// feature-vector input.
func (c Category) Ordinal() int {
	switch c {
	case CategorySecurity:
		return 0
	case CategoryCodeQuality:
		return 1
	case CategoryMachineLearning:
		return 2
	case CategoryPerformance:
		return 3
	case CategoryOther:
		return 4
	default:
		return 5
	}
}

// Finding is a single reported issue (spec "Finding").
type Finding struct {
	ID              string
	Detector        string
	Severity        Severity
	Title           string
	Description     string
	AffectedFiles   []string
	SuggestedFix    string
	EstimatedEffort string
	Category        Category
	CWEID           string
	WhyItMatters    string
	LineStart       int
	LineEnd         int
	HasLineRange    bool
	Confidence      float64
}

// NewFindingID computes the deterministic id for a (detector, file, line,
// title) tuple (spec "stable id ... deterministic hash of detector | file |
// line | title").
func NewFindingID(detector, file string, line int, title string) string {
	h := xxhash.New()
	_, _ = h.WriteString(detector)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(file)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.Itoa(line))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(title)

	return fmt.Sprintf("%016x", h.Sum64())
}

// primaryFile returns the first affected file, or "" when none.
func (f Finding) primaryFile() string { return f.PrimaryFile() }

// PrimaryFile returns the first affected file, or "" when none.
func (f Finding) PrimaryFile() string {
	if len(f.AffectedFiles) == 0 {
		return ""
	}

	return f.AffectedFiles[0]
}
