package detectors

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/filecache"
	"github.com/codegraph-dev/codegraph/pkg/graph"
	"github.com/codegraph-dev/codegraph/pkg/textmetrics"
)

// QualityThresholds configures the code-quality detector family.
type QualityThresholds struct {
	LongMethodLOC      int
	GodClassMethods    int
	GodClassLOC        int
	HighComplexity     int
	LowMaintainability float64
	DeepNestingDepth   int
	ShortScopedLOC     int // functions at or under this size get a reduced single-char-name severity.
}

// DefaultQualityThresholds returns the spec's documented defaults.
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		LongMethodLOC:      60,
		GodClassMethods:    20,
		GodClassLOC:        500,
		HighComplexity:     15,
		LowMaintainability: 40,
		DeepNestingDepth:   4,
		ShortScopedLOC:     10,
	}
}

// NewQualityDetectors returns the code-quality detector family (spec
// "Code quality: long methods, god class, high complexity, low
// maintainability index, deep nesting, magic numbers, single-character
// names, wildcard imports, global mutable state, unused code, empty catch,
// inconsistent returns, duplicate boilerplate").
func NewQualityDetectors(t QualityThresholds) []detect.Detector {
	return []detect.Detector{
		longMethodDetector{t: t},
		godClassDetector{t: t},
		highComplexityDetector{t: t},
		lowMaintainabilityDetector{t: t},
		deepNestingDetector{t: t},
		magicNumberDetector{},
		singleCharNameDetector{t: t},
		wildcardImportDetector{},
		globalMutableStateDetector{},
		emptyCatchDetector{},
		inconsistentReturnsDetector{},
		unusedCodeDetector{},
		duplicateBoilerplateDetector{},
	}
}

func functionLinesFor(files *filecache.Cache, fn *graph.Node) ([]string, bool) {
	entry, err := files.Get(fn.FilePath)
	if err != nil {
		return nil, false
	}

	return textmetrics.FunctionLines(entry.Lines(), fn.LineStart, fn.LineEnd), true
}

// longMethodDetector flags functions whose body exceeds a line-count
// threshold.
type longMethodDetector struct {
	t QualityThresholds
}

func (d longMethodDetector) Name() string        { return "quality_long_method" }
func (d longMethodDetector) Description() string { return "Function body is unusually long" }
func (d longMethodDetector) Category() Category   { return detect.CategoryCodeQuality }
func (d longMethodDetector) IsDependent() bool    { return false }
func (d longMethodDetector) UsesContext() bool    { return false }
func (d longMethodDetector) MaxFindings() int     { return 0 }

func (d longMethodDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		if !IsProductionPath(fn.FilePath) {
			continue
		}

		loc := fn.LOC()
		if loc < d.t.LongMethodLOC {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Long method"),
			Detector:      d.Name(),
			Severity:      detect.SeverityMedium,
			Title:         fmt.Sprintf("%s is %d lines long", fn.Name, loc),
			Description:   "Long functions are harder to read, test, and change safely.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Extract cohesive sub-steps into their own named functions.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.6,
		})
	}

	return findings, nil
}

// godClassDetector flags classes with both many methods and a large body.
type godClassDetector struct {
	t QualityThresholds
}

func (d godClassDetector) Name() string       { return "quality_god_class" }
func (d godClassDetector) Description() string { return "Class has too many methods and too much code to have a single responsibility" }
func (d godClassDetector) Category() Category { return detect.CategoryCodeQuality }
func (d godClassDetector) IsDependent() bool   { return false }
func (d godClassDetector) UsesContext() bool   { return false }
func (d godClassDetector) MaxFindings() int    { return 0 }

func (d godClassDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, cl := range dctx.Store.GetNodesByKind(graph.KindClass) {
		if !IsProductionPath(cl.FilePath) {
			continue
		}

		methodCount, _ := cl.MethodCount()
		loc := cl.LOC()

		if methodCount < d.t.GodClassMethods || loc < d.t.GodClassLOC {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), cl.FilePath, cl.LineStart, "God class"),
			Detector:      d.Name(),
			Severity:      detect.SeverityHigh,
			Title:         fmt.Sprintf("%s has %d methods across %d lines", cl.Name, methodCount, loc),
			Description:   "This class accumulates unrelated responsibilities, making it hard to change safely.",
			AffectedFiles: []string{cl.FilePath},
			SuggestedFix:  "Split by responsibility into smaller, focused types.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     cl.LineStart,
			LineEnd:       cl.LineEnd,
			HasLineRange:  true,
			Confidence:    0.6,
		})
	}

	return findings, nil
}

// highComplexityDetector flags functions above a cyclomatic-complexity
// threshold, using the graph's precomputed complexity property when
// present, else falling back to textmetrics over the function's own lines
// (spec "high complexity (externally via a wrapped complexity analyzer)").
type highComplexityDetector struct {
	t QualityThresholds
}

func (d highComplexityDetector) Name() string       { return "quality_high_complexity" }
func (d highComplexityDetector) Description() string { return "Function has high cyclomatic complexity" }
func (d highComplexityDetector) Category() Category { return detect.CategoryCodeQuality }
func (d highComplexityDetector) IsDependent() bool   { return false }
func (d highComplexityDetector) UsesContext() bool   { return false }
func (d highComplexityDetector) MaxFindings() int    { return 0 }

func (d highComplexityDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		if !IsProductionPath(fn.FilePath) {
			continue
		}

		complexity := functionComplexity(dctx, fn)
		if complexity < d.t.HighComplexity {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "High complexity"),
			Detector:      d.Name(),
			Severity:      detect.SeverityHigh,
			Title:         fmt.Sprintf("%s has cyclomatic complexity %d", fn.Name, complexity),
			Description:   "High-complexity functions have many independent paths through them, each a potential untested branch.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Extract branches into named helpers, or replace a long conditional chain with a lookup table.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.6,
		})
	}

	return findings, nil
}

func functionComplexity(dctx *detect.Context, fn *graph.Node) int {
	if c, ok := fn.Complexity(); ok {
		return c
	}

	lines, ok := functionLinesFor(dctx.Files, fn)
	if !ok {
		return 0
	}

	return textmetrics.CyclomaticComplexity(lines)
}

// lowMaintainabilityDetector flags functions whose maintainability index
// (derived from complexity, Halstead volume, and LOC) falls below a
// threshold.
type lowMaintainabilityDetector struct {
	t QualityThresholds
}

func (d lowMaintainabilityDetector) Name() string       { return "quality_low_maintainability" }
func (d lowMaintainabilityDetector) Description() string { return "Function's maintainability index is low" }
func (d lowMaintainabilityDetector) Category() Category { return detect.CategoryCodeQuality }
func (d lowMaintainabilityDetector) IsDependent() bool   { return false }
func (d lowMaintainabilityDetector) UsesContext() bool   { return false }
func (d lowMaintainabilityDetector) MaxFindings() int    { return 0 }

func (d lowMaintainabilityDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		if !IsProductionPath(fn.FilePath) {
			continue
		}

		lines, ok := functionLinesFor(dctx.Files, fn)
		if !ok || len(lines) == 0 {
			continue
		}

		halstead := textmetrics.ComputeHalstead(lines)
		complexity := functionComplexity(dctx, fn)
		mi := textmetrics.MaintainabilityIndex(halstead.Volume, complexity, len(lines))

		if mi >= d.t.LowMaintainability {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Low maintainability index"),
			Detector:      d.Name(),
			Severity:      detect.SeverityMedium,
			Title:         fmt.Sprintf("%s has a maintainability index of %.0f", fn.Name, mi),
			Description:   "This function combines size, complexity, and vocabulary in a way that makes it costly to maintain.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Reduce complexity and length, or split into smaller functions with clearer names.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.5,
		})
	}

	return findings, nil
}

// deepNestingDetector flags functions whose nesting depth exceeds a
// threshold.
type deepNestingDetector struct {
	t QualityThresholds
}

func (d deepNestingDetector) Name() string       { return "quality_deep_nesting" }
func (d deepNestingDetector) Description() string { return "Function has deeply nested control flow" }
func (d deepNestingDetector) Category() Category { return detect.CategoryCodeQuality }
func (d deepNestingDetector) IsDependent() bool   { return false }
func (d deepNestingDetector) UsesContext() bool   { return false }
func (d deepNestingDetector) MaxFindings() int    { return 0 }

func (d deepNestingDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		if !IsProductionPath(fn.FilePath) {
			continue
		}

		depth, ok := fn.NestingDepth()
		if !ok {
			lines, lok := functionLinesFor(dctx.Files, fn)
			if !lok {
				continue
			}

			depth = textmetrics.NestingDepth(lines)
		}

		if depth < d.t.DeepNestingDepth {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Deep nesting"),
			Detector:      d.Name(),
			Severity:      detect.SeverityLow,
			Title:         fmt.Sprintf("%s nests %d levels deep", fn.Name, depth),
			Description:   "Deeply nested control flow is hard to follow and often hides missed edge cases.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Use early returns/guard clauses to flatten the nesting.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.5,
		})
	}

	return findings, nil
}

// magicNumberDetector flags integer literals of two or more digits appearing
// outside of constant declarations; single-digit literals are never flagged.
type magicNumberDetector struct{}

func (d magicNumberDetector) Name() string        { return "quality_magic_numbers" }
func (d magicNumberDetector) Description() string { return "Unnamed numeric literal used directly in logic" }
func (d magicNumberDetector) Category() Category   { return detect.CategoryCodeQuality }
func (d magicNumberDetector) IsDependent() bool    { return false }
func (d magicNumberDetector) UsesContext() bool    { return false }
func (d magicNumberDetector) MaxFindings() int     { return 500 }

var magicNumberToken = regexp.MustCompile(`(?:[^.\w]|^)(-?\d{2,})(?:[^.\w]|$)`)

func (d magicNumberDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	forEachProductionFile(dctx, func(path string, lines []string) {
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "const ") || strings.Contains(trimmed, "= iota") {
				continue
			}

			if isSuppressed(lines, i) {
				continue
			}

			m := magicNumberToken.FindStringSubmatch(stripComment(line))
			if m == nil {
				continue
			}

			if n, err := strconv.Atoi(m[1]); err == nil && (n == 0 || n == 1 || n == -1) {
				continue
			}

			findings = append(findings, detect.Finding{
				ID:            detect.NewFindingID(d.Name(), path, i+1, "Magic number"),
				Detector:      d.Name(),
				Severity:      detect.SeverityInfo,
				Title:         fmt.Sprintf("Magic number %s used directly", m[1]),
				Description:   "An unnamed numeric literal makes it unclear what the value means or why it was chosen.",
				AffectedFiles: []string{path},
				SuggestedFix:  "Extract the value into a named constant.",
				Category:      detect.CategoryCodeQuality,
				LineStart:     i + 1,
				LineEnd:       i + 1,
				HasLineRange:  true,
				Confidence:    0.3,
			})
		}
	})

	return findings, nil
}

// singleCharNameDetector flags single-character variable names, with
// reduced severity when the containing function is small and short-scoped
// (spec "severity reduced when the variable lives in a small, short-scoped
// function").
type singleCharNameDetector struct {
	t QualityThresholds
}

func (d singleCharNameDetector) Name() string        { return "quality_single_char_name" }
func (d singleCharNameDetector) Description() string { return "Single-character identifier reduces readability" }
func (d singleCharNameDetector) Category() Category   { return detect.CategoryCodeQuality }
func (d singleCharNameDetector) IsDependent() bool    { return false }
func (d singleCharNameDetector) UsesContext() bool    { return false }
func (d singleCharNameDetector) MaxFindings() int     { return 200 }

var singleCharDecl = regexp.MustCompile(`\b([a-zA-Z])\s*(?::?=|,\s*[a-zA-Z]\s*:?=)`)

func (d singleCharNameDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		if !IsProductionPath(fn.FilePath) {
			continue
		}

		lines, ok := functionLinesFor(dctx.Files, fn)
		if !ok {
			continue
		}

		severity := detect.SeverityLow
		if fn.LOC() <= d.t.ShortScopedLOC {
			severity = detect.SeverityInfo
		}

		for i, line := range lines {
			m := singleCharDecl.FindStringSubmatch(stripComment(line))
			if m == nil || isLoopCounter(m[1]) {
				continue
			}

			findings = append(findings, detect.Finding{
				ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart+i, "Single-character name"),
				Detector:      d.Name(),
				Severity:      severity,
				Title:         fmt.Sprintf("Single-character identifier %q in %s", m[1], fn.Name),
				Description:   "Single-character names beyond conventional loop counters obscure intent.",
				AffectedFiles: []string{fn.FilePath},
				SuggestedFix:  "Use a descriptive name.",
				Category:      detect.CategoryCodeQuality,
				LineStart:     fn.LineStart + i,
				LineEnd:       fn.LineStart + i,
				HasLineRange:  true,
				Confidence:    0.3,
			})
		}
	}

	return findings, nil
}

func isLoopCounter(name string) bool {
	switch name {
	case "i", "j", "k", "_":
		return true
	default:
		return false
	}
}

// wildcardImportDetector flags wildcard/blank imports that obscure what a
// file actually depends on.
type wildcardImportDetector struct{}

func (d wildcardImportDetector) Name() string       { return "quality_wildcard_import" }
func (d wildcardImportDetector) Description() string { return "Wildcard or blank import obscures the file's real dependencies" }
func (d wildcardImportDetector) Category() Category { return detect.CategoryCodeQuality }
func (d wildcardImportDetector) IsDependent() bool   { return false }
func (d wildcardImportDetector) UsesContext() bool   { return false }
func (d wildcardImportDetector) MaxFindings() int    { return 0 }

var wildcardImport = regexp.MustCompile(`^\s*(from\s+\S+\s+import\s+\*|import\s+\*|\.\s+"[^"]+")`)

func (d wildcardImportDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	forEachProductionFile(dctx, func(path string, lines []string) {
		for i, line := range lines {
			if !wildcardImport.MatchString(line) {
				continue
			}

			findings = append(findings, detect.Finding{
				ID:            detect.NewFindingID(d.Name(), path, i+1, "Wildcard import"),
				Detector:      d.Name(),
				Severity:      detect.SeverityLow,
				Title:         "Wildcard import obscures dependencies",
				Description:   "Wildcard imports make it unclear which symbols a file actually uses, and risk silent name collisions.",
				AffectedFiles: []string{path},
				SuggestedFix:  "Import the specific symbols used.",
				Category:      detect.CategoryCodeQuality,
				LineStart:     i + 1,
				LineEnd:       i + 1,
				HasLineRange:  true,
				Confidence:    0.7,
			})
		}
	})

	return findings, nil
}

// globalMutableStateDetector flags package/module-level mutable variable
// declarations outside of test files.
type globalMutableStateDetector struct{}

func (d globalMutableStateDetector) Name() string       { return "quality_global_mutable_state" }
func (d globalMutableStateDetector) Description() string { return "Package-level mutable variable shared across the program" }
func (d globalMutableStateDetector) Category() Category { return detect.CategoryCodeQuality }
func (d globalMutableStateDetector) IsDependent() bool   { return false }
func (d globalMutableStateDetector) UsesContext() bool   { return false }
func (d globalMutableStateDetector) MaxFindings() int    { return 0 }

var globalVarDecl = regexp.MustCompile(`^var\s+[a-zA-Z_]\w*\s+`)

func (d globalMutableStateDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	forEachProductionFile(dctx, func(path string, lines []string) {
		depth := 0

		for i, raw := range lines {
			line := stripComment(raw)
			trimmed := strings.TrimSpace(line)

			if depth == 0 && globalVarDecl.MatchString(trimmed) && !strings.Contains(trimmed, "const") {
				findings = append(findings, detect.Finding{
					ID:            detect.NewFindingID(d.Name(), path, i+1, "Global mutable state"),
					Detector:      d.Name(),
					Severity:      detect.SeverityMedium,
					Title:         "Package-level mutable variable",
					Description:   "Global mutable state is a hidden dependency between unrelated call sites and complicates concurrent use and testing.",
					AffectedFiles: []string{path},
					SuggestedFix:  "Scope the state to a struct instance passed explicitly, or make it immutable.",
					Category:      detect.CategoryCodeQuality,
					LineStart:     i + 1,
					LineEnd:       i + 1,
					HasLineRange:  true,
					Confidence:    0.4,
				})
			}

			depth += strings.Count(line, "{") - strings.Count(line, "}")
		}
	})

	return findings, nil
}

// emptyCatchDetector flags an exception handler whose body is empty,
// silently discarding the error.
type emptyCatchDetector struct{}

func (d emptyCatchDetector) Name() string       { return "quality_empty_catch" }
func (d emptyCatchDetector) Description() string { return "Exception handler silently discards the error" }
func (d emptyCatchDetector) Category() Category { return detect.CategoryCodeQuality }
func (d emptyCatchDetector) IsDependent() bool   { return false }
func (d emptyCatchDetector) UsesContext() bool   { return false }
func (d emptyCatchDetector) MaxFindings() int    { return 0 }

var catchOpener = regexp.MustCompile(`(?i)\b(catch|except)\b.*[:{]\s*$`)

func (d emptyCatchDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	forEachProductionFile(dctx, func(path string, lines []string) {
		for i, line := range lines {
			if !catchOpener.MatchString(stripComment(line)) {
				continue
			}

			if i+1 >= len(lines) {
				continue
			}

			next := strings.TrimSpace(stripComment(lines[i+1]))
			if next != "}" && next != "pass" && !strings.HasPrefix(next, "...") {
				continue
			}

			findings = append(findings, detect.Finding{
				ID:            detect.NewFindingID(d.Name(), path, i+1, "Empty exception handler"),
				Detector:      d.Name(),
				Severity:      detect.SeverityMedium,
				Title:         "Exception handler has an empty body",
				Description:   "Swallowing an exception without logging or handling it hides failures that will surface later, far from their cause.",
				AffectedFiles: []string{path},
				SuggestedFix:  "Log the error, handle it explicitly, or re-raise it.",
				Category:      detect.CategoryCodeQuality,
				LineStart:     i + 1,
				LineEnd:       i + 2,
				HasLineRange:  true,
				Confidence:    0.5,
			})
		}
	})

	return findings, nil
}

// inconsistentReturnsDetector flags functions that return a value on some
// paths and return bare on others.
type inconsistentReturnsDetector struct{}

func (d inconsistentReturnsDetector) Name() string       { return "quality_inconsistent_returns" }
func (d inconsistentReturnsDetector) Description() string { return "Function mixes bare and value-bearing return statements" }
func (d inconsistentReturnsDetector) Category() Category { return detect.CategoryCodeQuality }
func (d inconsistentReturnsDetector) IsDependent() bool   { return false }
func (d inconsistentReturnsDetector) UsesContext() bool   { return false }
func (d inconsistentReturnsDetector) MaxFindings() int    { return 0 }

var returnStmt = regexp.MustCompile(`^\s*return\b(.*)$`)

func (d inconsistentReturnsDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		if !IsProductionPath(fn.FilePath) {
			continue
		}

		lines, ok := functionLinesFor(dctx.Files, fn)
		if !ok {
			continue
		}

		bare, valued := false, false

		for _, line := range lines {
			m := returnStmt.FindStringSubmatch(stripComment(line))
			if m == nil {
				continue
			}

			if strings.TrimSpace(m[1]) == "" {
				bare = true
			} else {
				valued = true
			}
		}

		if !bare || !valued {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Inconsistent returns"),
			Detector:      d.Name(),
			Severity:      detect.SeverityLow,
			Title:         fmt.Sprintf("%s returns a value on some paths and nothing on others", fn.Name),
			Description:   "Mixing bare and value-bearing returns makes a function's contract ambiguous to its callers.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Return a consistent shape (e.g. a zero value) on every path.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.4,
		})
	}

	return findings, nil
}

// unusedCodeDetector flags functions (other than entry-point names such as
// main, init and Test*) with zero callers, a lightweight proxy for dead code
// (precise reachability requires whole-program analysis the graph doesn't
// attempt).
type unusedCodeDetector struct{}

func (d unusedCodeDetector) Name() string       { return "quality_unused_code" }
func (d unusedCodeDetector) Description() string { return "Function has no detected callers anywhere in the graph" }
func (d unusedCodeDetector) Category() Category { return detect.CategoryCodeQuality }
func (d unusedCodeDetector) IsDependent() bool   { return false }
func (d unusedCodeDetector) UsesContext() bool   { return false }
func (d unusedCodeDetector) MaxFindings() int    { return 0 }

func (d unusedCodeDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		if !IsProductionPath(fn.FilePath) || isEntryPointName(fn.Name) {
			continue
		}

		if len(dctx.Store.GetCallers(fn.QualifiedName)) > 0 {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Unused code"),
			Detector:      d.Name(),
			Severity:      detect.SeverityLow,
			Title:         fmt.Sprintf("%s has no callers in the graph", fn.Name),
			Description:   "No call site for this function was found anywhere in the analyzed codebase.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Confirm the function is genuinely unused (not invoked via reflection/plugin/entry point) and remove it.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.3,
		})
	}

	return findings, nil
}

func isEntryPointName(name string) bool {
	switch strings.ToLower(name) {
	case "main", "init", "test", "setup", "teardown":
		return true
	default:
		return strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark")
	}
}
