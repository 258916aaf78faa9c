package detectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/funccontext"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// StructuralThresholds configures the graph-structural detector family.
type StructuralThresholds struct {
	FeatureEnvyRatio         float64 // (external calls + 1) / (internal calls + 1) must reach this.
	InfluentialFanInMin      int
	InfluentialComplexityMin int
	LongCallChainDepth       int
	HubFanInMin              int
}

// DefaultStructuralThresholds returns the spec's documented defaults.
func DefaultStructuralThresholds() StructuralThresholds {
	return StructuralThresholds{
		FeatureEnvyRatio:         2.0,
		InfluentialFanInMin:      8,
		InfluentialComplexityMin: 10,
		LongCallChainDepth:       6,
		HubFanInMin:              15,
	}
}

// NewStructuralDetectors returns the graph-structural detector family (spec
// "Graph-structural: feature envy, influential code, circular imports and
// circular calls, long call chains, hub dependency").
func NewStructuralDetectors(t StructuralThresholds) []detect.Detector {
	return []detect.Detector{
		featureEnvyDetector{t: t},
		influentialCodeDetector{t: t},
		circularImportsDetector{},
		circularCallsDetector{},
		longCallChainDetector{t: t},
		hubDependencyDetector{t: t},
	}
}

// featureEnvyDetector flags functions whose calls out to other modules
// dominate calls within their own module, excluding roles/shapes the spec
// carves out explicitly.
type featureEnvyDetector struct {
	t StructuralThresholds
}

func (d featureEnvyDetector) Name() string        { return "structural_feature_envy" }
func (d featureEnvyDetector) Description() string  { return "Function calls out to other modules far more than it calls within its own" }
func (d featureEnvyDetector) Category() Category   { return detect.CategoryCodeQuality }
func (d featureEnvyDetector) IsDependent() bool    { return false }
func (d featureEnvyDetector) UsesContext() bool    { return true }
func (d featureEnvyDetector) MaxFindings() int     { return 0 }

func (d featureEnvyDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		fctx, ok := dctx.FuncCtx[fn.QualifiedName]
		if !ok || skippedForFeatureEnvy(fctx) {
			continue
		}

		if isFacadeShape(fn) || looksLikeOrchestratorName(fn.Name) {
			continue
		}

		ownModule := funccontext.ModuleOf(fn.FilePath)

		internal, external := 0, 0

		for _, callee := range dctx.Store.GetCallees(fn.QualifiedName) {
			n := dctx.Store.GetNode(callee)
			if n == nil {
				continue
			}

			if funccontext.ModuleOf(n.FilePath) == ownModule {
				internal++
			} else {
				external++
			}
		}

		if internal == 0 && external == 0 {
			continue
		}

		ratio := float64(external+1) / float64(internal+1)
		if ratio < d.t.FeatureEnvyRatio {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Feature envy"),
			Detector:      d.Name(),
			Severity:      detect.AdjustSeverity(detect.SeverityMedium, fctx.Role.SeverityMultiplier(), detect.SeverityHigh),
			Title:         fmt.Sprintf("Feature envy: %s reaches out of its module far more than it uses it", fn.Name),
			Description:   "This function's calls overwhelmingly target other modules rather than its own, suggesting it belongs closer to the code it depends on.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Consider moving this function closer to the module it mostly calls into, or extracting the shared logic.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.5,
		})
	}

	return findings, nil
}

func skippedForFeatureEnvy(fctx funccontext.Context) bool {
	switch fctx.Role {
	case funccontext.RoleUtility, funccontext.RoleOrchestrator, funccontext.RoleTest:
		return true
	default:
		return false
	}
}

// isFacadeShape approximates the spec's "facade shapes" exclusion: a thin
// function whose entire body is calls out (low own complexity).
func isFacadeShape(fn *graph.Node) bool {
	complexity, ok := fn.Complexity()

	return ok && complexity <= 1
}

func looksLikeOrchestratorName(name string) bool {
	lower := strings.ToLower(name)

	for _, frag := range []string{"orchestrat", "coordinator", "dispatcher", "controller", "pipeline", "runner"} {
		if strings.Contains(lower, frag) {
			return true
		}
	}

	return false
}

// influentialCodeDetector flags functions combining high fan-in and high
// complexity, with the fan-in bar doubled for Utility functions, where high
// fan-in is expected. Function size (LOC) is not part of the check.
type influentialCodeDetector struct {
	t StructuralThresholds
}

func (d influentialCodeDetector) Name() string       { return "structural_influential_code" }
func (d influentialCodeDetector) Description() string { return "High fan-in function that is also complex, concentrating risk" }
func (d influentialCodeDetector) Category() Category  { return detect.CategoryCodeQuality }
func (d influentialCodeDetector) IsDependent() bool   { return false }
func (d influentialCodeDetector) UsesContext() bool   { return true }
func (d influentialCodeDetector) MaxFindings() int    { return 0 }

func (d influentialCodeDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		fctx, ok := dctx.FuncCtx[fn.QualifiedName]
		if !ok {
			continue
		}

		fanInMin := d.t.InfluentialFanInMin
		if fctx.Role == funccontext.RoleUtility {
			fanInMin *= 2 // utilities are expected to have high fan-in; raise the bar.
		}

		complexity, _ := fn.Complexity()

		if fctx.InDegree < fanInMin || complexity < d.t.InfluentialComplexityMin {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Influential code"),
			Detector:      d.Name(),
			Severity:      detect.AdjustSeverity(detect.SeverityHigh, fctx.Role.SeverityMultiplier(), detect.SeverityCritical),
			Title:         fmt.Sprintf("Influential code: %s is called from %d places and is complex", fn.Name, fctx.InDegree),
			Description:   "This function concentrates both reach (many callers) and risk (high complexity); defects here have outsized blast radius.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Add focused tests around this function and consider decomposing it to isolate risk.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.6,
		})
	}

	return findings, nil
}

// circularImportsDetector reports simple cycles over Imports edges.
type circularImportsDetector struct{}

func (d circularImportsDetector) Name() string        { return "structural_circular_imports" }
func (d circularImportsDetector) Description() string  { return "Files import each other in a cycle" }
func (d circularImportsDetector) Category() Category   { return detect.CategoryCodeQuality }
func (d circularImportsDetector) IsDependent() bool    { return false }
func (d circularImportsDetector) UsesContext() bool    { return false }
func (d circularImportsDetector) MaxFindings() int     { return 0 }

func (d circularImportsDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	return cycleFindings(dctx.Store.FindImportCycles(), d.Name(), "Circular import"), nil
}

// circularCallsDetector reports simple cycles over Calls edges.
type circularCallsDetector struct{}

func (d circularCallsDetector) Name() string       { return "structural_circular_calls" }
func (d circularCallsDetector) Description() string { return "Functions call each other in a cycle" }
func (d circularCallsDetector) Category() Category  { return detect.CategoryCodeQuality }
func (d circularCallsDetector) IsDependent() bool   { return false }
func (d circularCallsDetector) UsesContext() bool   { return false }
func (d circularCallsDetector) MaxFindings() int    { return 0 }

func (d circularCallsDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	return cycleFindings(dctx.Store.FindCallCycles(), d.Name(), "Circular call chain"), nil
}

func cycleFindings(cycles []graph.Cycle, detectorName, title string) []detect.Finding {
	var findings []detect.Finding

	for _, cyc := range cycles {
		if len(cyc) < 2 {
			continue
		}

		first := cyc[0]

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(detectorName, first, 0, title),
			Detector:      detectorName,
			Severity:      detect.SeverityMedium,
			Title:         fmt.Sprintf("%s: %s", title, strings.Join(cyc, " -> ")),
			Description:   "This cycle makes the involved entities impossible to reason about or test in isolation.",
			AffectedFiles: []string{first},
			SuggestedFix:  "Break the cycle by extracting the shared dependency into a separate module both sides can depend on.",
			Category:      detect.CategoryCodeQuality,
			Confidence:    0.7,
		})
	}

	return findings
}

// longCallChainDetector flags functions whose BFS call-depth from any entry
// point exceeds the configured threshold (spec "long call chains").
type longCallChainDetector struct {
	t StructuralThresholds
}

func (d longCallChainDetector) Name() string       { return "structural_long_call_chain" }
func (d longCallChainDetector) Description() string { return "Function sits deep in a long call chain from any entry point" }
func (d longCallChainDetector) Category() Category  { return detect.CategoryCodeQuality }
func (d longCallChainDetector) IsDependent() bool   { return false }
func (d longCallChainDetector) UsesContext() bool   { return true }
func (d longCallChainDetector) MaxFindings() int    { return 0 }

func (d longCallChainDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, fn := range dctx.Store.GetNodesByKind(graph.KindFunction) {
		fctx, ok := dctx.FuncCtx[fn.QualifiedName]
		if !ok || fctx.CallDepth < d.t.LongCallChainDepth {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Long call chain"),
			Detector:      d.Name(),
			Severity:      detect.SeverityLow,
			Title:         fmt.Sprintf("%s sits %d calls deep from the nearest entry point", fn.Name, fctx.CallDepth),
			Description:   "Deep call chains make it hard to trace how and why this function is invoked, and slow debugging.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Consider flattening the call chain or adding an explicit orchestration layer.",
			Category:      detect.CategoryCodeQuality,
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.4,
		})
	}

	return findings, nil
}

// hubDependencyDetector flags modules/files with an unusually high number
// of distinct importers, a single point of failure (spec "hub dependency").
type hubDependencyDetector struct {
	t StructuralThresholds
}

func (d hubDependencyDetector) Name() string       { return "structural_hub_dependency" }
func (d hubDependencyDetector) Description() string { return "File is imported by an unusually large number of other files" }
func (d hubDependencyDetector) Category() Category  { return detect.CategoryCodeQuality }
func (d hubDependencyDetector) IsDependent() bool   { return false }
func (d hubDependencyDetector) UsesContext() bool   { return false }
func (d hubDependencyDetector) MaxFindings() int    { return 0 }

func (d hubDependencyDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	for _, f := range dctx.Store.GetNodesByKind(graph.KindFile) {
		importers := dctx.Store.GetImporters("file:" + f.FilePath)
		if len(importers) < d.t.HubFanInMin {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), f.FilePath, 0, "Hub dependency"),
			Detector:      d.Name(),
			Severity:      detect.SeverityLow,
			Title:         fmt.Sprintf("%s is imported by %d other files", f.Name, len(importers)),
			Description:   "A change to this file has an outsized blast radius across the codebase.",
			AffectedFiles: []string{f.FilePath},
			SuggestedFix:  "Keep this file's public surface small and stable; consider splitting it if it serves unrelated concerns.",
			Category:      detect.CategoryCodeQuality,
			Confidence:    0.5,
		})
	}

	return findings, nil
}

// Category is a type alias used so detector methods can return
// detect.Category without importing it twice in method signatures above.
type Category = detect.Category
