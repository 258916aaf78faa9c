package detectors

import (
	"math"
	"sort"
	"time"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// DebtWeights are the fixed default weights combined into a file's debt
// score (spec sec 2.3 "debt score = 0.30*finding_density +
// 0.25*coupling + 0.20*churn + 0.15*ownership_dispersion + 0.10*age").
type DebtWeights struct {
	FindingDensity      float64
	Coupling            float64
	Churn               float64
	OwnershipDispersion float64
	Age                 float64
}

// DefaultDebtWeights returns the spec's documented default weights.
func DefaultDebtWeights() DebtWeights {
	return DebtWeights{
		FindingDensity:      0.30,
		Coupling:            0.25,
		Churn:               0.20,
		OwnershipDispersion: 0.15,
		Age:                 0.10,
	}
}

// severityWeight scales a finding's contribution to density by severity, so
// a file dense with Low/Info findings doesn't outrank one with a handful
// of Critical findings.
func severityWeight(s detect.Severity) float64 {
	switch s {
	case detect.SeverityCritical:
		return 5
	case detect.SeverityHigh:
		return 3
	case detect.SeverityMedium:
		return 2
	case detect.SeverityLow:
		return 1
	default:
		return 0.5
	}
}

// FileDebt is one file's computed technical-debt score and its raw inputs,
// for transparency and tuning.
type FileDebt struct {
	Path                string
	Score               float64
	FindingDensityRaw   float64
	CouplingRaw         float64
	ChurnRaw            float64
	OwnershipRaw        float64
	AgeRaw              float64
	FindingCount        int
}

// ScoreDebt computes a normalized [0,100] debt score per production file,
// combining finding density, coupling, churn, ownership dispersion, and
// age under weights, sorted worst-first (spec sec 4.6 "Debt scoring").
func ScoreDebt(store *graph.Store, findings []detect.Finding, weights DebtWeights, now time.Time) []FileDebt {
	files := store.GetNodesByKind(graph.KindFile)

	findingsByFile := make(map[string][]detect.Finding, len(files))
	for _, f := range findings {
		for _, path := range f.AffectedFiles {
			findingsByFile[path] = append(findingsByFile[path], f)
		}
	}

	raw := make([]FileDebt, 0, len(files))

	for _, f := range files {
		if !IsProductionPath(f.FilePath) {
			continue
		}

		fd := FileDebt{Path: f.FilePath}

		loc := f.LOC()
		if loc <= 0 {
			loc = 1
		}

		var densitySum float64
		for _, finding := range findingsByFile[f.FilePath] {
			densitySum += severityWeight(finding.Severity)
		}

		fd.FindingCount = len(findingsByFile[f.FilePath])
		fd.FindingDensityRaw = densitySum / (float64(loc) / 1000.0)
		fd.CouplingRaw = float64(fileCoupling(store, f.FilePath))
		fd.ChurnRaw, fd.AgeRaw = churnAndAge(store, f.FilePath, now)
		fd.OwnershipRaw = float64(ownershipDispersion(store, f.FilePath))

		raw = append(raw, fd)
	}

	normalize(raw, func(fd *FileDebt) *float64 { return &fd.FindingDensityRaw })
	normalize(raw, func(fd *FileDebt) *float64 { return &fd.CouplingRaw })
	normalize(raw, func(fd *FileDebt) *float64 { return &fd.ChurnRaw })
	normalize(raw, func(fd *FileDebt) *float64 { return &fd.OwnershipRaw })
	normalize(raw, func(fd *FileDebt) *float64 { return &fd.AgeRaw })

	for i := range raw {
		fd := &raw[i]
		fd.Score = 100 * (weights.FindingDensity*fd.FindingDensityRaw +
			weights.Coupling*fd.CouplingRaw +
			weights.Churn*fd.ChurnRaw +
			weights.OwnershipDispersion*fd.OwnershipRaw +
			weights.Age*fd.AgeRaw)

		if fd.Score < 0 {
			fd.Score = 0
		}

		if fd.Score > 100 {
			fd.Score = 100
		}
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].Score > raw[j].Score })

	return raw
}

// normalize min-max scales the field selected by get across files to
// [0,1], leaving every value at 0 when all inputs are equal.
func normalize(files []FileDebt, get func(*FileDebt) *float64) {
	if len(files) == 0 {
		return
	}

	minV, maxV := math.Inf(1), math.Inf(-1)

	for i := range files {
		v := *get(&files[i])
		if v < minV {
			minV = v
		}

		if v > maxV {
			maxV = v
		}
	}

	spread := maxV - minV
	if spread <= 0 {
		for i := range files {
			*get(&files[i]) = 0
		}

		return
	}

	for i := range files {
		p := get(&files[i])
		*p = (*p - minV) / spread
	}
}

// fileCoupling sums call fan-in and fan-out across every function declared
// in path, a proxy for how entangled the file is with the rest of the
// codebase.
func fileCoupling(store *graph.Store, path string) int {
	total := 0

	for _, fn := range store.GetFunctionsInFile(path) {
		total += store.CallFanIn(fn.QualifiedName) + store.CallFanOut(fn.QualifiedName)
	}

	return total
}

// churnAndAge derives a file's commit-count churn and days-since-last-
// modification age from its functions'/classes' git-enriched properties,
// summing their commit counts and taking the most recent modification
// observed.
func churnAndAge(store *graph.Store, path string, now time.Time) (churn, age float64) {
	entities := append(
		append([]*graph.Node{}, store.GetFunctionsInFile(path)...),
		store.GetClassesInFile(path)...,
	)

	var mostRecent time.Time

	for _, n := range entities {
		if c, ok := n.CommitCount(); ok {
			churn += float64(c)
		}

		if ts, ok := n.LastModified(); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil && t.After(mostRecent) {
				mostRecent = t
			}
		}
	}

	if mostRecent.IsZero() {
		return churn, 0
	}

	days := now.Sub(mostRecent).Hours() / 24
	if days < 0 {
		days = 0
	}

	// Age contributes inversely: recently touched files carry more live
	// risk than ones untouched for years, so invert before normalizing.
	return churn, -days
}

// ownershipDispersion returns the largest per-entity author_count among the
// file's functions/classes. Authors are not de-duplicated across entities,
// so two entities with different single authors still yield 1.
func ownershipDispersion(store *graph.Store, path string) int {
	entities := append(
		append([]*graph.Node{}, store.GetFunctionsInFile(path)...),
		store.GetClassesInFile(path)...,
	)

	max := 0

	for _, n := range entities {
		if c, ok := n.AuthorCount(); ok && c > max {
			max = c
		}
	}

	return max
}
