package detectors

import "github.com/codegraph-dev/codegraph/pkg/detect"

// Thresholds bundles the tunables for every detector family, so callers
// configure one value and pass it straight to All.
type Thresholds struct {
	Structural StructuralThresholds
	Quality    QualityThresholds
}

// DefaultThresholds returns the documented defaults for every detector
// family.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Structural: DefaultStructuralThresholds(),
		Quality:    DefaultQualityThresholds(),
	}
}

// All returns the complete free-tier detector suite: security, graph-
// structural, and code-quality families (spec sec 4.6 "Representative
// families").
func All(t Thresholds) []detect.Detector {
	out := make([]detect.Detector, 0, 32)

	out = append(out, NewSecurityDetectors()...)
	out = append(out, NewStructuralDetectors(t.Structural)...)
	out = append(out, NewQualityDetectors(t.Quality)...)

	return out
}
