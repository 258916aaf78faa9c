package textmetrics

import "math"

// MaintainabilityIndex computes the standard Halstead-volume/cyclomatic-
// complexity/LOC maintainability index, normalized to the common [0,100]
// scale (the Visual Studio / SEI variant). No teacher precedent computes
// this formula directly; it is pure arithmetic over already-computed
// measures, not a library concern, so stdlib math is used deliberately.
func MaintainabilityIndex(volume float64, cyclomatic, loc int) float64 {
	if loc <= 0 {
		return 100
	}

	raw := 171 - 5.2*logOrZero(volume) - 0.23*float64(cyclomatic) - 16.2*logOrZero(float64(loc))
	scaled := raw * 100 / 171

	return clamp(scaled, 0, 100)
}

func logOrZero(v float64) float64 {
	if v <= 0 {
		return 0
	}

	return math.Log(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
