package classify

import "github.com/codegraph-dev/codegraph/pkg/detect"

// CategoryThresholds gates a raw classifier score into
// is_true_positive/high_confidence/likely_fp/should_filter decisions for
// one detector category (spec "Category-aware thresholds").
type CategoryThresholds struct {
	TPThreshold     float64
	HCThreshold     float64
	FilterThreshold float64
}

// DefaultCategoryThresholds returns the per-category table. Security favors
// recall (low filter threshold, so few security findings get auto-hidden);
// code quality filters more aggressively (spec "code quality may filter
// more aggressively").
func DefaultCategoryThresholds() map[detect.Category]CategoryThresholds {
	return map[detect.Category]CategoryThresholds{
		detect.CategorySecurity:        {TPThreshold: 0.5, HCThreshold: 0.75, FilterThreshold: 0.15},
		detect.CategoryCodeQuality:     {TPThreshold: 0.5, HCThreshold: 0.7, FilterThreshold: 0.35},
		detect.CategoryMachineLearning: {TPThreshold: 0.5, HCThreshold: 0.7, FilterThreshold: 0.25},
		detect.CategoryPerformance:     {TPThreshold: 0.5, HCThreshold: 0.7, FilterThreshold: 0.3},
		detect.CategoryOther:           {TPThreshold: 0.5, HCThreshold: 0.7, FilterThreshold: 0.3},
	}
}

// thresholdsFor returns the table entry for category, falling back to
// CategoryOther's entry when category is unrecognized.
func thresholdsFor(table map[detect.Category]CategoryThresholds, category detect.Category) CategoryThresholds {
	if t, ok := table[category]; ok {
		return t
	}

	return table[detect.CategoryOther]
}
