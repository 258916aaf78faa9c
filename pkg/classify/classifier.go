package classify

import (
	"math"
	"sync"

	"github.com/codegraph-dev/codegraph/pkg/alg/stats"
	"github.com/codegraph-dev/codegraph/pkg/detect"
)

// fpRateEMAAlpha smooths a detector's historical false-positive rate as
// classified findings accumulate feedback.
const fpRateEMAAlpha = 0.2

// weights is the hand-tuned linear scorer applied to a feature vector
// before the logistic squash. There is no training pipeline in this repo
// (no labeled corpus, no GBDT runtime available to the detectors that
// produce these vectors); the vectors are shaped so an external GBDT can
// replace this scorer without touching the extractor.
var weights = [NumFeatures]float64{
	0: 0, // detector hash-bucket: identity only, not predictive on its own.
	1: -0.35, // severity ordinal: lower (more severe) should score higher.
	2: 0.6, // confidence.
	3: 0,
	4: 0.4, // has-CWE.

	5:  0.1, // entity type.
	6:  0.001,
	7:  0,
	8:  -0.005,
	9:  0.5, // finding span as fraction of function.
	10: 0.03, // complexity.
	11: 0.08, // nesting depth.
	12: 0.02, // fan-in.
	13: 0.02, // fan-out.
	14: 0.3,  // import-cycle membership.

	15: -0.05, // log(age_days+1): older code, slightly less likely freshly-broken.
	16: 0.01,  // commit count.
	17: 0.02,  // author count.
	18: 0.01,  // modification count.
	19: 0.25,  // recently-created flag.
	20: -0.2,  // major-contributor fraction: single-owner code, fewer surprises.
	21: 0.05,  // minor-contributor count.

	22: 0,
	23: -0.9, // FP-path-indicator count (test/mock/vendor paths).
	24: 0.5,  // TP-path-indicator count (auth/payment/security paths).

	25: 0.05, // finding density in file.
	26: 0.05, // same-detector count in file.
	27: -1.0, // historical FP rate for this detector.
}

const bias = -0.2

// Prediction is the classifier's verdict for one finding.
type Prediction struct {
	Score          float64
	IsTruePositive bool
	HighConfidence bool
	LikelyFP       bool
	ShouldFilter   bool
}

// Classifier scores feature vectors against category-aware thresholds and
// tracks each detector's historical false-positive rate as an input to
// future scoring (spec "historical FP rate").
type Classifier struct {
	thresholds map[detect.Category]CategoryThresholds

	mu      sync.Mutex
	fpRates map[string]*stats.EMA
}

// NewClassifier builds a Classifier over the default category thresholds.
func NewClassifier() *Classifier {
	return &Classifier{
		thresholds: DefaultCategoryThresholds(),
		fpRates:    make(map[string]*stats.EMA),
	}
}

// HistoricalFPRate returns the detector's current smoothed false-positive
// rate (0 until Feedback has been called for it at least once).
func (c *Classifier) HistoricalFPRate(detector string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ema, ok := c.fpRates[detector]
	if !ok {
		return 0
	}

	return ema.Value()
}

// Feedback records an observed outcome (1.0 = false positive, 0.0 = true
// positive) for detector, updating its historical FP rate EMA.
func (c *Classifier) Feedback(detector string, wasFalsePositive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ema, ok := c.fpRates[detector]
	if !ok {
		ema = stats.NewEMA(fpRateEMAAlpha)
		c.fpRates[detector] = ema
	}

	v := 0.0
	if wasFalsePositive {
		v = 1.0
	}

	ema.Update(v)
}

// Classify scores a feature vector and applies category-aware thresholds
// to produce a Prediction (spec "a prediction is turned into
// {is_true_positive, high_confidence, likely_fp, should_filter}").
func (c *Classifier) Classify(category detect.Category, features [NumFeatures]float64) Prediction {
	score := sigmoid(linearScore(features))
	t := thresholdsFor(c.thresholds, category)

	return Prediction{
		Score:          score,
		IsTruePositive: score >= t.TPThreshold,
		HighConfidence: score >= t.HCThreshold,
		LikelyFP:       score < t.FilterThreshold,
		ShouldFilter:   score < t.FilterThreshold,
	}
}

func linearScore(features [NumFeatures]float64) float64 {
	sum := bias
	for i, f := range features {
		sum += weights[i] * f
	}

	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
