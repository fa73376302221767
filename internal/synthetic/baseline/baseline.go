// internal/synthetic/baseline/baseline.go
package baseline

import (
	"math"

	"trustscore-workers/internal/models"
)

// DefaultDriftThresholdPercent flags dimensions whose relative change
// exceeds this bound.
const DefaultDriftThresholdPercent = 20.0

// Detector compares aggregate behavioral vectors taken at two points of
// a generation run. It is advisory: a drift warning never blocks the
// run's results.
type Detector struct {
	thresholdPercent float64
}

func NewDetector(thresholdPercent float64) *Detector {
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultDriftThresholdPercent
	}
	return &Detector{thresholdPercent: thresholdPercent}
}

// Compare computes per-dimension deltaPercent over the union of both
// dimension sets and reports whether any dimension drifted past the
// threshold. A zero "before" with a nonzero "after" counts as 100%.
func (d *Detector) Compare(before, after map[string]float64) (map[string]float64, bool) {
	delta := make(map[string]float64, len(before))
	drift := false

	for _, dim := range unionKeys(before, after) {
		b := before[dim]
		a := after[dim]

		var pct float64
		switch {
		case b == 0 && a == 0:
			pct = 0
		case b == 0:
			pct = 100
		default:
			pct = (a - b) / b * 100
		}

		delta[dim] = math.Round(pct*100) / 100
		if math.Abs(pct) > d.thresholdPercent {
			drift = true
		}
	}

	return delta, drift
}

// Aggregate computes the mean of each behavioral dimension across the
// given vectors. Empty input yields an empty baseline.
func Aggregate(vectors []models.BehavioralVector) map[string]float64 {
	if len(vectors) == 0 {
		return map[string]float64{}
	}

	sums := make(map[string]float64, models.DimensionCount)
	for _, v := range vectors {
		for dim, val := range v.Dimensions {
			sums[dim] += val
		}
	}

	n := float64(len(vectors))
	means := make(map[string]float64, len(sums))
	for dim, sum := range sums {
		means[dim] = math.Round(sum/n*100) / 100
	}
	return means
}

func unionKeys(a, b map[string]float64) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}
