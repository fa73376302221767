// internal/scoring/input/builder.go
package input

// Shared reduction rules for both input builders. Raw records are only
// ever interpreted in this package; the engine sees canonical numbers.

const (
	daysPerMonth = 30.44

	neutralRating = 3.0
	minRating     = 1.0
	maxRating     = 5.0
)

// normalizeSentiment rescales a 0-100 source sentiment into [-1, 1].
func normalizeSentiment(v float64) float64 {
	s := (v - 50) / 50
	if s < -1 {
		return -1
	}
	if s > 1 {
		return 1
	}
	return s
}

// clampRating confines an average rating to the 1-5 band, falling back
// to the neutral midpoint when there were no reviews at all.
func clampRating(avg float64, reviewCount int) float64 {
	if reviewCount == 0 {
		return neutralRating
	}
	if avg < minRating {
		return minRating
	}
	if avg > maxRating {
		return maxRating
	}
	return avg
}
