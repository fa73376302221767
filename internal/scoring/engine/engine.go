// internal/scoring/engine/engine.go
package engine

import (
	"math"

	"trustscore-workers/internal/models"
)

// Version identifies the scoring algorithm revision carried on every
// breakdown and ledger entry.
const Version = "v2"

const (
	tenureCap       = 30.0
	reviewPointCap  = 25.0
	reviewPoints    = 3.0
	sentimentWeight = 20.0
	ratingWeight    = 15.0
	fraudWeight     = 20.0

	rehireBonus   = 1.1
	rehirePenalty = 0.9
)

// Engine computes profile strength scores. It holds only the immutable
// vertical modifier table; Score has no other state and no side effects,
// so one Engine is safe for any number of concurrent callers.
type Engine struct {
	verticals map[string]float64
}

// New builds an Engine over the given vertical modifier table. The map
// is copied; later mutation of the argument cannot affect scoring.
func New(verticals map[string]float64) *Engine {
	v := make(map[string]float64, len(verticals))
	for k, m := range verticals {
		v[k] = m
	}
	return &Engine{verticals: v}
}

// Modifier resolves a vertical key to its multiplier. Unknown or empty
// keys resolve to the neutral 1.0, never an error.
func (e *Engine) Modifier(vertical string) float64 {
	if m, ok := e.verticals[vertical]; ok {
		return m
	}
	return 1.0
}

// Score computes the 0-100 profile strength for one canonical input.
// Identical input and vertical always produce an identical breakdown.
// Component values are pre-adjustment; only TotalScore carries the
// vertical modifier.
func (e *Engine) Score(in models.ProfileInput, vertical string) models.ScoreBreakdown {
	months := math.Max(in.TotalMonths, 0)
	reviews := in.ReviewCount
	if reviews < 0 {
		reviews = 0
	}
	sentiment := clamp(in.SentimentAverage, -1, 1)
	rating := clamp(in.AverageRating, 1, 5)

	tenure := math.Min(math.Log(months+1)*10, tenureCap)
	reviewVolume := math.Min(float64(reviews)*reviewPoints, reviewPointCap)
	sentimentScore := sentiment * sentimentWeight
	ratingScore := ((rating - 3) / 2) * ratingWeight

	fraudPenalty := 0.0
	if in.FraudScore != nil {
		fraudPenalty = clamp(*in.FraudScore, 0, 1) * fraudWeight
	}

	multiplier := rehirePenalty
	if in.RehireEligible {
		multiplier = rehireBonus
	}

	raw := tenure + reviewVolume + sentimentScore + ratingScore - fraudPenalty
	base := math.Round(clamp(raw*multiplier, 0, 100))
	total := int(math.Round(clamp(base*e.Modifier(vertical), 0, 100)))

	return models.ScoreBreakdown{
		TotalScore:       total,
		Tenure:           round2(tenure),
		ReviewVolume:     round2(reviewVolume),
		Sentiment:        round2(sentimentScore),
		Rating:           round2(ratingScore),
		FraudPenalty:     round2(fraudPenalty),
		RehireMultiplier: multiplier,
		Vertical:         vertical,
		EngineVersion:    Version,
	}
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

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
