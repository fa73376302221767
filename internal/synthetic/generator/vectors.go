// internal/synthetic/generator/vectors.go
package generator

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"trustscore-workers/internal/models"
)

// Behavioral variation is index-keyed, not seeded: the offset for a
// given entity/dimension pair is a pure function of the two indices, so
// repeated runs with the same parameters produce identical populations.

// Base vectors per preset, in models.BehavioralDimensions order:
// pressure, structure, reliability, density, stability, volatility,
// tempo, autonomy, consistency.
var presetBaseVectors = map[string][models.DimensionCount]float64{
	"balanced":       {50, 58, 62, 55, 60, 35, 52, 48, 57},
	"high-performer": {45, 66, 78, 60, 72, 22, 58, 55, 70},
	"erratic":        {68, 40, 45, 50, 38, 70, 62, 52, 40},
}

// fraudClusterBase simulates abusive-pattern populations: high density,
// low stability, high volatility.
var fraudClusterBase = [models.DimensionCount]float64{72, 30, 35, 88, 18, 86, 65, 45, 30}

const defaultPreset = "balanced"

// structuralOffsetRange bounds the first, always-applied offset.
const structuralOffsetRange = 12.0

// maxVarianceMagnitude bounds each variation-profile magnitude.
const maxVarianceMagnitude = 25.0

// varianceGroups maps each dimension index to the variation-profile
// magnitude that governs it.
const (
	groupActivity = iota
	groupStability
	groupVolatility
	groupStructure
)

var dimensionVarianceGroup = [models.DimensionCount]int{
	groupVolatility, // pressure
	groupStructure,  // structure
	groupStability,  // reliability
	groupActivity,   // density
	groupStability,  // stability
	groupVolatility, // volatility
	groupActivity,   // tempo
	groupStructure,  // autonomy
	groupStability,  // consistency
}

// KnownPreset reports whether name is a usable behavioral preset.
func KnownPreset(name string) bool {
	_, ok := presetBaseVectors[name]
	return ok
}

// hashUnit maps (entity index, dimension index, salt) to [0, 1).
func hashUnit(entityIdx, dimIdx int, salt byte) float64 {
	h := fnv.New64a()
	var buf [17]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(entityIdx))
	binary.BigEndian.PutUint64(buf[8:16], uint64(dimIdx))
	buf[16] = salt
	h.Write(buf[:])
	return float64(h.Sum64()%100000) / 100000
}

// structuralOffset is the first deterministic offset, bounded to
// +-structuralOffsetRange.
func structuralOffset(entityIdx, dimIdx int) float64 {
	return (hashUnit(entityIdx, dimIdx, 0)*2 - 1) * structuralOffsetRange
}

// variationOffset is the second deterministic offset, scaled by the
// clamped variance magnitude of the dimension's group.
func variationOffset(entityIdx, dimIdx int, profile *models.VariationProfile) float64 {
	if profile == nil {
		return 0
	}
	magnitudes := [4]float64{
		clampMagnitude(profile.ActivityVariance),
		clampMagnitude(profile.StabilityVariance),
		clampMagnitude(profile.VolatilityVariance),
		clampMagnitude(profile.StructureVariance),
	}
	mag := magnitudes[dimensionVarianceGroup[dimIdx]]
	if mag == 0 {
		return 0
	}
	return (hashUnit(entityIdx, dimIdx, 1)*2 - 1) * mag
}

func clampMagnitude(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxVarianceMagnitude {
		return maxVarianceMagnitude
	}
	return v
}

// buildDimensions produces the bounded [0,100] vector for one entity.
func buildDimensions(entityIdx int, preset string, fraudCluster bool, profile *models.VariationProfile) map[string]float64 {
	base, ok := presetBaseVectors[preset]
	if !ok {
		base = presetBaseVectors[defaultPreset]
	}
	if fraudCluster {
		base = fraudClusterBase
	}

	dims := make(map[string]float64, models.DimensionCount)
	for i, name := range models.BehavioralDimensions {
		v := base[i] + structuralOffset(entityIdx, i) + variationOffset(entityIdx, i, profile)
		dims[name] = math.Round(clampDim(v)*100) / 100
	}
	return dims
}

func clampDim(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Profile-field synthesis reuses the same index-keyed hashing with
// distinct salts so tenure, reviews, ratings, and sentiment vary
// entity-to-entity but stay reproducible.
const (
	saltTenure  byte = 10
	saltReviews byte = 11
	saltRating  byte = 12
	saltTone    byte = 13
	saltTrust   byte = 14
	saltRehire  byte = 15
)

func synthTenureMonths(entityIdx int) float64 {
	return math.Round((6+hashUnit(entityIdx, 0, saltTenure)*114)*100) / 100 // [6, 120)
}

func synthReviewCount(entityIdx int) int {
	return int(hashUnit(entityIdx, 0, saltReviews) * 12)
}

func synthRatingAverage(entityIdx int, fraudCluster bool) float64 {
	if fraudCluster {
		// Abusive populations trend low.
		return math.Round((1.2+hashUnit(entityIdx, 0, saltRating)*1.8)*100) / 100
	}
	return math.Round((2.5+hashUnit(entityIdx, 0, saltRating)*2.5)*100) / 100
}

func synthSentiment(entityIdx int, salt byte, fraudCluster bool) float64 {
	if fraudCluster {
		return math.Round((10+hashUnit(entityIdx, 0, salt)*35)*100) / 100
	}
	return math.Round((30+hashUnit(entityIdx, 0, salt)*60)*100) / 100
}

func synthRehireEligible(entityIdx int, fraudCluster bool) bool {
	if fraudCluster {
		return false
	}
	return hashUnit(entityIdx, 0, saltRehire) >= 0.3
}
