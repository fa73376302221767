// internal/models/synthetic.go
package models

import "time"

// GenerationMode selects the entity ceiling for a synthetic session.
type GenerationMode string

const (
	ModeStandard GenerationMode = "standard" // capped at 500 entities
	ModeStress   GenerationMode = "stress"   // capped at 10000 entities
)

// BehavioralDimensions is the fixed, ordered dimension set of every
// behavioral vector. The order is load-bearing: deterministic offsets
// are keyed by dimension index.
var BehavioralDimensions = [...]string{
	"pressure",
	"structure",
	"reliability",
	"density",
	"stability",
	"volatility",
	"tempo",
	"autonomy",
	"consistency",
}

// DimensionCount is the size of every behavioral vector.
const DimensionCount = len(BehavioralDimensions)

// SyntheticSession owns one population-generation run and every row
// written under it. Isolation must be true on the session and on every
// owned row; rows are destroyed once ExpiresAt elapses.
type SyntheticSession struct {
	ID             string         `json:"id"`
	Mode           GenerationMode `json:"mode"`
	RequestedCount int            `json:"requestedCount"`
	GeneratedCount int            `json:"generatedCount"`
	Industry       string         `json:"industry"`
	SubIndustry    string         `json:"subIndustry,omitempty"`
	RoleTitle      string         `json:"roleTitle,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	Isolation      bool           `json:"isolation"`
	CreatedBy      string         `json:"createdBy"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// SyntheticEntity is one generated work-history record. The profile
// fields mirror what the real record store holds so the synthetic input
// builder can reduce them under the same rules.
type SyntheticEntity struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	Industry       string    `json:"industry"`
	RoleTitle      string    `json:"roleTitle"`
	TenureMonths   float64   `json:"tenureMonths"`
	ReviewCount    int       `json:"reviewCount"`
	RatingAverage  float64   `json:"ratingAverage"`  // source scale 1-5
	SentimentTone  float64   `json:"sentimentTone"`  // sub-score 0-100
	SentimentTrust float64   `json:"sentimentTrust"` // sub-score 0-100
	RehireEligible bool      `json:"rehireEligible"`
	Isolation      bool      `json:"isolation"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BehavioralVector holds the bounded [0,100] dimensions of one entity.
type BehavioralVector struct {
	EntityID   string             `json:"entityId"`
	SessionID  string             `json:"sessionId"`
	Dimensions map[string]float64 `json:"dimensions"`
	Isolation  bool               `json:"isolation"`
	ExpiresAt  time.Time          `json:"expiresAt"`
}

// BaselineSnapshot captures before/after aggregate vectors for one
// stress-mode session plus the relative change per dimension.
type BaselineSnapshot struct {
	SessionID    string             `json:"sessionId"`
	Before       map[string]float64 `json:"before"`
	After        map[string]float64 `json:"after"`
	DeltaPercent map[string]float64 `json:"deltaPercent"`
	DriftWarning bool               `json:"driftWarning"`
	ComputedAt   time.Time          `json:"computedAt"`
}

// VariationProfile adds bounded deterministic variance on top of the
// structural per-entity offsets. All four magnitudes are clamped into
// [0, 25] before use.
type VariationProfile struct {
	ActivityVariance   float64 `json:"activityVariance"`
	StabilityVariance  float64 `json:"stabilityVariance"`
	VolatilityVariance float64 `json:"volatilityVariance"`
	StructureVariance  float64 `json:"structureVariance"`
}

// BatchResult reports the outcome of one 500-row write batch.
type BatchResult struct {
	Index     int    `json:"index"`
	RowCount  int    `json:"rowCount"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}
