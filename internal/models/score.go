// internal/models/score.go
package models

import "time"

// ScoreBreakdown is the auditable output of one scoring run. Component
// values are reported before the vertical adjustment so a reviewer can
// reproduce TotalScore from them.
type ScoreBreakdown struct {
	TotalScore       int     `json:"totalScore"` // [0, 100]
	Tenure           float64 `json:"tenure"`
	ReviewVolume     float64 `json:"reviewVolume"`
	Sentiment        float64 `json:"sentiment"`
	Rating           float64 `json:"rating"`
	FraudPenalty     float64 `json:"fraudPenalty"`
	RehireMultiplier float64 `json:"rehireMultiplier"`
	Vertical         string  `json:"vertical,omitempty"`
	EngineVersion    string  `json:"engineVersion"`
}

// ScoreChangeReason enumerates why a score transition happened.
type ScoreChangeReason string

const (
	ReasonInitialScore        ScoreChangeReason = "initial_score"
	ReasonRescore             ScoreChangeReason = "rescore"
	ReasonSyntheticGeneration ScoreChangeReason = "synthetic_generation"
)

// ScoreHistoryEntry is one immutable row of the score ledger.
type ScoreHistoryEntry struct {
	ID            string            `json:"id"`
	EntityType    EntityType        `json:"entityType"`
	EntityID      string            `json:"entityId"`
	PreviousScore *float64          `json:"previousScore"`
	NewScore      float64           `json:"newScore"`
	Delta         *float64          `json:"delta"` // nil when no previous score
	Reason        ScoreChangeReason `json:"reason"`
	TriggeredBy   *string           `json:"triggeredBy"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// HealthEvent is one operational success/failure signal emitted to the
// write-only health sink.
type HealthEvent struct {
	Source    string                 `json:"source"`
	Status    string                 `json:"status"` // "ok" | "degraded" | "failed"
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
