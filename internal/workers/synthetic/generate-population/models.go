// internal/workers/synthetic/generate-population/models.go
package generatepopulation

import (
	"time"

	"trustscore-workers/internal/models"
)

type Input struct {
	Industry               string                   `json:"industry"`
	SubIndustry            string                   `json:"subIndustry,omitempty"`
	RoleTitle              string                   `json:"roleTitle,omitempty"`
	OrganizationID         string                   `json:"organizationId,omitempty"`
	CandidateCount         int                      `json:"candidateCount"`
	Mode                   string                   `json:"mode"`
	BehavioralPreset       string                   `json:"behavioralPreset,omitempty"`
	VariationProfile       *models.VariationProfile `json:"variationProfile,omitempty"`
	FraudClusterSimulation bool                     `json:"fraudClusterSimulation,omitempty"`
	CreatedBy              string                   `json:"createdBy"`
}

type Output struct {
	SessionID      string                   `json:"sessionId"`
	Mode           string                   `json:"mode"`
	ExpiresAt      time.Time                `json:"expiresAt"`
	RequestedCount int                      `json:"requestedCount"`
	GeneratedCount int                      `json:"generatedCount"`
	EntityIDs      []string                 `json:"entityIds"`
	Batches        []models.BatchResult     `json:"batches"`
	Degraded       bool                     `json:"degraded"`
	DriftWarning   *bool                    `json:"driftWarning,omitempty"`
	Baseline       *models.BaselineSnapshot `json:"baseline,omitempty"`
}
