// internal/workers/scoring/compute-profile-score/models.go
package computeprofilescore

import "trustscore-workers/internal/models"

type Input struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	// ProfileInput scores a caller-supplied input directly, skipping
	// the database builders. The result is still persisted and
	// ledgered under the entity id.
	ProfileInput *models.ProfileInput `json:"profileInput,omitempty"`
	Vertical     string               `json:"vertical,omitempty"`
	TriggeredBy  string               `json:"triggeredBy,omitempty"`
}

type Output struct {
	EntityType    string                `json:"entityType"`
	EntityID      string                `json:"entityId"`
	TotalScore    int                   `json:"totalScore"`
	Breakdown     models.ScoreBreakdown `json:"breakdown"`
	PreviousScore *float64              `json:"previousScore,omitempty"`
	Reason        string                `json:"reason"`
	LedgerEntryID string                `json:"ledgerEntryId,omitempty"`
	AuditFailed   bool                  `json:"auditFailed,omitempty"`
}
