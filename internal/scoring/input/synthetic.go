// internal/scoring/input/synthetic.go
package input

import (
	"context"
	"database/sql"
	"fmt"

	"trustscore-workers/internal/models"
)

// SyntheticBuilder reduces generated entities under the same rules the
// real builder applies to stored records. Synthetic sentiment arrives
// as two 0-100 sub-scores that are averaged before rescaling.
type SyntheticBuilder struct {
	db *sql.DB
}

func NewSyntheticBuilder(db *sql.DB) *SyntheticBuilder {
	return &SyntheticBuilder{db: db}
}

// FromEntity reduces an in-memory entity, which is how the generator
// feeds freshly written rows back through the engine without re-reading
// its own writes.
func (b *SyntheticBuilder) FromEntity(e models.SyntheticEntity) models.ProfileInput {
	months := e.TenureMonths
	if months < 0 {
		months = 0
	}
	count := e.ReviewCount
	if count < 0 {
		count = 0
	}
	return models.ProfileInput{
		TotalMonths:      months,
		ReviewCount:      count,
		SentimentAverage: normalizeSentiment((e.SentimentTone + e.SentimentTrust) / 2),
		AverageRating:    clampRating(e.RatingAverage, count),
		RehireEligible:   e.RehireEligible,
	}
}

// Build loads one synthetic entity row and reduces it.
func (b *SyntheticBuilder) Build(ctx context.Context, entityID string) (models.ProfileInput, error) {
	var e models.SyntheticEntity
	err := b.db.QueryRowContext(ctx, `
		SELECT id, session_id, tenure_months, review_count, rating_average,
		       sentiment_tone, sentiment_trust, rehire_eligible
		FROM synthetic_entities WHERE id = $1`, entityID).
		Scan(&e.ID, &e.SessionID, &e.TenureMonths, &e.ReviewCount, &e.RatingAverage,
			&e.SentimentTone, &e.SentimentTrust, &e.RehireEligible)
	if err != nil {
		return models.ProfileInput{}, fmt.Errorf("load synthetic entity %s: %w", entityID, err)
	}
	return b.FromEntity(e), nil
}
