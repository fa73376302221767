// internal/scoring/input/real.go
package input

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/models"
)

// RealBuilder shapes stored work-history records into one ProfileInput.
// It only reads; scoring happens elsewhere.
type RealBuilder struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewRealBuilder(db *sql.DB, log logger.Logger) *RealBuilder {
	return &RealBuilder{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "real-input-builder"}),
		now:    time.Now,
	}
}

// Build loads the minimal fields for one profile and reduces them to
// the canonical input. A missing profile row is an error; everything
// else degrades to neutral defaults.
func (b *RealBuilder) Build(ctx context.Context, profileID string) (models.ProfileInput, error) {
	var in models.ProfileInput

	var fraudScore sql.NullFloat64
	err := b.db.QueryRowContext(ctx,
		`SELECT fraud_score FROM profiles WHERE id = $1`, profileID).Scan(&fraudScore)
	if err != nil {
		return in, fmt.Errorf("load profile %s: %w", profileID, err)
	}
	if fraudScore.Valid {
		v := fraudScore.Float64
		in.FraudScore = &v
	}

	months, err := b.verifiedTenureMonths(ctx, profileID)
	if err != nil {
		return in, err
	}
	in.TotalMonths = months

	count, rating, sentiment, err := b.reviewAggregates(ctx, profileID)
	if err != nil {
		return in, err
	}
	in.ReviewCount = count
	in.AverageRating = clampRating(rating, count)
	in.SentimentAverage = sentiment

	eligible, err := b.rehireEligible(ctx, profileID)
	if err != nil {
		return in, err
	}
	in.RehireEligible = eligible

	b.logger.Debug("profile input built", map[string]interface{}{
		"profileId":   profileID,
		"totalMonths": in.TotalMonths,
		"reviewCount": in.ReviewCount,
	})

	return in, nil
}

// verifiedTenureMonths sums verified spans only; open spans end now.
func (b *RealBuilder) verifiedTenureMonths(ctx context.Context, profileID string) (float64, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT start_date, end_date
		FROM employment_spans
		WHERE profile_id = $1 AND verified = true`, profileID)
	if err != nil {
		return 0, fmt.Errorf("load employment spans: %w", err)
	}
	defer rows.Close()

	var total float64
	now := b.now().UTC()
	for rows.Next() {
		var start time.Time
		var end sql.NullTime
		if err := rows.Scan(&start, &end); err != nil {
			return 0, fmt.Errorf("scan employment span: %w", err)
		}
		stop := now
		if end.Valid {
			stop = end.Time
		}
		if stop.After(start) {
			total += stop.Sub(start).Hours() / 24 / daysPerMonth
		}
	}
	return total, rows.Err()
}

func (b *RealBuilder) reviewAggregates(ctx context.Context, profileID string) (int, float64, float64, error) {
	var count int
	var rating, sentiment sql.NullFloat64
	err := b.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(rating), AVG(sentiment)
		FROM peer_reviews
		WHERE profile_id = $1`, profileID).Scan(&count, &rating, &sentiment)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("load peer reviews: %w", err)
	}

	avgSentiment := 0.0
	if count > 0 && sentiment.Valid {
		avgSentiment = normalizeSentiment(sentiment.Float64)
	}
	return count, rating.Float64, avgSentiment, nil
}

func (b *RealBuilder) rehireEligible(ctx context.Context, profileID string) (bool, error) {
	var eligible bool
	err := b.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM rehire_records
			WHERE profile_id = $1 AND eligible = true
		)`, profileID).Scan(&eligible)
	if err != nil {
		return false, fmt.Errorf("load rehire records: %w", err)
	}
	return eligible, nil
}
