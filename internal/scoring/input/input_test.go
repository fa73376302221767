// internal/scoring/input/input_test.go
package input

import (
	"context"
	"testing"
	"time"

	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Shared Reduction Rules
// ==========================

func TestNormalizeSentiment(t *testing.T) {
	assert.Equal(t, 0.0, normalizeSentiment(50))
	assert.Equal(t, 1.0, normalizeSentiment(100))
	assert.Equal(t, -1.0, normalizeSentiment(0))
	assert.Equal(t, 0.5, normalizeSentiment(75))
	// Out-of-scale sources stay bounded.
	assert.Equal(t, 1.0, normalizeSentiment(250))
	assert.Equal(t, -1.0, normalizeSentiment(-40))
}

func TestClampRating(t *testing.T) {
	assert.Equal(t, 3.0, clampRating(0, 0))  // zero reviews -> neutral midpoint
	assert.Equal(t, 3.0, clampRating(17, 0)) // garbage without reviews still neutral
	assert.Equal(t, 1.0, clampRating(0.3, 2))
	assert.Equal(t, 5.0, clampRating(9.9, 2))
	assert.Equal(t, 4.2, clampRating(4.2, 7))
}

// ==========================
// Real Builder
// ==========================

func TestRealBuilder_Build(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT fraud_score FROM profiles`).
		WithArgs("profile-001").
		WillReturnRows(sqlmock.NewRows([]string{"fraud_score"}).AddRow(nil))

	// One closed verified span of ~12 months, one open span of ~6 months.
	mock.ExpectQuery(`SELECT start_date, end_date`).
		WithArgs("profile-001").
		WillReturnRows(sqlmock.NewRows([]string{"start_date", "end_date"}).
			AddRow(now.AddDate(-2, 0, 0), now.AddDate(-1, 0, 0)).
			AddRow(now.AddDate(0, -6, 0), nil))

	mock.ExpectQuery(`SELECT COUNT\(\*\), AVG\(rating\), AVG\(sentiment\)`).
		WithArgs("profile-001").
		WillReturnRows(sqlmock.NewRows([]string{"count", "rating", "sentiment"}).
			AddRow(4, 4.5, 80.0))

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("profile-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	builder := NewRealBuilder(db, logger.NewTestLogger(t))
	builder.now = func() time.Time { return now }

	in, err := builder.Build(context.Background(), "profile-001")
	require.NoError(t, err)

	assert.InDelta(t, 18.0, in.TotalMonths, 0.5)
	assert.Equal(t, 4, in.ReviewCount)
	assert.Equal(t, 4.5, in.AverageRating)
	assert.InDelta(t, 0.6, in.SentimentAverage, 0.001) // (80-50)/50
	assert.True(t, in.RehireEligible)
	assert.Nil(t, in.FraudScore)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRealBuilder_Build_NoReviewsDefaultsNeutral(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT fraud_score FROM profiles`).
		WithArgs("profile-002").
		WillReturnRows(sqlmock.NewRows([]string{"fraud_score"}).AddRow(0.25))

	mock.ExpectQuery(`SELECT start_date, end_date`).
		WithArgs("profile-002").
		WillReturnRows(sqlmock.NewRows([]string{"start_date", "end_date"}))

	mock.ExpectQuery(`SELECT COUNT\(\*\), AVG\(rating\), AVG\(sentiment\)`).
		WithArgs("profile-002").
		WillReturnRows(sqlmock.NewRows([]string{"count", "rating", "sentiment"}).
			AddRow(0, nil, nil))

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("profile-002").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	builder := NewRealBuilder(db, logger.NewTestLogger(t))

	in, err := builder.Build(context.Background(), "profile-002")
	require.NoError(t, err)

	assert.Equal(t, 0.0, in.TotalMonths)
	assert.Equal(t, 0, in.ReviewCount)
	assert.Equal(t, 3.0, in.AverageRating)
	assert.Equal(t, 0.0, in.SentimentAverage)
	assert.False(t, in.RehireEligible)
	require.NotNil(t, in.FraudScore)
	assert.Equal(t, 0.25, *in.FraudScore)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRealBuilder_Build_MissingProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT fraud_score FROM profiles`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"fraud_score"}))

	builder := NewRealBuilder(db, logger.NewTestLogger(t))

	_, err = builder.Build(context.Background(), "missing")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Synthetic Builder
// ==========================

func TestSyntheticBuilder_FromEntity(t *testing.T) {
	b := NewSyntheticBuilder(nil)

	in := b.FromEntity(models.SyntheticEntity{
		TenureMonths:   36,
		ReviewCount:    5,
		RatingAverage:  4.4,
		SentimentTone:  70,
		SentimentTrust: 90,
		RehireEligible: true,
	})

	assert.Equal(t, 36.0, in.TotalMonths)
	assert.Equal(t, 5, in.ReviewCount)
	assert.Equal(t, 4.4, in.AverageRating)
	assert.InDelta(t, 0.6, in.SentimentAverage, 0.001) // mean(70,90)=80 -> 0.6
	assert.True(t, in.RehireEligible)
}

func TestSyntheticBuilder_FromEntity_SameRulesAsReal(t *testing.T) {
	b := NewSyntheticBuilder(nil)

	in := b.FromEntity(models.SyntheticEntity{
		TenureMonths:  -3,
		ReviewCount:   0,
		RatingAverage: 8.5,
	})

	assert.Equal(t, 0.0, in.TotalMonths)
	assert.Equal(t, 3.0, in.AverageRating) // zero reviews -> neutral
}

func TestSyntheticBuilder_Build(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, session_id, tenure_months`).
		WithArgs("ent-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "tenure_months", "review_count", "rating_average",
			"sentiment_tone", "sentiment_trust", "rehire_eligible",
		}).AddRow("ent-1", "sess-1", 24.0, 3, 3.8, 60.0, 40.0, false))

	b := NewSyntheticBuilder(db)
	in, err := b.Build(context.Background(), "ent-1")
	require.NoError(t, err)

	assert.Equal(t, 24.0, in.TotalMonths)
	assert.Equal(t, 3, in.ReviewCount)
	assert.Equal(t, 3.8, in.AverageRating)
	assert.Equal(t, 0.0, in.SentimentAverage) // mean(60,40)=50 -> 0
	assert.NoError(t, mock.ExpectationsWereMet())
}
