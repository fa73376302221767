// internal/workers/scoring/compute-profile-score/handler_test.go
package computeprofilescore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustscore-workers/internal/common/database"
	"trustscore-workers/internal/common/errors"
	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/ledger"
	"trustscore-workers/internal/models"
	"trustscore-workers/internal/scoring/engine"
	"trustscore-workers/internal/scoring/input"
	"trustscore-workers/internal/scoring/store"
)

// ==========================
// Test Helpers
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:  5 * time.Second,
		CacheTTL: time.Hour,
	}
}

func newTestHandler(t *testing.T, cache ScoreCache) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewNoOpLogger()
	h := NewHandler(
		createTestConfig(),
		engine.New(map[string]float64{"logistics": 1.0, "healthcare": 0.9}),
		input.NewRealBuilder(db, log),
		input.NewSyntheticBuilder(db),
		store.New(db),
		ledger.New(db, nil, nil, "", log),
		cache,
		log,
	)
	return h, mock
}

// expectSyntheticEntity mocks the entity load for the synthetic path.
func expectSyntheticEntity(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`SELECT id, session_id, tenure_months`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "tenure_months", "review_count",
			"rating_average", "sentiment_tone", "sentiment_trust", "rehire_eligible",
		}).AddRow(id, "session-1", 35.0, 10, 5.0, 100.0, 100.0, true))
}

// ==========================
// Execute
// ==========================

func TestExecute_SyntheticEntity_InitialScore(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	cache := &database.RedisClient{Client: redisClient}
	h, mock := newTestHandler(t, cache)

	expectSyntheticEntity(mock, "entity-1")
	mock.ExpectQuery(`SELECT total_score FROM profile_scores`).
		WithArgs("synthetic-profile", "entity-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO profile_scores`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO score_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// 35 months of tenure caps at 30, ten perfect reviews give 25 + 20
	// + 15, and rehire eligibility lifts 90 to 99.
	expected := models.ScoreBreakdown{
		TotalScore:       99,
		Tenure:           30,
		ReviewVolume:     25,
		Sentiment:        20,
		Rating:           15,
		RehireMultiplier: 1.1,
		EngineVersion:    engine.Version,
	}
	doc, err := json.Marshal(expected)
	require.NoError(t, err)
	redisMock.ExpectSet("score:synthetic-profile:entity-1", string(doc), time.Hour).
		SetVal("OK")

	out, err := h.Execute(context.Background(), &Input{
		EntityType:  "synthetic-profile",
		EntityID:    "entity-1",
		TriggeredBy: "qa-harness",
	})
	require.NoError(t, err)

	assert.Equal(t, 99, out.TotalScore)
	assert.Equal(t, expected, out.Breakdown)
	assert.Equal(t, string(models.ReasonInitialScore), out.Reason)
	assert.Nil(t, out.PreviousScore)
	assert.NotEmpty(t, out.LedgerEntryID)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestExecute_SyntheticEntity_Rescore(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	expectSyntheticEntity(mock, "entity-2")
	mock.ExpectQuery(`SELECT total_score FROM profile_scores`).
		WithArgs("synthetic-profile", "entity-2").
		WillReturnRows(sqlmock.NewRows([]string{"total_score"}).AddRow(72.0))
	mock.ExpectExec(`INSERT INTO profile_scores`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO score_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := h.Execute(context.Background(), &Input{
		EntityType: "synthetic-profile",
		EntityID:   "entity-2",
	})
	require.NoError(t, err)

	assert.Equal(t, string(models.ReasonRescore), out.Reason)
	require.NotNil(t, out.PreviousScore)
	assert.Equal(t, 72.0, *out.PreviousScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_InlineProfileInputSkipsBuilders(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	// No entity query expected: the supplied input is scored directly.
	mock.ExpectQuery(`SELECT total_score FROM profile_scores`).
		WithArgs("real-profile", "profile-7").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO profile_scores`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO score_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := h.Execute(context.Background(), &Input{
		EntityType: "real-profile",
		EntityID:   "profile-7",
		ProfileInput: &models.ProfileInput{
			TotalMonths:      35,
			ReviewCount:      10,
			SentimentAverage: 1.0,
			AverageRating:    5.0,
			RehireEligible:   true,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 99, out.TotalScore)
	assert.False(t, out.AuditFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_VerticalAdjustsTotalOnly(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	expectSyntheticEntity(mock, "entity-3")
	mock.ExpectQuery(`SELECT total_score FROM profile_scores`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO profile_scores`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO score_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := h.Execute(context.Background(), &Input{
		EntityType: "synthetic-profile",
		EntityID:   "entity-3",
		Vertical:   "healthcare",
	})
	require.NoError(t, err)

	// 99 * 0.9 = 89.1, rounded.
	assert.Equal(t, 89, out.TotalScore)
	assert.Equal(t, 30.0, out.Breakdown.Tenure, "components stay unadjusted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_RealProfileNotFound(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	mock.ExpectQuery(`SELECT fraud_score FROM profiles`).
		WithArgs("missing-profile").
		WillReturnError(sql.ErrNoRows)

	out, err := h.Execute(context.Background(), &Input{
		EntityType: "real-profile",
		EntityID:   "missing-profile",
	})
	require.Error(t, err)
	assert.Nil(t, out)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeProfileNotFound, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_InvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		input *Input
	}{
		{"unknown entity type", &Input{EntityType: "ghost", EntityID: "x"}},
		{"empty entity id", &Input{EntityType: "real-profile", EntityID: "  "}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, mock := newTestHandler(t, nil)

			out, err := h.Execute(context.Background(), tc.input)
			require.Error(t, err)
			assert.Nil(t, out)

			var stdErr *errors.StandardError
			require.True(t, stderrors.As(err, &stdErr))
			assert.Equal(t, errors.ErrCodeInputBuildFailed, stdErr.Code)
			assert.NoError(t, mock.ExpectationsWereMet(), "no writes on rejected input")
		})
	}
}

func TestExecute_LedgerFailureDoesNotFailScore(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	expectSyntheticEntity(mock, "entity-3")
	mock.ExpectQuery(`SELECT total_score FROM profile_scores`).
		WithArgs("synthetic-profile", "entity-3").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO profile_scores`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO score_history`).
		WillReturnError(sql.ErrConnDone)

	out, err := h.Execute(context.Background(), &Input{
		EntityType: "synthetic-profile",
		EntityID:   "entity-3",
	})
	require.NoError(t, err)

	assert.True(t, out.AuditFailed)
	assert.Empty(t, out.LedgerEntryID)
	assert.Equal(t, 99, out.TotalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_PersistFailureIsRetryable(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	expectSyntheticEntity(mock, "entity-4")
	mock.ExpectQuery(`SELECT total_score FROM profile_scores`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO profile_scores`).
		WillReturnError(stderrors.New("connection reset"))

	_, err := h.Execute(context.Background(), &Input{
		EntityType: "synthetic-profile",
		EntityID:   "entity-4",
	})
	require.Error(t, err)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeScorePersistFailed, stdErr.Code)
	assert.True(t, errors.IsRetryableErrorCode(stdErr.Code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_CacheFailureDoesNotFailJob(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	cache := &database.RedisClient{Client: redisClient}
	h, mock := newTestHandler(t, cache)

	expectSyntheticEntity(mock, "entity-5")
	mock.ExpectQuery(`SELECT total_score FROM profile_scores`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO profile_scores`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO score_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	redisMock.Regexp().ExpectSet(`score:synthetic-profile:entity-5`, `.*`, time.Hour).
		SetErr(stderrors.New("redis unavailable"))

	out, err := h.Execute(context.Background(), &Input{
		EntityType: "synthetic-profile",
		EntityID:   "entity-5",
	})
	require.NoError(t, err, "the cache is best effort")
	assert.Equal(t, 99, out.TotalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}
