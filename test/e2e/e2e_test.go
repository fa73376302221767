// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trustscore-workers/internal/common/camunda"
	"trustscore-workers/internal/common/config"
	"trustscore-workers/internal/common/database"
	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/ledger"
	"trustscore-workers/internal/models"
	"trustscore-workers/internal/scoring/engine"
	"trustscore-workers/internal/scoring/input"
	"trustscore-workers/internal/scoring/store"
	"trustscore-workers/internal/synthetic/baseline"
	"trustscore-workers/internal/synthetic/generator"

	computeprofilescore "trustscore-workers/internal/workers/scoring/compute-profile-score"
	purgeexpiredsessions "trustscore-workers/internal/workers/synthetic/purge-expired-sessions"
)

// The suite needs a running Zeebe broker, PostgreSQL, Elasticsearch,
// and Redis. Gate it so `go test ./...` stays green without them.

var (
	camundaClient *camunda.Client
	zeebeClient   zbc.Client
	zapLog        *zap.Logger
)

func TestMain(m *testing.M) {
	if os.Getenv("E2E_TESTS") != "true" {
		fmt.Println("skipping e2e suite, set E2E_TESTS=true to run")
		os.Exit(0)
	}

	var err error
	camundaClient, err = camunda.NewClient("localhost:26500")
	if err != nil {
		panic(fmt.Sprintf("failed to connect to Zeebe: %v", err))
	}
	zeebeClient = camundaClient.GetClient()

	zapLog, _ = zap.NewProduction()

	code := m.Run()

	camundaClient.Close()
	os.Exit(code)
}

func TestFullE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"

	t.Log("checking service connectivity...")
	pg := assertServicesUp(t, ctx, cfg)
	defer pg.Close()

	createDatabaseTables(t, ctx, pg)
	seedTestProfile(t, ctx, pg)

	log := logger.NewZapAdapter(zapLog)
	scoreLedger := ledger.New(pg.DB, nil, nil, "", log)
	scoreEngine := engine.New(cfg.Scoring.Verticals)
	scoreStore := store.New(pg.DB)

	t.Run("compute real profile score", func(t *testing.T) {
		h := computeprofilescore.NewHandler(
			computeprofilescore.LoadConfig(),
			scoreEngine,
			input.NewRealBuilder(pg.DB, log),
			input.NewSyntheticBuilder(pg.DB),
			scoreStore, scoreLedger, nil, log,
		)

		out, err := h.Execute(ctx, &computeprofilescore.Input{
			EntityType:  "real-profile",
			EntityID:    "e2e-profile-1",
			TriggeredBy: "e2e-suite",
		})
		require.NoError(t, err)

		assert.GreaterOrEqual(t, out.TotalScore, 0)
		assert.LessOrEqual(t, out.TotalScore, 100)
		assert.NotEmpty(t, out.LedgerEntryID)

		var entries int
		err = pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM score_history WHERE entity_id = $1`,
			"e2e-profile-1").Scan(&entries)
		require.NoError(t, err)
		assert.Equal(t, 1, entries, "exactly one ledger entry per score write")
	})

	var sessionID string
	t.Run("generate synthetic population", func(t *testing.T) {
		gen := generator.New(
			pg.DB, scoreEngine, input.NewSyntheticBuilder(pg.DB), scoreStore,
			scoreLedger, baseline.NewDetector(cfg.Synthetic.DriftThresholdPercent),
			cfg.Synthetic, log,
		)

		res, err := gen.Generate(ctx, generator.Request{
			Industry:       "logistics",
			RoleTitle:      "dispatcher",
			CandidateCount: 20,
			Mode:           models.ModeStandard,
			CreatedBy:      "e2e-suite",
		})
		require.NoError(t, err)
		sessionID = res.SessionID

		assert.Equal(t, 20, res.GeneratedCount)
		assert.False(t, res.Degraded)

		var entities, vectors int
		require.NoError(t, pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM synthetic_entities WHERE session_id = $1`,
			sessionID).Scan(&entities))
		require.NoError(t, pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM behavioral_vectors WHERE session_id = $1`,
			sessionID).Scan(&vectors))
		assert.Equal(t, 20, entities)
		assert.Equal(t, 20, vectors)
	})

	t.Run("purge expired sessions", func(t *testing.T) {
		require.NotEmpty(t, sessionID)

		_, err := pg.DB.ExecContext(ctx,
			`UPDATE synthetic_sessions SET expires_at = NOW() - INTERVAL '1 minute' WHERE id = $1`,
			sessionID)
		require.NoError(t, err)

		h := purgeexpiredsessions.NewHandler(purgeexpiredsessions.LoadConfig(), pg.DB, log)
		out, err := h.Execute(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.PurgedSessions, int64(1))

		var remaining int
		require.NoError(t, pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM synthetic_entities WHERE session_id = $1`,
			sessionID).Scan(&remaining))
		assert.Zero(t, remaining, "purge removes every owned row")
	})
}

func assertServicesUp(t *testing.T, ctx context.Context, cfg *config.Config) *database.PostgresClient {
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	t.Log("PostgreSQL connected")

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "Redis client creation failed")
	assert.NoError(t, rdb.Ping(ctx), "Redis ping failed")
	rdb.Close()
	t.Log("Redis connected")

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err, "Elasticsearch client creation failed")
	assert.NoError(t, es.Ping(), "Elasticsearch ping failed")
	t.Log("Elasticsearch connected")

	_, err = zeebeClient.NewTopologyCommand().Send(ctx)
	assert.NoError(t, err, "Zeebe topology request failed")
	t.Log("Zeebe connected")

	return pg
}

func createDatabaseTables(t *testing.T, ctx context.Context, pg *database.PostgresClient) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR(255) PRIMARY KEY,
			fraud_score DOUBLE PRECISION,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS employment_spans (
			id SERIAL PRIMARY KEY,
			profile_id VARCHAR(255) REFERENCES profiles(id),
			start_date TIMESTAMP NOT NULL,
			end_date TIMESTAMP,
			verified BOOLEAN DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS peer_reviews (
			id SERIAL PRIMARY KEY,
			profile_id VARCHAR(255) REFERENCES profiles(id),
			rating DOUBLE PRECISION,
			sentiment DOUBLE PRECISION,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS rehire_records (
			id SERIAL PRIMARY KEY,
			profile_id VARCHAR(255) REFERENCES profiles(id),
			eligible BOOLEAN DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS profile_scores (
			entity_type VARCHAR(32) NOT NULL,
			entity_id VARCHAR(255) NOT NULL,
			total_score DOUBLE PRECISION NOT NULL,
			components JSONB,
			engine_version VARCHAR(16),
			vertical VARCHAR(64),
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (entity_type, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS score_history (
			id VARCHAR(255) PRIMARY KEY,
			entity_type VARCHAR(32) NOT NULL,
			entity_id VARCHAR(255) NOT NULL,
			previous_score DOUBLE PRECISION,
			new_score DOUBLE PRECISION NOT NULL,
			delta DOUBLE PRECISION,
			reason VARCHAR(64) NOT NULL,
			triggered_by VARCHAR(255),
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS synthetic_sessions (
			id VARCHAR(255) PRIMARY KEY,
			mode VARCHAR(16) NOT NULL,
			requested_count INTEGER NOT NULL,
			generated_count INTEGER NOT NULL,
			industry VARCHAR(128) NOT NULL,
			sub_industry VARCHAR(128),
			role_title VARCHAR(128),
			organization_id VARCHAR(255),
			isolation BOOLEAN NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS synthetic_entities (
			id VARCHAR(255) PRIMARY KEY,
			session_id VARCHAR(255) REFERENCES synthetic_sessions(id),
			industry VARCHAR(128),
			role_title VARCHAR(128),
			tenure_months DOUBLE PRECISION,
			review_count INTEGER,
			rating_average DOUBLE PRECISION,
			sentiment_tone DOUBLE PRECISION,
			sentiment_trust DOUBLE PRECISION,
			rehire_eligible BOOLEAN,
			isolation BOOLEAN NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS behavioral_vectors (
			entity_id VARCHAR(255) PRIMARY KEY,
			session_id VARCHAR(255) REFERENCES synthetic_sessions(id),
			dimensions JSONB NOT NULL,
			isolation BOOLEAN NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aggregate_baselines (
			id SERIAL PRIMARY KEY,
			session_id VARCHAR(255) REFERENCES synthetic_sessions(id),
			scope VARCHAR(32) NOT NULL,
			scope_key VARCHAR(255) NOT NULL,
			dimensions JSONB NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			computed_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS baseline_snapshots (
			id SERIAL PRIMARY KEY,
			session_id VARCHAR(255) REFERENCES synthetic_sessions(id),
			snapshot JSONB NOT NULL,
			drift_warning BOOLEAN NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			computed_at TIMESTAMP NOT NULL
		)`,
	}

	for _, q := range queries {
		_, err := pg.DB.ExecContext(ctx, q)
		require.NoError(t, err)
	}
}

func seedTestProfile(t *testing.T, ctx context.Context, pg *database.PostgresClient) {
	_, err := pg.DB.ExecContext(ctx, `
		DELETE FROM score_history WHERE entity_id = 'e2e-profile-1'`)
	require.NoError(t, err)
	_, err = pg.DB.ExecContext(ctx, `
		DELETE FROM profile_scores WHERE entity_id = 'e2e-profile-1'`)
	require.NoError(t, err)

	_, err = pg.DB.ExecContext(ctx, `
		INSERT INTO profiles (id, fraud_score) VALUES ('e2e-profile-1', 0.1)
		ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)

	var spans int
	require.NoError(t, pg.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM employment_spans WHERE profile_id = 'e2e-profile-1'`).Scan(&spans))
	if spans > 0 {
		return
	}

	_, err = pg.DB.ExecContext(ctx, `
		INSERT INTO employment_spans (profile_id, start_date, end_date, verified)
		VALUES ('e2e-profile-1', NOW() - INTERVAL '24 months', NOW() - INTERVAL '2 months', TRUE)`)
	require.NoError(t, err)

	_, err = pg.DB.ExecContext(ctx, `
		INSERT INTO peer_reviews (profile_id, rating, sentiment) VALUES
		('e2e-profile-1', 4.5, 80),
		('e2e-profile-1', 4.0, 70),
		('e2e-profile-1', 5.0, 90)`)
	require.NoError(t, err)

	_, err = pg.DB.ExecContext(ctx, `
		INSERT INTO rehire_records (profile_id, eligible) VALUES ('e2e-profile-1', TRUE)`)
	require.NoError(t, err)
}
