// internal/synthetic/generator/generator.go
package generator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trustscore-workers/internal/common/config"
	"trustscore-workers/internal/common/errors"
	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/common/metrics"
	"trustscore-workers/internal/ledger"
	"trustscore-workers/internal/models"
	"trustscore-workers/internal/scoring/engine"
	"trustscore-workers/internal/scoring/input"
	"trustscore-workers/internal/scoring/store"
	"trustscore-workers/internal/synthetic/baseline"

	"github.com/google/uuid"
)

// Generator runs one synthetic population session end to end: session
// row, batched entity and vector writes, scoring pass, aggregate
// baselines, and the stress-mode drift snapshot.
type Generator struct {
	db       *sql.DB
	engine   *engine.Engine
	builder  *input.SyntheticBuilder
	scores   *store.Store
	ledger   *ledger.Ledger
	detector *baseline.Detector
	cfg      config.SyntheticConfig
	logger   logger.Logger
	now      func() time.Time
}

func New(
	db *sql.DB,
	eng *engine.Engine,
	builder *input.SyntheticBuilder,
	scores *store.Store,
	led *ledger.Ledger,
	detector *baseline.Detector,
	cfg config.SyntheticConfig,
	log logger.Logger,
) *Generator {
	return &Generator{
		db:       db,
		engine:   eng,
		builder:  builder,
		scores:   scores,
		ledger:   led,
		detector: detector,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "synthetic-generator"}),
		now:      time.Now,
	}
}

// Request describes one generation run.
type Request struct {
	Industry               string
	SubIndustry            string
	RoleTitle              string
	OrganizationID         string
	CandidateCount         int
	Mode                   models.GenerationMode
	BehavioralPreset       string
	VariationProfile       *models.VariationProfile
	FraudClusterSimulation bool
	CreatedBy              string
}

// Result reports the run. A run with failed batches is still a result,
// marked degraded, covering only the rows that committed.
type Result struct {
	SessionID      string
	Mode           models.GenerationMode
	ExpiresAt      time.Time
	RequestedCount int
	TargetCount    int
	GeneratedCount int
	EntityIDs      []string
	Batches        []models.BatchResult
	Degraded       bool
	Baseline       *models.BaselineSnapshot
}

// Generate validates the request, then writes the population in
// sequential batches. A failed batch stops further batches but keeps
// everything already committed. An isolation violation aborts the run
// with a fatal error before the offending write.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	target, err := g.validate(req)
	if err != nil {
		return nil, err
	}

	session := g.buildSession(req, target)
	if err := g.assertSessionIsolation(ctx, session); err != nil {
		return nil, err
	}
	if err := g.insertSession(ctx, session); err != nil {
		return nil, errors.NewSessionCreateFailedError(err)
	}

	res := &Result{
		SessionID:      session.ID,
		Mode:           session.Mode,
		ExpiresAt:      session.ExpiresAt,
		RequestedCount: req.CandidateCount,
		TargetCount:    target,
		EntityIDs:      make([]string, 0, target),
	}

	var allVectors []models.BehavioralVector
	firstBatchLen := 0

	for start := 0; start < target; start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > target {
			end = target
		}
		batchIdx := start / g.cfg.BatchSize

		entities, vectors := g.buildBatch(session, req, start, end)
		if err := g.assertRowIsolation(ctx, session, entities, vectors); err != nil {
			return nil, err
		}

		if err := g.writeBatch(ctx, entities, vectors); err != nil {
			metrics.SyntheticBatchesFailed.Inc()
			g.logger.Error("generation batch failed", map[string]interface{}{
				"sessionId": session.ID,
				"batch":     batchIdx,
				"error":     err,
			})
			res.Batches = append(res.Batches, models.BatchResult{
				Index:    batchIdx,
				RowCount: len(entities),
				Error:    errors.NewBatchInsertFailedError(batchIdx, err).Error(),
			})
			res.Degraded = true
			break
		}

		res.Batches = append(res.Batches, models.BatchResult{
			Index:     batchIdx,
			RowCount:  len(entities),
			Succeeded: true,
		})
		for _, e := range entities {
			res.EntityIDs = append(res.EntityIDs, e.ID)
		}
		allVectors = append(allVectors, vectors...)
		if batchIdx == 0 {
			firstBatchLen = len(vectors)
		}

		g.scoreBatch(ctx, session, entities, res)
	}

	res.GeneratedCount = len(res.EntityIDs)
	metrics.SyntheticEntitiesGenerated.WithLabelValues(string(session.Mode)).
		Add(float64(res.GeneratedCount))

	if err := g.updateGeneratedCount(ctx, session.ID, res.GeneratedCount); err != nil {
		g.logger.Warn("session count update failed", map[string]interface{}{
			"sessionId": session.ID,
			"error":     err,
		})
	}

	if len(allVectors) > 0 {
		g.persistBaselines(ctx, session, allVectors)
		if session.Mode == models.ModeStress && firstBatchLen > 0 {
			res.Baseline = g.snapshotDrift(ctx, session, allVectors[:firstBatchLen], allVectors)
		}
	}

	g.logger.Info("generation run complete", map[string]interface{}{
		"sessionId": session.ID,
		"mode":      string(session.Mode),
		"requested": req.CandidateCount,
		"generated": res.GeneratedCount,
		"degraded":  res.Degraded,
	})
	return res, nil
}

// validate rejects bad requests before any write and returns the entity
// target after clamping to the mode's ceiling.
func (g *Generator) validate(req Request) (int, error) {
	if strings.TrimSpace(req.Industry) == "" {
		return 0, errors.NewGenerationValidationFailedError("industry is required")
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return 0, errors.NewGenerationValidationFailedError("createdBy is required")
	}
	if req.CandidateCount <= 0 {
		return 0, errors.NewGenerationValidationFailedError(
			fmt.Sprintf("candidateCount must be positive, got %d", req.CandidateCount))
	}
	if req.BehavioralPreset != "" && !KnownPreset(req.BehavioralPreset) {
		return 0, errors.NewGenerationValidationFailedError(
			fmt.Sprintf("unknown behavioral preset %q", req.BehavioralPreset))
	}

	var ceiling int
	switch req.Mode {
	case models.ModeStandard:
		ceiling = g.cfg.StandardCap
	case models.ModeStress:
		ceiling = g.cfg.StressCap
	default:
		return 0, errors.NewGenerationValidationFailedError(
			fmt.Sprintf("unknown generation mode %q", req.Mode))
	}

	target := req.CandidateCount
	if target > ceiling {
		g.logger.Warn("candidate count clamped to mode ceiling", map[string]interface{}{
			"requested": req.CandidateCount,
			"ceiling":   ceiling,
			"mode":      string(req.Mode),
		})
		target = ceiling
	}
	return target, nil
}

func (g *Generator) buildSession(req Request, target int) models.SyntheticSession {
	now := g.now().UTC()
	return models.SyntheticSession{
		ID:             uuid.New().String(),
		Mode:           req.Mode,
		RequestedCount: req.CandidateCount,
		Industry:       req.Industry,
		SubIndustry:    req.SubIndustry,
		RoleTitle:      req.RoleTitle,
		OrganizationID: req.OrganizationID,
		Isolation:      true,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(g.cfg.SessionTTLMinutes) * time.Minute),
	}
}

// buildBatch materializes entities and vectors for indices [start, end).
func (g *Generator) buildBatch(session models.SyntheticSession, req Request, start, end int) ([]models.SyntheticEntity, []models.BehavioralVector) {
	preset := req.BehavioralPreset
	if preset == "" {
		preset = defaultPreset
	}
	now := g.now().UTC()

	entities := make([]models.SyntheticEntity, 0, end-start)
	vectors := make([]models.BehavioralVector, 0, end-start)
	for i := start; i < end; i++ {
		e := models.SyntheticEntity{
			ID:             uuid.New().String(),
			SessionID:      session.ID,
			Industry:       session.Industry,
			RoleTitle:      session.RoleTitle,
			TenureMonths:   synthTenureMonths(i),
			ReviewCount:    synthReviewCount(i),
			RatingAverage:  synthRatingAverage(i, req.FraudClusterSimulation),
			SentimentTone:  synthSentiment(i, saltTone, req.FraudClusterSimulation),
			SentimentTrust: synthSentiment(i, saltTrust, req.FraudClusterSimulation),
			RehireEligible: synthRehireEligible(i, req.FraudClusterSimulation),
			Isolation:      true,
			ExpiresAt:      session.ExpiresAt,
			CreatedAt:      now,
		}
		entities = append(entities, e)
		vectors = append(vectors, models.BehavioralVector{
			EntityID:   e.ID,
			SessionID:  session.ID,
			Dimensions: buildDimensions(i, preset, req.FraudClusterSimulation, req.VariationProfile),
			Isolation:  true,
			ExpiresAt:  session.ExpiresAt,
		})
	}
	return entities, vectors
}

// assertSessionIsolation is checked before the session row is written.
func (g *Generator) assertSessionIsolation(ctx context.Context, session models.SyntheticSession) error {
	if session.Isolation {
		return nil
	}
	return g.isolationViolation(ctx, session.ID, "session row missing isolation flag")
}

// assertRowIsolation is checked before every batch write. Any cleared
// flag aborts the run; nothing from the batch reaches the store.
func (g *Generator) assertRowIsolation(ctx context.Context, session models.SyntheticSession, entities []models.SyntheticEntity, vectors []models.BehavioralVector) error {
	for _, e := range entities {
		if !e.Isolation {
			return g.isolationViolation(ctx, session.ID,
				fmt.Sprintf("entity %s missing isolation flag", e.ID))
		}
	}
	for _, v := range vectors {
		if !v.Isolation {
			return g.isolationViolation(ctx, session.ID,
				fmt.Sprintf("vector for entity %s missing isolation flag", v.EntityID))
		}
	}
	return nil
}

func (g *Generator) isolationViolation(ctx context.Context, sessionID, details string) error {
	g.logger.Error("isolation violation, aborting run", map[string]interface{}{
		"sessionId": sessionID,
		"details":   details,
	})
	g.ledger.EmitHealth(ctx, "synthetic-generator", "failed", "isolation violation", map[string]interface{}{
		"sessionId": sessionID,
		"details":   details,
	})
	return errors.NewIsolationViolationError(details)
}

func (g *Generator) insertSession(ctx context.Context, s models.SyntheticSession) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO synthetic_sessions (
			id, mode, requested_count, generated_count, industry,
			sub_industry, role_title, organization_id, isolation,
			created_by, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, string(s.Mode), s.RequestedCount, 0, s.Industry,
		s.SubIndustry, s.RoleTitle, s.OrganizationID, s.Isolation,
		s.CreatedBy, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// writeBatch commits one batch atomically: either every entity and
// vector in the batch lands, or none do.
func (g *Generator) writeBatch(ctx context.Context, entities []models.SyntheticEntity, vectors []models.BehavioralVector) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntities(ctx, tx, entities); err != nil {
		return err
	}
	if err := insertVectors(ctx, tx, vectors); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func insertEntities(ctx context.Context, tx *sql.Tx, entities []models.SyntheticEntity) error {
	const cols = 13
	var sb strings.Builder
	sb.WriteString(`INSERT INTO synthetic_entities (
		id, session_id, industry, role_title, tenure_months,
		review_count, rating_average, sentiment_tone, sentiment_trust,
		rehire_eligible, isolation, expires_at, created_at
	) VALUES `)
	args := make([]interface{}, 0, len(entities)*cols)
	for i, e := range entities {
		if i > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, i*cols, cols)
		args = append(args,
			e.ID, e.SessionID, e.Industry, e.RoleTitle, e.TenureMonths,
			e.ReviewCount, e.RatingAverage, e.SentimentTone, e.SentimentTrust,
			e.RehireEligible, e.Isolation, e.ExpiresAt, e.CreatedAt,
		)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert entities: %w", err)
	}
	return nil
}

func insertVectors(ctx context.Context, tx *sql.Tx, vectors []models.BehavioralVector) error {
	const cols = 5
	var sb strings.Builder
	sb.WriteString(`INSERT INTO behavioral_vectors (
		entity_id, session_id, dimensions, isolation, expires_at
	) VALUES `)
	args := make([]interface{}, 0, len(vectors)*cols)
	for i, v := range vectors {
		dims, err := json.Marshal(v.Dimensions)
		if err != nil {
			return fmt.Errorf("marshal vector dimensions: %w", err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, i*cols, cols)
		args = append(args, v.EntityID, v.SessionID, dims, v.Isolation, v.ExpiresAt)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert vectors: %w", err)
	}
	return nil
}

func writePlaceholders(sb *strings.Builder, offset, n int) {
	sb.WriteString("(")
	for j := 0; j < n; j++ {
		if j > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", offset+j+1)
	}
	sb.WriteString(")")
}

// scoreBatch feeds committed entities back through the shared builder
// and engine so synthetic populations get real breakdowns and ledger
// entries. A persist failure degrades the run instead of failing it.
func (g *Generator) scoreBatch(ctx context.Context, session models.SyntheticSession, entities []models.SyntheticEntity, res *Result) {
	for _, e := range entities {
		bd := g.engine.Score(g.builder.FromEntity(e), session.Industry)
		if err := g.scores.Upsert(ctx, models.EntityTypeSyntheticProfile, e.ID, bd); err != nil {
			g.logger.Warn("synthetic score persist failed", map[string]interface{}{
				"entityId": e.ID,
				"error":    err,
			})
			res.Degraded = true
			continue
		}
		metrics.ScoresComputed.WithLabelValues(string(models.EntityTypeSyntheticProfile), session.Industry).Inc()
		createdBy := session.CreatedBy
		g.ledger.Record(ctx, models.EntityTypeSyntheticProfile, e.ID, nil,
			float64(bd.TotalScore), models.ReasonSyntheticGeneration, &createdBy)
	}
}

func (g *Generator) updateGeneratedCount(ctx context.Context, sessionID string, count int) error {
	_, err := g.db.ExecContext(ctx,
		`UPDATE synthetic_sessions SET generated_count = $1 WHERE id = $2`,
		count, sessionID)
	return err
}

// persistBaselines stores the per-industry aggregate, plus a
// per-organization aggregate when the session is org-scoped. Baseline
// rows share the session's expiry so the purge sweep removes them too.
func (g *Generator) persistBaselines(ctx context.Context, session models.SyntheticSession, vectors []models.BehavioralVector) {
	agg := baseline.Aggregate(vectors)
	g.insertBaseline(ctx, session, "industry", session.Industry, agg)
	if session.OrganizationID != "" {
		g.insertBaseline(ctx, session, "organization", session.OrganizationID, agg)
	}
}

func (g *Generator) insertBaseline(ctx context.Context, session models.SyntheticSession, scope, scopeKey string, dims map[string]float64) {
	doc, err := json.Marshal(dims)
	if err != nil {
		g.logger.Warn("baseline marshal failed", map[string]interface{}{
			"sessionId": session.ID,
			"scope":     scope,
			"error":     err,
		})
		return
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO aggregate_baselines (
			session_id, scope, scope_key, dimensions, expires_at, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, scope, scopeKey, doc, session.ExpiresAt, g.now().UTC())
	if err != nil {
		g.logger.Warn("baseline persist failed", map[string]interface{}{
			"sessionId": session.ID,
			"scope":     scope,
			"error":     err,
		})
	}
}

// snapshotDrift compares the first committed batch against the full
// population. Stress mode only.
func (g *Generator) snapshotDrift(ctx context.Context, session models.SyntheticSession, firstBatch, all []models.BehavioralVector) *models.BaselineSnapshot {
	before := baseline.Aggregate(firstBatch)
	after := baseline.Aggregate(all)
	deltaPct, drift := g.detector.Compare(before, after)

	snap := &models.BaselineSnapshot{
		SessionID:    session.ID,
		Before:       before,
		After:        after,
		DeltaPercent: deltaPct,
		DriftWarning: drift,
		ComputedAt:   g.now().UTC(),
	}
	if drift {
		metrics.DriftWarnings.Inc()
		g.logger.Warn("baseline drift exceeded threshold", map[string]interface{}{
			"sessionId":    session.ID,
			"deltaPercent": deltaPct,
		})
	}

	doc, err := json.Marshal(snap)
	if err == nil {
		_, err = g.db.ExecContext(ctx, `
			INSERT INTO baseline_snapshots (
				session_id, snapshot, drift_warning, expires_at, computed_at
			) VALUES ($1, $2, $3, $4, $5)`,
			session.ID, doc, snap.DriftWarning, session.ExpiresAt, snap.ComputedAt)
	}
	if err != nil {
		g.logger.Warn("baseline snapshot persist failed", map[string]interface{}{
			"sessionId": session.ID,
			"error":     err,
		})
	}
	return snap
}
