// internal/ledger/ledger.go
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/common/metrics"
	"trustscore-workers/internal/models"

	"github.com/google/uuid"
)

// HealthSink receives operational events; implementations are write-only.
type HealthSink interface {
	Emit(ctx context.Context, event models.HealthEvent) error
}

// AuditResult distinguishes the primary write's outcome from the audit
// write's outcome so a failed ledger entry is observable without being
// conflated with a failed score.
type AuditResult struct {
	EntryID     string
	LedgerError error
}

// Ledger appends immutable score transition entries. Entries are never
// updated or deleted, so concurrent appends need no coordination.
type Ledger struct {
	db         *sql.DB
	sink       HealthSink
	auditIndex string
	mirror     DocumentIndexer
	logger     logger.Logger
	now        func() time.Time
}

// DocumentIndexer mirrors ledger entries into a search index for the
// external audit dashboards. Best effort only.
type DocumentIndexer interface {
	Index(ctx context.Context, index string, doc []byte) error
}

func New(db *sql.DB, sink HealthSink, mirror DocumentIndexer, auditIndex string, log logger.Logger) *Ledger {
	return &Ledger{
		db:         db,
		sink:       sink,
		mirror:     mirror,
		auditIndex: auditIndex,
		logger:     log.WithFields(map[string]interface{}{"component": "score-ledger"}),
		now:        time.Now,
	}
}

// Record appends exactly one entry for one persisted score write. The
// caller's score is already valid; a ledger failure is reported in the
// result, surfaced as a health event, and never propagated as an error.
func (l *Ledger) Record(
	ctx context.Context,
	entityType models.EntityType,
	entityID string,
	previousScore *float64,
	newScore float64,
	reason models.ScoreChangeReason,
	triggeredBy *string,
) AuditResult {
	entry := models.ScoreHistoryEntry{
		ID:            uuid.New().String(),
		EntityType:    entityType,
		EntityID:      entityID,
		PreviousScore: previousScore,
		NewScore:      newScore,
		Delta:         computeDelta(previousScore, newScore),
		Reason:        reason,
		TriggeredBy:   triggeredBy,
		CreatedAt:     l.now().UTC(),
	}

	if err := l.insert(ctx, entry); err != nil {
		metrics.LedgerWriteFailures.Inc()
		l.logger.Error("score history write failed", map[string]interface{}{
			"entityId": entityID,
			"error":    err,
		})
		l.emitHealth(ctx, "score-ledger", "failed", "score history write failed", map[string]interface{}{
			"entityId":   entityID,
			"entityType": string(entityType),
			"error":      err.Error(),
		})
		return AuditResult{LedgerError: err}
	}

	l.mirrorEntry(ctx, entry)
	return AuditResult{EntryID: entry.ID}
}

func (l *Ledger) insert(ctx context.Context, e models.ScoreHistoryEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO score_history (
			id, entity_type, entity_id, previous_score, new_score,
			delta, reason, triggered_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID,
		string(e.EntityType),
		e.EntityID,
		e.PreviousScore,
		e.NewScore,
		e.Delta,
		string(e.Reason),
		e.TriggeredBy,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert score history: %w", err)
	}
	return nil
}

// mirrorEntry pushes a copy into the audit index. Failures only log;
// the Postgres row is the source of truth.
func (l *Ledger) mirrorEntry(ctx context.Context, e models.ScoreHistoryEntry) {
	if l.mirror == nil {
		return
	}
	doc, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := l.mirror.Index(ctx, l.auditIndex, doc); err != nil {
		l.logger.Warn("score history mirror failed", map[string]interface{}{
			"entryId": e.ID,
			"error":   err,
		})
	}
}

func (l *Ledger) emitHealth(ctx context.Context, source, status, message string, details map[string]interface{}) {
	if l.sink == nil {
		return
	}
	err := l.sink.Emit(ctx, models.HealthEvent{
		Source:    source,
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: l.now().UTC(),
	})
	if err != nil {
		l.logger.Warn("health event emit failed", map[string]interface{}{
			"source": source,
			"error":  err,
		})
	}
}

// EmitHealth exposes the health stream to callers that own the primary
// operation (score persist, generation run).
func (l *Ledger) EmitHealth(ctx context.Context, source, status, message string, details map[string]interface{}) {
	l.emitHealth(ctx, source, status, message, details)
}

func computeDelta(previous *float64, current float64) *float64 {
	if previous == nil {
		return nil
	}
	d := math.Round((current-*previous)*100) / 100
	return &d
}
