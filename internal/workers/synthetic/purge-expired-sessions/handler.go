// internal/workers/synthetic/purge-expired-sessions/handler.go
package purgeexpiredsessions

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"trustscore-workers/internal/common/errors"
	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/common/metrics"
)

const (
	TaskType = "purge-expired-sessions"
)

type Handler struct {
	config       *Config
	db           *sql.DB
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	workerLog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		errorHandler: errors.NewErrorHandler(workerLog),
		logger:       workerLog,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey": job.Key,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode(err)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.completeJob(ctx, client, job, output)
}

func errorCode(err error) string {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return "INTERNAL_ERROR"
}

// execute destroys every expired session with all rows it owns. Owned
// rows go first so a failure partway through never leaves orphans that
// a later sweep cannot find; re-running on an already-clean store is a
// no-op.
func (h *Handler) execute(ctx context.Context) (*Output, error) {
	cutoff := h.now().UTC()
	out := &Output{}

	steps := []struct {
		count *int64
		query string
	}{
		{&out.PurgedVectors, `
			DELETE FROM behavioral_vectors
			WHERE session_id IN (SELECT id FROM synthetic_sessions WHERE expires_at <= $1)`},
		{&out.PurgedScores, `
			DELETE FROM profile_scores
			WHERE entity_type = 'synthetic-profile' AND entity_id IN (
				SELECT id FROM synthetic_entities WHERE session_id IN (
					SELECT id FROM synthetic_sessions WHERE expires_at <= $1))`},
		{&out.PurgedEntities, `
			DELETE FROM synthetic_entities
			WHERE session_id IN (SELECT id FROM synthetic_sessions WHERE expires_at <= $1)`},
		{&out.PurgedBaselines, `
			DELETE FROM aggregate_baselines
			WHERE session_id IN (SELECT id FROM synthetic_sessions WHERE expires_at <= $1)`},
		{nil, `
			DELETE FROM baseline_snapshots
			WHERE session_id IN (SELECT id FROM synthetic_sessions WHERE expires_at <= $1)`},
		{&out.PurgedSessions, `
			DELETE FROM synthetic_sessions WHERE expires_at <= $1`},
	}

	for _, step := range steps {
		res, err := h.db.ExecContext(ctx, step.query, cutoff)
		if err != nil {
			return nil, errors.NewSessionPurgeFailedError(fmt.Errorf("purge step: %w", err))
		}
		if step.count != nil {
			n, _ := res.RowsAffected()
			*step.count += n
		}
	}

	metrics.SessionsPurged.Add(float64(out.PurgedSessions))
	h.logger.Info("purge sweep complete", map[string]interface{}{
		"sessions": out.PurgedSessions,
		"entities": out.PurgedEntities,
		"vectors":  out.PurgedVectors,
	})
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

// Execute exposes the core path for tests and the background sweep.
func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	return h.execute(ctx)
}
