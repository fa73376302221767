// internal/workers/scoring/compute-profile-score/handler.go
package computeprofilescore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"trustscore-workers/internal/common/errors"
	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/common/metrics"
	"trustscore-workers/internal/ledger"
	"trustscore-workers/internal/models"
	"trustscore-workers/internal/scoring/engine"
	"trustscore-workers/internal/scoring/input"
	"trustscore-workers/internal/scoring/store"
)

const (
	TaskType = "compute-profile-score"
)

// ScoreCache keeps the latest breakdown per entity hot for dashboard
// reads. Cache writes are best effort.
type ScoreCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Handler struct {
	config       *Config
	engine       *engine.Engine
	realBuilder  *input.RealBuilder
	synthBuilder *input.SyntheticBuilder
	scores       *store.Store
	ledger       *ledger.Ledger
	cache        ScoreCache
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(
	config *Config,
	eng *engine.Engine,
	realBuilder *input.RealBuilder,
	synthBuilder *input.SyntheticBuilder,
	scores *store.Store,
	led *ledger.Ledger,
	cache ScoreCache,
	log logger.Logger,
) *Handler {
	workerLog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       eng,
		realBuilder:  realBuilder,
		synthBuilder: synthBuilder,
		scores:       scores,
		ledger:       led,
		cache:        cache,
		errorHandler: errors.NewErrorHandler(workerLog),
		logger:       workerLog,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var in Input
	if err := json.Unmarshal([]byte(job.Variables), &in); err != nil {
		parseErr := errors.NewInputBuildFailedError(fmt.Errorf("parse input: %w", err))
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(parseErr.Code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, parseErr)
		return
	}

	output, err := h.execute(ctx, &in)
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

func (h *Handler) execute(ctx context.Context, in *Input) (*Output, error) {
	entityType, err := parseEntityType(in.EntityType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.EntityID) == "" {
		return nil, errors.NewInputBuildFailedError(fmt.Errorf("entityId is required"))
	}

	var profileInput models.ProfileInput
	if in.ProfileInput != nil {
		profileInput = *in.ProfileInput
	} else {
		profileInput, err = h.buildInput(ctx, entityType, in.EntityID)
		if err != nil {
			return nil, err
		}
	}

	previous, err := h.scores.Previous(ctx, entityType, in.EntityID)
	if err != nil {
		return nil, errors.NewScorePersistFailedError(err)
	}

	breakdown := h.engine.Score(profileInput, in.Vertical)
	if err := h.scores.Upsert(ctx, entityType, in.EntityID, breakdown); err != nil {
		return nil, errors.NewScorePersistFailedError(err)
	}
	metrics.ScoresComputed.WithLabelValues(string(entityType), in.Vertical).Inc()

	reason := models.ReasonRescore
	if previous == nil {
		reason = models.ReasonInitialScore
	}
	var triggeredBy *string
	if in.TriggeredBy != "" {
		triggeredBy = &in.TriggeredBy
	}
	audit := h.ledger.Record(ctx, entityType, in.EntityID, previous,
		float64(breakdown.TotalScore), reason, triggeredBy)

	h.cacheBreakdown(ctx, entityType, in.EntityID, breakdown)

	return &Output{
		EntityType:    string(entityType),
		EntityID:      in.EntityID,
		TotalScore:    breakdown.TotalScore,
		Breakdown:     breakdown,
		PreviousScore: previous,
		Reason:        string(reason),
		LedgerEntryID: audit.EntryID,
		AuditFailed:   audit.LedgerError != nil,
	}, nil
}

func (h *Handler) buildInput(ctx context.Context, entityType models.EntityType, entityID string) (models.ProfileInput, error) {
	var (
		profileInput models.ProfileInput
		err          error
	)
	switch entityType {
	case models.EntityTypeRealProfile:
		profileInput, err = h.realBuilder.Build(ctx, entityID)
	case models.EntityTypeSyntheticProfile:
		profileInput, err = h.synthBuilder.Build(ctx, entityID)
	}
	if err == nil {
		return profileInput, nil
	}
	if isNotFound(err) {
		return models.ProfileInput{}, errors.NewProfileNotFoundError(entityID)
	}
	return models.ProfileInput{}, errors.NewInputBuildFailedError(err)
}

func (h *Handler) cacheBreakdown(ctx context.Context, entityType models.EntityType, entityID string, bd models.ScoreBreakdown) {
	if h.cache == nil {
		return
	}
	doc, err := json.Marshal(bd)
	if err != nil {
		return
	}
	key := cacheKey(entityType, entityID)
	if err := h.cache.Set(ctx, key, string(doc), h.config.CacheTTL); err != nil {
		h.logger.Warn("score cache write failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
}

func cacheKey(entityType models.EntityType, entityID string) string {
	return fmt.Sprintf("score:%s:%s", entityType, entityID)
}

func parseEntityType(raw string) (models.EntityType, error) {
	switch models.EntityType(raw) {
	case models.EntityTypeRealProfile:
		return models.EntityTypeRealProfile, nil
	case models.EntityTypeSyntheticProfile:
		return models.EntityTypeSyntheticProfile, nil
	default:
		return "", errors.NewInputBuildFailedError(fmt.Errorf("unknown entity type %q", raw))
	}
}

func isNotFound(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
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

// Execute exposes the core path for tests.
func (h *Handler) Execute(ctx context.Context, in *Input) (*Output, error) {
	return h.execute(ctx, in)
}
