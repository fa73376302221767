// internal/workers/synthetic/generate-population/handler.go
package generatepopulation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"trustscore-workers/internal/common/errors"
	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/common/metrics"
	"trustscore-workers/internal/models"
	"trustscore-workers/internal/synthetic/generator"
	"trustscore-workers/pkg/registry"
)

const (
	TaskType = "generate-population"
)

type Handler struct {
	config       *Config
	generator    *generator.Generator
	task         *registry.Task
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler wires the generator behind the task registry's input
// schema. task may be nil when the registry has no entry for this
// worker; schema validation is skipped then.
func NewHandler(config *Config, gen *generator.Generator, task *registry.Task, log logger.Logger) *Handler {
	workerLog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		generator:    gen,
		task:         task,
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

	output, err := h.execute(ctx, []byte(job.Variables))
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

func (h *Handler) execute(ctx context.Context, raw []byte) (*Output, error) {
	if h.task != nil {
		if err := h.task.ValidateInput(raw); err != nil {
			return nil, errors.NewGenerationValidationFailedError(err.Error())
		}
	}

	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.NewGenerationValidationFailedError(
			fmt.Sprintf("parse input: %v", err))
	}

	res, err := h.generator.Generate(ctx, generator.Request{
		Industry:               in.Industry,
		SubIndustry:            in.SubIndustry,
		RoleTitle:              in.RoleTitle,
		OrganizationID:         in.OrganizationID,
		CandidateCount:         in.CandidateCount,
		Mode:                   models.GenerationMode(in.Mode),
		BehavioralPreset:       in.BehavioralPreset,
		VariationProfile:       in.VariationProfile,
		FraudClusterSimulation: in.FraudClusterSimulation,
		CreatedBy:              in.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		SessionID:      res.SessionID,
		Mode:           string(res.Mode),
		ExpiresAt:      res.ExpiresAt,
		RequestedCount: res.RequestedCount,
		GeneratedCount: res.GeneratedCount,
		EntityIDs:      res.EntityIDs,
		Batches:        res.Batches,
		Degraded:       res.Degraded,
		Baseline:       res.Baseline,
	}
	if res.Baseline != nil {
		drift := res.Baseline.DriftWarning
		out.DriftWarning = &drift
	}
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

// Execute exposes the core path for tests.
func (h *Handler) Execute(ctx context.Context, raw []byte) (*Output, error) {
	return h.execute(ctx, raw)
}
