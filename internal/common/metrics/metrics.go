// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_scores_computed_total",
			Help: "Total number of profile strength scores computed",
		},
		[]string{"entity_type", "vertical"},
	)

	LedgerWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trust_ledger_write_failures_total",
			Help: "Score history writes that failed after a valid score",
		},
	)

	SyntheticEntitiesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synthetic_entities_generated_total",
			Help: "Total synthetic entities written, by generation mode",
		},
		[]string{"mode"},
	)

	SyntheticBatchesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "synthetic_batches_failed_total",
			Help: "Generation batches that failed to insert",
		},
	)

	DriftWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "synthetic_drift_warnings_total",
			Help: "Stress sessions whose baseline drift exceeded the threshold",
		},
	)

	SessionsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "synthetic_sessions_purged_total",
			Help: "Expired synthetic sessions removed by the purge worker",
		},
	)
)
