// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trustscore-workers/internal/common/config"
	"trustscore-workers/internal/common/database"
	"trustscore-workers/internal/common/logger"
	"trustscore-workers/internal/common/observability"
	"trustscore-workers/internal/ledger"
	"trustscore-workers/internal/scoring/engine"
	"trustscore-workers/internal/scoring/input"
	"trustscore-workers/internal/scoring/store"
	"trustscore-workers/internal/synthetic/baseline"
	"trustscore-workers/internal/synthetic/generator"
	"trustscore-workers/pkg/registry"

	cps "trustscore-workers/internal/workers/scoring/compute-profile-score"
	gp "trustscore-workers/internal/workers/synthetic/generate-population"
	pes "trustscore-workers/internal/workers/synthetic/purge-expired-sessions"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Load Task Registry ---
	taskRegistry, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("task registry load failed",
			zap.String("path", cfg.Registry.Path), zap.Error(err))
	}
	zapLog.Info("Task registry loaded",
		zap.String("version", taskRegistry.Version),
		zap.Int("tasks", len(taskRegistry.Tasks)),
	)

	// --- Shared Domain Components ---
	healthSink := ledger.NewElasticHealthSink(esClient, cfg.Database.Elasticsearch.HealthIndex)
	scoreLedger := ledger.New(pg.DB, healthSink, esClient, cfg.Database.Elasticsearch.ScoreAuditIndex, log)
	scoreEngine := engine.New(cfg.Scoring.Verticals)
	scoreStore := store.New(pg.DB)
	realBuilder := input.NewRealBuilder(pg.DB, log)
	synthBuilder := input.NewSyntheticBuilder(pg.DB)
	driftDetector := baseline.NewDetector(cfg.Synthetic.DriftThresholdPercent)
	populationGen := generator.New(
		pg.DB, scoreEngine, synthBuilder, scoreStore, scoreLedger,
		driftDetector, cfg.Synthetic, log,
	)

	// --- Register Workers ---

	if cfg.Workers[cps.TaskType].Enabled {
		handler := cps.NewHandler(
			&cps.Config{
				Timeout:  time.Duration(cfg.Workers[cps.TaskType].Timeout) * time.Millisecond,
				CacheTTL: time.Duration(cfg.Scoring.CacheTTLHours) * time.Hour,
			},
			scoreEngine, realBuilder, synthBuilder, scoreStore, scoreLedger,
			redis, log,
		)
		startWorker(zeebeClient, cps.TaskType, cfg.Workers[cps.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[gp.TaskType].Enabled {
		task, ok := taskRegistry.FindByTaskType(gp.TaskType)
		if !ok {
			zapLog.Warn("no registry entry for task, input schema validation disabled",
				zap.String("taskType", gp.TaskType))
		}
		handler := gp.NewHandler(
			&gp.Config{
				Timeout: time.Duration(cfg.Workers[gp.TaskType].Timeout) * time.Millisecond,
			},
			populationGen, task, log,
		)
		startWorker(zeebeClient, gp.TaskType, cfg.Workers[gp.TaskType], handler.Handle, zapLog)
	}

	purgeHandler := pes.NewHandler(
		&pes.Config{
			Timeout: time.Duration(cfg.Workers[pes.TaskType].Timeout) * time.Millisecond,
		},
		pg.DB, log,
	)
	if cfg.Workers[pes.TaskType].Enabled {
		startWorker(zeebeClient, pes.TaskType, cfg.Workers[pes.TaskType], purgeHandler.Handle, zapLog)
	}

	// --- Background Purge Sweep ---
	// Expired sessions must disappear even when no workflow triggers the
	// purge task. The sweep interval never exceeds the session TTL.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runPurgeSweep(sweepCtx, purgeHandler, cfg.Synthetic.SessionTTLMinutes, zapLog)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stopSweep()

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func runPurgeSweep(ctx context.Context, handler *pes.Handler, ttlMinutes int, log *zap.Logger) {
	interval := time.Duration(ttlMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out, err := handler.Execute(ctx)
			if err != nil {
				log.Error("purge sweep failed", zap.Error(err))
				continue
			}
			if out.PurgedSessions > 0 {
				log.Info("purge sweep removed expired sessions",
					zap.Int64("sessions", out.PurgedSessions),
					zap.Int64("entities", out.PurgedEntities),
				)
			}
		}
	}
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
