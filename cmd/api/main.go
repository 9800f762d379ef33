package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaymate/chatbatch/cmd/mainconfig"
	"github.com/relaymate/chatbatch/internal/api/router"
	"github.com/relaymate/chatbatch/internal/chat"
	appconfig "github.com/relaymate/chatbatch/internal/config"
	"github.com/relaymate/chatbatch/internal/ingest"
	"github.com/relaymate/chatbatch/internal/observability/metrics"
	"github.com/relaymate/chatbatch/internal/reconcile"
	"github.com/relaymate/chatbatch/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chatbatch API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	store := chat.NewStore(pool)

	// In dev the reconcile queue lives in-process and a worker drains it here.
	// In production the API only publishes; cmd/batch-worker consumes.
	var (
		queue          reconcile.Queue
		embeddedWorker *reconcile.Worker
	)
	if cfg.UseMemoryQueue {
		queue = reconcile.NewMemoryQueue(100)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue = reconcile.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ReconcileQueueURL)
	}

	scheduler := reconcile.NewScheduler(queue, cfg.ReconcileDelay, logger)
	service := ingest.NewService(store, scheduler, logger)
	handler := ingest.NewHandler(service, metrics.NewWebhookMetrics(nil), logger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if cfg.UseMemoryQueue {
		checker := reconcile.NewChecker(store, logger)
		embeddedWorker = reconcile.NewWorker(checker, queue, logger,
			reconcile.WithWorkerCount(1),
			reconcile.WithReceiveWaitSeconds(1),
			reconcile.WithMetrics(metrics.NewReconcileMetrics(nil)),
		)
		embeddedWorker.Start(workerCtx)
		logger.Info("embedded reconcile worker started (memory queue)")
	}

	r := router.New(&router.Config{
		IngestHandler:  handler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	stopWorker()
	if embeddedWorker != nil {
		embeddedWorker.Wait()
	}

	logger.Info("server stopped")
}
