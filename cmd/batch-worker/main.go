package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/relaymate/chatbatch/cmd/mainconfig"
	"github.com/relaymate/chatbatch/internal/batch"
	"github.com/relaymate/chatbatch/internal/chat"
	appconfig "github.com/relaymate/chatbatch/internal/config"
	"github.com/relaymate/chatbatch/internal/observability/metrics"
	"github.com/relaymate/chatbatch/internal/reconcile"
	"github.com/relaymate/chatbatch/internal/runlog"
	"github.com/relaymate/chatbatch/internal/worker/sweep"
	"github.com/relaymate/chatbatch/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chatbatch worker",
		"env", cfg.Env,
		"sweep_interval", cfg.SweepInterval.String(),
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

	synthesizer := batch.NewSynthesizer(store, logger)
	sweeper := batch.NewSweeper(store, synthesizer, cfg.GroupWindow, logger)

	sweepOpts := []sweep.Option{
		sweep.WithMetrics(metrics.NewSweepMetrics(nil)),
	}
	if cfg.SweepLockEnabled && cfg.RedisAddr != "" {
		redisOpts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		lock := batch.NewRedisSweepLock(redis.NewClient(redisOpts), cfg.SweepLockTTL)
		sweepOpts = append(sweepOpts, sweep.WithLock(lock))
	}

	var reconcileWorker *reconcile.Worker
	if cfg.UseMemoryQueue {
		// Dev mode: the API binary owns the in-process queue and its worker.
		logger.Info("memory queue configured, reconcile consumer disabled in this binary")
	} else {
		awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}

		if cfg.SweepRunsTable != "" {
			journal := runlog.NewStore(dynamodb.NewFromConfig(awsConfig), cfg.SweepRunsTable, logger)
			sweepOpts = append(sweepOpts, sweep.WithJournal(journal))
		}

		queue := reconcile.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.ReconcileQueueURL)
		checker := reconcile.NewChecker(store, logger)
		reconcileWorker = reconcile.NewWorker(checker, queue, logger,
			reconcile.WithWorkerCount(cfg.WorkerCount),
			reconcile.WithMetrics(metrics.NewReconcileMetrics(nil)),
		)
	}

	sweepWorker := sweep.NewWorker(sweeper, cfg.SweepInterval, logger, sweepOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sweepWorker.Start(runCtx)
	if reconcileWorker != nil {
		reconcileWorker.Start(runCtx)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down chatbatch worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		sweepWorker.Wait()
		if reconcileWorker != nil {
			reconcileWorker.Wait()
		}
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("chatbatch worker stopped")
	case <-doneCtx.Done():
		logger.Error("chatbatch worker shutdown timed out", "error", doneCtx.Err())
	}
}
