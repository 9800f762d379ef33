// Package sweep drives periodic batching passes. The worker ticks on a fixed
// interval, optionally takes a cross-process lock so only one instance sweeps
// at a time, and journals each pass for auditing.
package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/batch"
	"github.com/relaymate/chatbatch/internal/observability/metrics"
	"github.com/relaymate/chatbatch/internal/runlog"
	"github.com/relaymate/chatbatch/pkg/logging"
)

const defaultInterval = 5 * time.Second

// Worker runs the sweeper on a ticker until its context is cancelled.
type Worker struct {
	sweeper  *batch.Sweeper
	interval time.Duration
	logger   *logging.Logger

	lock    batch.SweepLock
	journal runlog.Journal
	metrics *metrics.SweepMetrics

	done chan struct{}
}

// Option customizes a Worker.
type Option func(*Worker)

// WithLock serializes sweeps across processes.
func WithLock(lock batch.SweepLock) Option {
	return func(w *Worker) {
		w.lock = lock
	}
}

// WithJournal records every finished pass.
func WithJournal(journal runlog.Journal) Option {
	return func(w *Worker) {
		w.journal = journal
	}
}

// WithMetrics attaches sweep metrics.
func WithMetrics(m *metrics.SweepMetrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(sweeper *batch.Sweeper, interval time.Duration, logger *logging.Logger, opts ...Option) *Worker {
	if sweeper == nil {
		panic("sweep: sweeper cannot be nil")
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = logging.Default()
	}

	w := &Worker{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the ticker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Wait blocks until the ticker loop exits.
func (w *Worker) Wait() {
	<-w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("sweep worker started", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Worker) sweepOnce(ctx context.Context) {
	if w.lock != nil {
		ok, err := w.lock.TryLock(ctx)
		if err != nil {
			w.logger.Warn("sweep lock unavailable, running unlocked", "error", err)
		} else if !ok {
			w.logger.Debug("sweep skipped, another instance holds the lock")
			return
		} else {
			defer w.unlock()
		}
	}

	started := time.Now().UTC()
	digests, err := w.sweeper.Run(ctx)
	elapsed := time.Since(started)

	status := runlog.RunStatusOK
	if err != nil {
		status = runlog.RunStatusError
		w.logger.Error("sweep pass failed", "error", err, "duration", elapsed.String())
	} else if len(digests) > 0 {
		w.logger.Info("sweep pass produced digests", "digests", len(digests), "duration", elapsed.String())
	}

	w.metrics.ObserveRun(string(status), len(digests), elapsed.Seconds())
	w.journalRun(status, len(digests), err, started)
}

func (w *Worker) journalRun(status runlog.RunStatus, digests int, runErr error, started time.Time) {
	if w.journal == nil {
		return
	}

	run := &runlog.RunRecord{
		RunID:      uuid.NewString(),
		Status:     status,
		Digests:    digests,
		StartedAt:  started.Format(time.RFC3339Nano),
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.journal.Record(ctx, run); err != nil {
		w.logger.Warn("failed to journal sweep run", "error", err)
	}
}

func (w *Worker) unlock() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.lock.Unlock(ctx); err != nil {
		w.logger.Warn("failed to release sweep lock", "error", err)
	}
}
