package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/observability/metrics"
	"github.com/relaymate/chatbatch/pkg/logging"
)

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 10
	defaultBatchSize   = 5
)

// Worker consumes scheduled reconciliation jobs from the queue and runs the
// check for each. Every job gets exactly one check: the queue message is
// deleted whatever the outcome, failed checks are logged, not retried.
type Worker struct {
	checker *Checker
	queue   Queue
	metrics *metrics.ReconcileMetrics
	logger  *logging.Logger

	workers          int
	receiveWaitSecs  int
	receiveBatchSize int

	wg sync.WaitGroup
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll wait.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(w *Worker) {
		if seconds >= 0 {
			w.receiveWaitSecs = seconds
		}
	}
}

// WithReceiveBatchSize sets how many jobs one receive may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size > 0 {
			w.receiveBatchSize = size
		}
	}
}

// WithMetrics attaches reconciliation metrics.
func WithMetrics(m *metrics.ReconcileMetrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(checker *Checker, queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if checker == nil {
		panic("reconcile: checker cannot be nil")
	}
	if queue == nil {
		panic("reconcile: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	w := &Worker{
		checker:          checker,
		queue:            queue,
		logger:           logger,
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches consumer goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("reconcile worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("reconcile worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.receiveBatchSize, w.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive reconcile jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg QueueMessage) {
	// Delete regardless of outcome: each orphan gets its single scheduled check.
	defer w.deleteMessage(msg.ReceiptHandle)

	var job checkJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode reconcile job", "error", err)
		return
	}

	messageID, err := uuid.Parse(job.MessageID)
	if err != nil {
		w.logger.Error("reconcile job carries invalid message id", "message_id", job.MessageID, "error", err)
		return
	}

	outcome := w.checker.Check(ctx, messageID)
	w.metrics.ObserveCheck(string(outcome))
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Warn("failed to delete reconcile job from queue", "error", err)
	}
}
