package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/pkg/logging"
)

// DefaultCheckDelay is the grace period granted to an out-of-order
// conversation-creation event before an orphan is checked.
const DefaultCheckDelay = 6 * time.Second

type checkJob struct {
	MessageID string `json:"message_id"`
}

// Scheduler enqueues one delayed reconciliation check per orphaned message.
// The ingest path calls it right after persisting an orphan.
type Scheduler struct {
	queue  Queue
	delay  time.Duration
	logger *logging.Logger
}

func NewScheduler(queue Queue, delay time.Duration, logger *logging.Logger) *Scheduler {
	if queue == nil {
		panic("reconcile: queue cannot be nil")
	}
	if delay <= 0 {
		delay = DefaultCheckDelay
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{queue: queue, delay: delay, logger: logger}
}

// ScheduleCheck defers a single reconciliation check for the message.
func (s *Scheduler) ScheduleCheck(ctx context.Context, messageID uuid.UUID) error {
	body, err := json.Marshal(checkJob{MessageID: messageID.String()})
	if err != nil {
		return fmt.Errorf("reconcile: marshal check job: %w", err)
	}
	if err := s.queue.Send(ctx, string(body), s.delay); err != nil {
		return fmt.Errorf("reconcile: schedule check for message %s: %w", messageID, err)
	}
	s.logger.Info("scheduled conversation check for orphaned message",
		"message_id", messageID,
		"delay", s.delay.String(),
	)
	return nil
}
