package reconcile

import (
	"context"
	"time"
)

// QueueMessage is one received job envelope.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Queue carries reconciliation jobs. Send's delay is a minimum: the message
// becomes visible to consumers at or after it, with no ordering guarantee
// relative to other jobs.
type Queue interface {
	Send(ctx context.Context, body string, delay time.Duration) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}
