package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/chat"
	"github.com/relaymate/chatbatch/pkg/logging"
)

func TestWorker_ConsumesScheduledChecks(t *testing.T) {
	store := newFakeCheckerStore()
	convID := uuid.New()
	store.conversations[convID] = &chat.Conversation{ID: convID, Status: chat.StatusOpen}

	msg := orphan(convID)
	store.messages[msg.ID] = msg

	queue := NewMemoryQueue(10)
	scheduler := NewScheduler(queue, time.Millisecond, logging.Default())
	if err := scheduler.ScheduleCheck(context.Background(), msg.ID); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	checker := NewChecker(store, logging.Default())
	worker := NewWorker(checker, queue, logging.Default(),
		WithWorkerCount(1),
		WithReceiveWaitSeconds(1),
	)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	deadline := time.After(2 * time.Second)
	for store.boundCount() == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("timed out waiting for the check to run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	worker.Wait()

	got := store.message(msg.ID)
	if got == nil || got.ConversationID == nil || *got.ConversationID != convID {
		t.Fatalf("expected message bound to %s", convID)
	}
}

func TestWorker_MalformedJobIsDroppedNotRetried(t *testing.T) {
	store := newFakeCheckerStore()
	queue := NewMemoryQueue(10)

	if err := queue.Send(context.Background(), "not json", 0); err != nil {
		t.Fatalf("send: %v", err)
	}

	checker := NewChecker(store, logging.Default())
	worker := NewWorker(checker, queue, logging.Default(),
		WithWorkerCount(1),
		WithReceiveWaitSeconds(1),
	)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	worker.Wait()

	// The bad job vanished without touching the store.
	if n := store.mutationCount(); n != 0 {
		t.Fatalf("unexpected mutations: %d", n)
	}
}
