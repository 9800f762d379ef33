package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/batch"
	"github.com/relaymate/chatbatch/internal/chat"
	"github.com/relaymate/chatbatch/internal/runlog"
	"github.com/relaymate/chatbatch/pkg/logging"
)

type stubStore struct {
	mu      sync.Mutex
	convID  uuid.UUID
	backlog []chat.Message
}

func (s *stubStore) ListConversationIDs(ctx context.Context) ([]uuid.UUID, error) {
	return []uuid.UUID{s.convID}, nil
}

func (s *stubStore) ListUnprocessedInbound(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.backlog
	s.backlog = nil // a real sweep retires its sources
	return out, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(ctx context.Context, conversationID uuid.UUID, messages []chat.Message) (string, error) {
	return batch.BuildDigest(batch.MessageIDs(messages)), nil
}

type memJournal struct {
	mu   sync.Mutex
	runs []*runlog.RunRecord
}

func (j *memJournal) Record(ctx context.Context, run *runlog.RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, run)
	return nil
}

func (j *memJournal) snapshot() []*runlog.RunRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*runlog.RunRecord(nil), j.runs...)
}

type deniedLock struct {
	mu       sync.Mutex
	attempts int
}

func (l *deniedLock) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	return false, nil
}

func (l *deniedLock) Unlock(ctx context.Context) error { return nil }

func (l *deniedLock) tries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

func TestWorker_SweepsOnTickAndJournals(t *testing.T) {
	now := time.Now().UTC()
	store := &stubStore{
		convID: uuid.New(),
		backlog: []chat.Message{
			{ID: uuid.New(), Direction: chat.DirectionInbound, EventTimestamp: now},
			{ID: uuid.New(), Direction: chat.DirectionInbound, EventTimestamp: now.Add(time.Second)},
		},
	}
	sweeper := batch.NewSweeper(store, stubSynth{}, batch.DefaultGroupWindow, logging.Default())
	journal := &memJournal{}

	worker := NewWorker(sweeper, 10*time.Millisecond, logging.Default(), WithJournal(journal))

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	deadline := time.After(2 * time.Second)
	for len(journal.snapshot()) == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("timed out waiting for a journaled sweep")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	worker.Wait()

	runs := journal.snapshot()
	if runs[0].Status != runlog.RunStatusOK {
		t.Fatalf("run status = %s, want ok", runs[0].Status)
	}

	var digests int
	for _, run := range runs {
		digests += run.Digests
	}
	if digests != 1 {
		t.Fatalf("expected exactly 1 digest across runs, got %d", digests)
	}
}

func TestWorker_SkipsWhenLockHeldElsewhere(t *testing.T) {
	store := &stubStore{convID: uuid.New()}
	sweeper := batch.NewSweeper(store, stubSynth{}, batch.DefaultGroupWindow, logging.Default())
	journal := &memJournal{}
	lock := &deniedLock{}

	worker := NewWorker(sweeper, 10*time.Millisecond, logging.Default(),
		WithJournal(journal),
		WithLock(lock),
	)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	deadline := time.After(2 * time.Second)
	for lock.tries() == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("timed out waiting for a lock attempt")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	worker.Wait()

	if len(journal.snapshot()) != 0 {
		t.Fatal("no sweep should run while the lock is held elsewhere")
	}
}
