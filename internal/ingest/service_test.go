package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/chat"
	"github.com/relaymate/chatbatch/pkg/logging"
)

type fakeServiceStore struct {
	conversations map[uuid.UUID]*chat.Conversation
	messages      map[uuid.UUID]*chat.Message
	insertErr     error
}

func newFakeServiceStore() *fakeServiceStore {
	return &fakeServiceStore{
		conversations: map[uuid.UUID]*chat.Conversation{},
		messages:      map[uuid.UUID]*chat.Message{},
	}
}

func (f *fakeServiceStore) CreateConversation(ctx context.Context, q chat.Querier, id uuid.UUID) error {
	if _, ok := f.conversations[id]; ok {
		return chat.ErrConversationExists
	}
	f.conversations[id] = &chat.Conversation{ID: id, Status: chat.StatusOpen, CreatedAt: time.Now().UTC()}
	return nil
}

func (f *fakeServiceStore) CloseConversation(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	conv, ok := f.conversations[id]
	if !ok {
		return chat.ErrConversationNotFound
	}
	if conv.Status == chat.StatusClosed {
		return chat.ErrConversationClosed
	}
	conv.Status = chat.StatusClosed
	conv.ClosedAt = &closedAt
	return nil
}

func (f *fakeServiceStore) GetConversation(ctx context.Context, q chat.Querier, id uuid.UUID) (*chat.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	return conv, nil
}

func (f *fakeServiceStore) InsertMessage(ctx context.Context, q chat.Querier, m *chat.Message) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.messages[m.ID]; ok {
		return chat.ErrMessageExists
	}
	f.messages[m.ID] = m
	return nil
}

func (f *fakeServiceStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	var out []chat.Message
	for _, m := range f.messages {
		if m.ConversationID != nil && *m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeScheduler struct {
	scheduled []uuid.UUID
	err       error
}

func (f *fakeScheduler) ScheduleCheck(ctx context.Context, messageID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, messageID)
	return nil
}

func messageEvent(convID uuid.UUID) MessageEvent {
	return MessageEvent{
		MessageID:      uuid.New(),
		ConversationID: convID,
		Content:        "hello",
		Timestamp:      time.Now().UTC(),
	}
}

func TestService_CreateInbound_BoundToOpenConversation(t *testing.T) {
	store := newFakeServiceStore()
	scheduler := &fakeScheduler{}
	svc := NewService(store, scheduler, logging.Default())

	convID := uuid.New()
	if err := svc.CreateConversation(context.Background(), convID); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	msg, err := svc.CreateInbound(context.Background(), messageEvent(convID))
	if err != nil {
		t.Fatalf("create inbound: %v", err)
	}
	if msg.ConversationID == nil || *msg.ConversationID != convID {
		t.Fatalf("expected message bound to %s", convID)
	}
	if msg.ExpectedConversationID != nil {
		t.Fatal("bound message must not carry an expected conversation id")
	}
	if len(scheduler.scheduled) != 0 {
		t.Fatal("no reconciliation check expected for a bound message")
	}
}

func TestService_CreateInbound_OrphanSchedulesCheck(t *testing.T) {
	store := newFakeServiceStore()
	scheduler := &fakeScheduler{}
	svc := NewService(store, scheduler, logging.Default())

	convID := uuid.New()
	msg, err := svc.CreateInbound(context.Background(), messageEvent(convID))
	if err != nil {
		t.Fatalf("create inbound: %v", err)
	}
	if !msg.Orphaned() {
		t.Fatalf("expected orphan, got %+v", msg)
	}
	if *msg.ExpectedConversationID != convID {
		t.Fatalf("expected conversation id %s, got %s", convID, *msg.ExpectedConversationID)
	}
	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != msg.ID {
		t.Fatalf("expected one scheduled check for %s, got %v", msg.ID, scheduler.scheduled)
	}
}

func TestService_CreateInbound_ScheduleFailureKeepsOrphan(t *testing.T) {
	store := newFakeServiceStore()
	scheduler := &fakeScheduler{err: errors.New("queue down")}
	svc := NewService(store, scheduler, logging.Default())

	msg, err := svc.CreateInbound(context.Background(), messageEvent(uuid.New()))
	if err != nil {
		t.Fatalf("create inbound: %v", err)
	}
	if _, ok := store.messages[msg.ID]; !ok {
		t.Fatal("orphan must stay persisted when scheduling fails")
	}
}

func TestService_CreateInbound_ClosedConversationRejected(t *testing.T) {
	store := newFakeServiceStore()
	svc := NewService(store, &fakeScheduler{}, logging.Default())

	convID := uuid.New()
	if err := svc.CreateConversation(context.Background(), convID); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := svc.CloseConversation(context.Background(), convID, time.Now().UTC()); err != nil {
		t.Fatalf("close conversation: %v", err)
	}

	_, err := svc.CreateInbound(context.Background(), messageEvent(convID))
	if !errors.Is(err, chat.ErrConversationClosed) {
		t.Fatalf("expected ErrConversationClosed, got %v", err)
	}
}

func TestService_CloseConversation_Twice(t *testing.T) {
	store := newFakeServiceStore()
	svc := NewService(store, &fakeScheduler{}, logging.Default())

	convID := uuid.New()
	if err := svc.CreateConversation(context.Background(), convID); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := svc.CloseConversation(context.Background(), convID, time.Now().UTC()); err != nil {
		t.Fatalf("first close: %v", err)
	}

	err := svc.CloseConversation(context.Background(), convID, time.Now().UTC())
	if !errors.Is(err, chat.ErrConversationClosed) {
		t.Fatalf("expected ErrConversationClosed on second close, got %v", err)
	}
	if store.conversations[convID].Status != chat.StatusClosed {
		t.Fatal("conversation must remain closed")
	}
}

func TestService_CreateConversation_Duplicate(t *testing.T) {
	store := newFakeServiceStore()
	svc := NewService(store, &fakeScheduler{}, logging.Default())

	convID := uuid.New()
	if err := svc.CreateConversation(context.Background(), convID); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := svc.CreateConversation(context.Background(), convID); !errors.Is(err, chat.ErrConversationExists) {
		t.Fatalf("expected ErrConversationExists, got %v", err)
	}
}
