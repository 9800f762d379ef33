package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/chat"
	"github.com/relaymate/chatbatch/pkg/logging"
)

// ServiceStore is the persistence surface the ingest service needs.
// *chat.Store satisfies it.
type ServiceStore interface {
	CreateConversation(ctx context.Context, q chat.Querier, id uuid.UUID) error
	CloseConversation(ctx context.Context, id uuid.UUID, closedAt time.Time) error
	GetConversation(ctx context.Context, q chat.Querier, id uuid.UUID) (*chat.Conversation, error)
	InsertMessage(ctx context.Context, q chat.Querier, m *chat.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error)
}

// CheckScheduler defers a reconciliation check for an orphaned message.
type CheckScheduler interface {
	ScheduleCheck(ctx context.Context, messageID uuid.UUID) error
}

// Service applies webhook events to the store. Messages whose conversation is
// unknown are persisted as orphans and handed to the reconcile scheduler.
type Service struct {
	store     ServiceStore
	scheduler CheckScheduler
	logger    *logging.Logger
}

func NewService(store ServiceStore, scheduler CheckScheduler, logger *logging.Logger) *Service {
	if store == nil {
		panic("ingest: store cannot be nil")
	}
	if scheduler == nil {
		panic("ingest: scheduler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, scheduler: scheduler, logger: logger}
}

// CreateConversation opens a new conversation. Returns
// chat.ErrConversationExists when the id is already taken.
func (s *Service) CreateConversation(ctx context.Context, id uuid.UUID) error {
	if err := s.store.CreateConversation(ctx, nil, id); err != nil {
		return err
	}
	s.logger.Info("conversation created", "conversation_id", id)
	return nil
}

// CloseConversation transitions a conversation to CLOSED. Closing twice
// returns chat.ErrConversationClosed and leaves the row closed.
func (s *Service) CloseConversation(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	if err := s.store.CloseConversation(ctx, id, closedAt); err != nil {
		return err
	}
	s.logger.Info("conversation closed", "conversation_id", id)
	return nil
}

// CreateInbound persists an inbound message. When the target conversation does
// not exist yet the message is stored unbound with ExpectedConversationID set
// and a delayed reconciliation check is scheduled. Messages for CLOSED
// conversations are rejected with chat.ErrConversationClosed.
func (s *Service) CreateInbound(ctx context.Context, event MessageEvent) (*chat.Message, error) {
	conv, err := s.store.GetConversation(ctx, nil, event.ConversationID)
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		return s.createOrphan(ctx, event)
	case err != nil:
		return nil, fmt.Errorf("ingest: create inbound: %w", err)
	}

	if conv.Status == chat.StatusClosed {
		return nil, chat.ErrConversationClosed
	}

	convID := event.ConversationID
	msg := &chat.Message{
		ID:             event.MessageID,
		ConversationID: &convID,
		Direction:      chat.DirectionInbound,
		Content:        event.Content,
		EventTimestamp: event.Timestamp,
	}
	if err := s.store.InsertMessage(ctx, nil, msg); err != nil {
		return nil, err
	}
	s.logger.Info("inbound message accepted",
		"message_id", msg.ID,
		"conversation_id", event.ConversationID,
	)
	return msg, nil
}

func (s *Service) createOrphan(ctx context.Context, event MessageEvent) (*chat.Message, error) {
	expected := event.ConversationID
	msg := &chat.Message{
		ID:                     event.MessageID,
		ConversationID:         nil,
		Direction:              chat.DirectionInbound,
		Content:                event.Content,
		EventTimestamp:         event.Timestamp,
		ExpectedConversationID: &expected,
	}
	if err := s.store.InsertMessage(ctx, nil, msg); err != nil {
		return nil, err
	}

	if err := s.scheduler.ScheduleCheck(ctx, msg.ID); err != nil {
		// The orphan stays in the store unresolved; an accepted leak, the
		// same treatment as a failed check.
		s.logger.Error("failed to schedule reconciliation check",
			"message_id", msg.ID,
			"expected_conversation_id", expected,
			"error", err,
		)
	}

	s.logger.Info("orphaned message accepted",
		"message_id", msg.ID,
		"expected_conversation_id", expected,
	)
	return msg, nil
}

// ConversationDetail loads a conversation with all of its messages.
func (s *Service) ConversationDetail(ctx context.Context, id uuid.UUID) (*chat.Conversation, []chat.Message, error) {
	conv, err := s.store.GetConversation(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return conv, messages, nil
}
