package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/chat"
	"github.com/relaymate/chatbatch/pkg/logging"
)

// SynthesizerStore is the persistence surface the synthesizer needs.
// *chat.Store satisfies it.
type SynthesizerStore interface {
	WithTx(ctx context.Context, fn func(q chat.Querier) error) error
	ConversationExists(ctx context.Context, q chat.Querier, id uuid.UUID) (bool, error)
	InsertMessage(ctx context.Context, q chat.Querier, m *chat.Message) error
	MarkProcessed(ctx context.Context, q chat.Querier, ids []uuid.UUID) error
}

// Synthesizer folds one partition of inbound messages into a single outbound
// digest message and retires the sources, atomically.
type Synthesizer struct {
	store  SynthesizerStore
	logger *logging.Logger
}

func NewSynthesizer(store SynthesizerStore, logger *logging.Logger) *Synthesizer {
	if store == nil {
		panic("batch: synthesizer store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Synthesizer{store: store, logger: logger}
}

// Synthesize creates one OUTBOUND message carrying the partition's digest and
// marks every source message processed, in a single transaction. Nothing is
// persisted when the conversation no longer exists; the caller receives
// chat.ErrConversationNotFound.
func (s *Synthesizer) Synthesize(ctx context.Context, conversationID uuid.UUID, messages []chat.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	ids := MessageIDs(messages)
	digest := BuildDigest(ids)

	err := s.store.WithTx(ctx, func(q chat.Querier) error {
		exists, err := s.store.ConversationExists(ctx, q, conversationID)
		if err != nil {
			return err
		}
		if !exists {
			return chat.ErrConversationNotFound
		}

		convID := conversationID
		outbound := &chat.Message{
			ID:             uuid.New(),
			ConversationID: &convID,
			Direction:      chat.DirectionOutbound,
			Content:        digest,
			EventTimestamp: time.Now().UTC(),
			// Synthesized messages are born processed so they never feed a
			// later windowing pass.
			Processed: true,
		}
		if err := s.store.InsertMessage(ctx, q, outbound); err != nil {
			return err
		}
		return s.store.MarkProcessed(ctx, q, ids)
	})
	if err != nil {
		return "", fmt.Errorf("batch: synthesize partition for conversation %s: %w", conversationID, err)
	}

	s.logger.Info("synthesized outbound digest",
		"conversation_id", conversationID,
		"source_messages", len(ids),
	)
	return digest, nil
}
