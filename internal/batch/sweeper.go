package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/chat"
	"github.com/relaymate/chatbatch/pkg/logging"
)

// SweepStore is the read surface the sweeper needs. *chat.Store satisfies it.
type SweepStore interface {
	ListConversationIDs(ctx context.Context) ([]uuid.UUID, error)
	ListUnprocessedInbound(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error)
}

// PartitionSynthesizer turns one partition into a persisted digest.
type PartitionSynthesizer interface {
	Synthesize(ctx context.Context, conversationID uuid.UUID, messages []chat.Message) (string, error)
}

// Sweeper runs one full windowing + synthesis pass over every conversation.
// Re-running with no new inbound activity yields an empty result: the
// partitioning source is always the processed=false subset.
type Sweeper struct {
	store  SweepStore
	synth  PartitionSynthesizer
	window time.Duration
	logger *logging.Logger
}

func NewSweeper(store SweepStore, synth PartitionSynthesizer, window time.Duration, logger *logging.Logger) *Sweeper {
	if store == nil {
		panic("batch: sweep store cannot be nil")
	}
	if synth == nil {
		panic("batch: synthesizer cannot be nil")
	}
	if window <= 0 {
		window = DefaultGroupWindow
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{store: store, synth: synth, window: window, logger: logger}
}

// Run sweeps all conversations and returns the digest of every successful
// synthesis. A failure in one conversation's partition is logged and does not
// abort the sweep for the others.
func (s *Sweeper) Run(ctx context.Context) ([]string, error) {
	conversationIDs, err := s.store.ListConversationIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch: sweep: %w", err)
	}

	var digests []string
	for _, convID := range conversationIDs {
		digests = append(digests, s.sweepConversation(ctx, convID)...)
	}
	return digests, nil
}

func (s *Sweeper) sweepConversation(ctx context.Context, convID uuid.UUID) []string {
	messages, err := s.store.ListUnprocessedInbound(ctx, convID)
	if err != nil {
		s.logger.Error("sweep: failed to load backlog", "conversation_id", convID, "error", err)
		return nil
	}
	if len(messages) == 0 {
		return nil
	}

	parts := Partition(messages, s.window)

	var digests []string
	for _, partition := range [][]chat.Message{parts.Isolated, parts.Grouped()} {
		if len(partition) == 0 {
			continue
		}
		digest, err := s.synth.Synthesize(ctx, convID, partition)
		if err != nil {
			s.logger.Error("sweep: failed to synthesize partition",
				"conversation_id", convID,
				"partition_size", len(partition),
				"error", err,
			)
			continue
		}
		digests = append(digests, digest)
	}
	return digests
}
