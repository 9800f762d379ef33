package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/chat"
	"github.com/relaymate/chatbatch/pkg/logging"
)

// Outcome is the terminal result of one reconciliation check. Exactly one
// outcome happens per check.
type Outcome string

const (
	// OutcomeBound: the expected conversation exists now and the orphan was
	// attached to it.
	OutcomeBound Outcome = "bound"
	// OutcomeDeleted: the orphan could not be resolved and was removed.
	OutcomeDeleted Outcome = "deleted"
	// OutcomeNoop: a concurrent path already bound the message.
	OutcomeNoop Outcome = "noop"
	// OutcomeMissing: the message row vanished between scheduling and check.
	OutcomeMissing Outcome = "missing"
	// OutcomeError: an unexpected failure; the message is left untouched.
	OutcomeError Outcome = "error"
)

// CheckerStore is the persistence surface the checker needs. *chat.Store
// satisfies it.
type CheckerStore interface {
	WithTx(ctx context.Context, fn func(q chat.Querier) error) error
	GetMessageForUpdate(ctx context.Context, q chat.Querier, id uuid.UUID) (*chat.Message, error)
	GetConversation(ctx context.Context, q chat.Querier, id uuid.UUID) (*chat.Conversation, error)
	BindMessage(ctx context.Context, q chat.Querier, messageID, conversationID uuid.UUID) error
	DeleteMessage(ctx context.Context, q chat.Querier, id uuid.UUID) error
}

// Checker resolves orphaned messages against their expected conversation. The
// whole read-modify-write runs inside one transaction holding a row-level
// exclusive lock on the message, so concurrent checks cannot double-bind or
// double-delete.
type Checker struct {
	store  CheckerStore
	logger *logging.Logger
}

func NewChecker(store CheckerStore, logger *logging.Logger) *Checker {
	if store == nil {
		panic("reconcile: checker store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{store: store, logger: logger}
}

// Check runs the single scheduled reconciliation for a message. Unexpected
// errors are logged and reported as OutcomeError with the message untouched;
// the check is not retried.
func (c *Checker) Check(ctx context.Context, messageID uuid.UUID) Outcome {
	outcome, err := c.check(ctx, messageID)
	if err != nil {
		c.logger.Error("reconciliation check failed; message left unresolved",
			"message_id", messageID,
			"error", err,
		)
		return OutcomeError
	}
	return outcome
}

func (c *Checker) check(ctx context.Context, messageID uuid.UUID) (Outcome, error) {
	outcome := OutcomeError
	err := c.store.WithTx(ctx, func(q chat.Querier) error {
		msg, err := c.store.GetMessageForUpdate(ctx, q, messageID)
		if err != nil {
			if errors.Is(err, chat.ErrMessageNotFound) {
				c.logger.Info("message gone before reconciliation check", "message_id", messageID)
				outcome = OutcomeMissing
				return nil
			}
			return err
		}

		if msg.ConversationID != nil {
			c.logger.Info("message already bound to a conversation",
				"message_id", messageID,
				"conversation_id", *msg.ConversationID,
			)
			outcome = OutcomeNoop
			return nil
		}

		if msg.ExpectedConversationID == nil {
			// Should not happen: orphans are created with an expected id.
			c.logger.Warn("orphaned message has no expected conversation, deleting", "message_id", messageID)
			if err := c.store.DeleteMessage(ctx, q, messageID); err != nil {
				return err
			}
			outcome = OutcomeDeleted
			return nil
		}

		expectedID := *msg.ExpectedConversationID
		_, err = c.store.GetConversation(ctx, q, expectedID)
		switch {
		case err == nil:
			if err := c.store.BindMessage(ctx, q, messageID, expectedID); err != nil {
				return err
			}
			c.logger.Info("orphaned message bound to conversation",
				"message_id", messageID,
				"conversation_id", expectedID,
			)
			outcome = OutcomeBound
			return nil
		case errors.Is(err, chat.ErrConversationNotFound):
			c.logger.Warn("expected conversation never arrived, deleting orphaned message",
				"message_id", messageID,
				"expected_conversation_id", expectedID,
			)
			if err := c.store.DeleteMessage(ctx, q, messageID); err != nil {
				return err
			}
			outcome = OutcomeDeleted
			return nil
		default:
			return fmt.Errorf("reconcile: lookup expected conversation: %w", err)
		}
	})
	if err != nil {
		return OutcomeError, err
	}
	return outcome, nil
}
