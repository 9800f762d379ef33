package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ConversationStatus is the lifecycle state of a conversation. Transitions are
// one-way: OPEN → CLOSED, never back.
type ConversationStatus string

const (
	StatusOpen   ConversationStatus = "OPEN"
	StatusClosed ConversationStatus = "CLOSED"
)

// Direction distinguishes messages received from the chat provider from
// messages this service synthesizes.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Conversation is a chat thread owning its messages.
type Conversation struct {
	ID        uuid.UUID
	Status    ConversationStatus
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// Message is a single chat event. ConversationID is nil for orphans: messages
// that arrived before their conversation existed. An orphan carries the
// conversation id it should eventually belong to in ExpectedConversationID;
// a bound message never carries one.
type Message struct {
	ID                     uuid.UUID
	ConversationID         *uuid.UUID
	Direction              Direction
	Content                string
	EventTimestamp         time.Time
	Processed              bool
	ExpectedConversationID *uuid.UUID
	CreatedAt              time.Time
}

// Orphaned reports whether the message is waiting for its conversation.
func (m *Message) Orphaned() bool {
	return m.ConversationID == nil && m.ExpectedConversationID != nil
}

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrConversationExists   = errors.New("chat: conversation already exists")
	ErrConversationClosed   = errors.New("chat: conversation already closed")
	ErrMessageNotFound      = errors.New("chat: message not found")
	ErrMessageExists        = errors.New("chat: message already exists")
)
