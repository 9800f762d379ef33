package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Webhook event types.
const (
	EventNewConversation   = "NEW_CONVERSATION"
	EventNewMessage        = "NEW_MESSAGE"
	EventCloseConversation = "CLOSE_CONVERSATION"
)

const maxContentLength = 500

// ErrInvalidPayload wraps every validation failure so the handler can map the
// whole class to one response.
var ErrInvalidPayload = errors.New("ingest: invalid payload")

// Envelope is the outer webhook body; Data is decoded per event type.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ConversationData is the payload of NEW_CONVERSATION and CLOSE_CONVERSATION.
type ConversationData struct {
	ID string `json:"id"`
}

// MessageData is the payload of NEW_MESSAGE.
type MessageData struct {
	ID             string `json:"id"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}

// ConversationEvent is a validated NEW_CONVERSATION / CLOSE_CONVERSATION.
type ConversationEvent struct {
	ConversationID uuid.UUID
	Timestamp      time.Time
}

// MessageEvent is a validated NEW_MESSAGE.
type MessageEvent struct {
	MessageID      uuid.UUID
	ConversationID uuid.UUID
	Content        string
	Timestamp      time.Time
}

// ParseConversationEvent validates the envelope of a conversation lifecycle event.
func ParseConversationEvent(env Envelope) (ConversationEvent, error) {
	ts, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return ConversationEvent{}, err
	}
	var data ConversationData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ConversationEvent{}, fmt.Errorf("%w: data: %v", ErrInvalidPayload, err)
	}
	id, err := parseUUID("data.id", data.ID)
	if err != nil {
		return ConversationEvent{}, err
	}
	return ConversationEvent{ConversationID: id, Timestamp: ts}, nil
}

// ParseMessageEvent validates a NEW_MESSAGE envelope.
func ParseMessageEvent(env Envelope) (MessageEvent, error) {
	ts, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return MessageEvent{}, err
	}
	var data MessageData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return MessageEvent{}, fmt.Errorf("%w: data: %v", ErrInvalidPayload, err)
	}
	msgID, err := parseUUID("data.id", data.ID)
	if err != nil {
		return MessageEvent{}, err
	}
	convID, err := parseUUID("data.conversation_id", data.ConversationID)
	if err != nil {
		return MessageEvent{}, err
	}
	if data.Content == "" {
		return MessageEvent{}, fmt.Errorf("%w: data.content is required", ErrInvalidPayload)
	}
	if len(data.Content) > maxContentLength {
		return MessageEvent{}, fmt.Errorf("%w: data.content exceeds %d characters", ErrInvalidPayload, maxContentLength)
	}
	return MessageEvent{
		MessageID:      msgID,
		ConversationID: convID,
		Content:        data.Content,
		Timestamp:      ts,
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: timestamp is required", ErrInvalidPayload)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidPayload, err)
	}
	return ts, nil
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", ErrInvalidPayload, field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, field, err)
	}
	return id, nil
}
