package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaymate/chatbatch/internal/chat"
	"github.com/relaymate/chatbatch/internal/observability/metrics"
	"github.com/relaymate/chatbatch/pkg/logging"
)

var webhookTracer = otel.Tracer("chatbatch.internal.ingest")

// Handler exposes the webhook ingress and the conversation read API.
type Handler struct {
	service *Service
	metrics *metrics.WebhookMetrics
	logger  *logging.Logger
}

func NewHandler(service *Service, m *metrics.WebhookMetrics, logger *logging.Logger) *Handler {
	if service == nil {
		panic("ingest: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, metrics: m, logger: logger}
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Webhook handles POST /webhook: NEW_CONVERSATION, NEW_MESSAGE,
// CLOSE_CONVERSATION.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.logger.Warn("failed to decode webhook body", "error", err)
		h.metrics.ObserveEvent("unknown", "bad_request")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, span := webhookTracer.Start(r.Context(), "ingest.webhook",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(attribute.String("chatbatch.event_type", env.Type))

	var status string
	switch env.Type {
	case EventNewConversation:
		status = h.handleNewConversation(ctx, w, env)
	case EventNewMessage:
		status = h.handleNewMessage(ctx, w, env)
	case EventCloseConversation:
		status = h.handleCloseConversation(ctx, w, env)
	default:
		h.logger.Warn("webhook with unknown event type", "type", env.Type)
		writeError(w, http.StatusBadRequest, "unknown or missing event type")
		status = "bad_request"
	}

	h.metrics.ObserveEvent(env.Type, status)
	h.metrics.ObserveLatency(env.Type, time.Since(start).Seconds())
}

func (h *Handler) handleNewConversation(ctx context.Context, w http.ResponseWriter, env Envelope) string {
	event, err := ParseConversationEvent(env)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "bad_request"
	}

	err = h.service.CreateConversation(ctx, event.ConversationID)
	switch {
	case errors.Is(err, chat.ErrConversationExists):
		writeError(w, http.StatusConflict, "conversation already exists")
		return "conflict"
	case err != nil:
		h.logger.Error("failed to create conversation", "conversation_id", event.ConversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return "error"
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "conversation created",
		"id":      event.ConversationID.String(),
	})
	return "created"
}

func (h *Handler) handleNewMessage(ctx context.Context, w http.ResponseWriter, env Envelope) string {
	event, err := ParseMessageEvent(env)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "bad_request"
	}

	msg, err := h.service.CreateInbound(ctx, event)
	switch {
	case errors.Is(err, chat.ErrConversationClosed):
		writeError(w, http.StatusConflict, "conversation is closed")
		return "conflict"
	case errors.Is(err, chat.ErrMessageExists):
		writeError(w, http.StatusConflict, "message already exists")
		return "conflict"
	case err != nil:
		h.logger.Error("failed to create inbound message", "message_id", event.MessageID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return "error"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "message accepted for processing",
		"id":      msg.ID.String(),
	})
	return "accepted"
}

func (h *Handler) handleCloseConversation(ctx context.Context, w http.ResponseWriter, env Envelope) string {
	event, err := ParseConversationEvent(env)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "bad_request"
	}

	err = h.service.CloseConversation(ctx, event.ConversationID, event.Timestamp)
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
		return "not_found"
	case errors.Is(err, chat.ErrConversationClosed):
		// Terminal state already reached: report it, don't fail the caller.
		writeError(w, http.StatusConflict, "conversation is already closed")
		return "already_closed"
	case err != nil:
		h.logger.Error("failed to close conversation", "conversation_id", event.ConversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return "error"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "conversation closed",
		"id":      event.ConversationID.String(),
	})
	return "closed"
}

type messageView struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type conversationView struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Messages []messageView `json:"messages"`
}

// ConversationDetail handles GET /conversations/{conversationID}.
func (h *Handler) ConversationDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, messages, err := h.service.ConversationDetail(r.Context(), id)
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	case err != nil:
		h.logger.Error("failed to load conversation detail", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	view := conversationView{
		ID:       conv.ID.String(),
		Status:   string(conv.Status),
		Messages: make([]messageView, 0, len(messages)),
	}
	for _, m := range messages {
		view.Messages = append(view.Messages, messageView{
			ID:        m.ID.String(),
			Direction: string(m.Direction),
			Content:   m.Content,
			Timestamp: m.EventTimestamp.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
