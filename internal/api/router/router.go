package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/relaymate/chatbatch/internal/ingest"
)

// Config holds router configuration
type Config struct {
	IngestHandler  *ingest.Handler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", cfg.IngestHandler.HealthCheck)
	r.Post("/webhook", cfg.IngestHandler.Webhook)
	r.Get("/conversations/{conversationID}", cfg.IngestHandler.ConversationDetail)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
