// Package http exposes the Parley runtime over HTTP: the WhatsApp webhook,
// a direct messaging endpoint, conversation inspection, flow validation,
// knowledge management and Prometheus metrics.
//
// Requests to /v1 routes are validated against the embedded OpenAPI document
// before they reach a handler.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/knowledge"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/runner"
)

// Conversations is the part of parley.Bot the server drives.
type Conversations interface {
	HandleMessage(ctx context.Context, in parley.Inbound) (*parley.Result, error)
	Conversation(ctx context.Context, conversationID string) (*domain.ConversationState, error)
	Messages(ctx context.Context, conversationID string, limit int) ([]domain.MessageRecord, error)
}

// Knowledge manages knowledge sources.
type Knowledge interface {
	IngestText(ctx context.Context, req knowledge.TextRequest) (*domain.KnowledgeSource, error)
	IngestURL(ctx context.Context, req knowledge.URLRequest) (*domain.KnowledgeSource, error)
	IngestFile(ctx context.Context, req knowledge.FileRequest) (*domain.KnowledgeSource, error)
	Source(ctx context.Context, sourceID string) (*domain.KnowledgeSource, error)
	Delete(ctx context.Context, sourceID string) error
	ReindexAsync(ctx context.Context, sourceID string) error
}

// Searcher runs similarity searches.
type Searcher interface {
	Retrieve(ctx context.Context, query string, sourceIDs []string, topK int, minSimilarity float64) ([]domain.ScoredChunk, error)
	ReadySources(ctx context.Context, botID string) ([]string, error)
}

// WhatsAppConfig enables the webhook routes.
type WhatsAppConfig struct {
	VerifyToken string
	AppSecret   string
}

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes = 10 << 20

// Server holds the handlers and their dependencies.
type Server struct {
	bot       Conversations
	knowledge Knowledge
	searcher  Searcher
	whatsapp  *WhatsAppConfig
	streams   *StreamManager
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	maxUpload int64

	// background webhook dispatches
	wg sync.WaitGroup
}

type Option func(*Server)

// WithKnowledge enables the knowledge routes.
func WithKnowledge(k Knowledge, s Searcher) Option {
	return func(srv *Server) {
		srv.knowledge = k
		srv.searcher = s
	}
}

// WithWhatsApp enables the WhatsApp webhook routes.
func WithWhatsApp(cfg WhatsAppConfig) Option {
	return func(srv *Server) {
		srv.whatsapp = &cfg
	}
}

// WithStreams serves GET /v1/events from sm.
func WithStreams(sm *StreamManager) Option {
	return func(srv *Server) {
		srv.streams = sm
	}
}

// WithGatherer serves GET /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(srv *Server) {
		srv.gatherer = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(srv *Server) {
		srv.logger = logger
	}
}

// WithMaxUploadBytes caps knowledge file uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(srv *Server) {
		if n > 0 {
			srv.maxUpload = n
		}
	}
}

// NewServer creates a server for bot.
func NewServer(bot Conversations, opts ...Option) *Server {
	s := &Server{
		bot:       bot,
		logger:    logging.NewNop(),
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	doc, err := Spec()
	if err != nil {
		return nil, err
	}
	validate, err := requestValidator(doc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": parley.Version})
	})
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", observability.Handler(s.gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(validate)

		r.Post("/bots/{botID}/conversations/{conversationID}/messages", s.sendMessage)
		r.Get("/conversations/{conversationID}", s.getConversation)
		r.Post("/flows/validate", s.validateFlow)

		if s.streams != nil {
			r.Get("/events", s.subscribeEvents)
		}
		if s.whatsapp != nil {
			r.Get("/webhooks/whatsapp/{botID}", s.verifyWebhook)
			r.Post("/webhooks/whatsapp/{botID}", s.receiveWebhook)
		}
		if s.knowledge != nil {
			r.Post("/knowledge/text", s.ingestText)
			r.Post("/knowledge/url", s.ingestURL)
			r.Post("/knowledge/files", s.ingestFile)
			r.Get("/knowledge/sources/{sourceID}", s.getSource)
			r.Delete("/knowledge/sources/{sourceID}", s.deleteSource)
			r.Post("/knowledge/sources/{sourceID}/embeddings", s.reindexSource)
		}
		if s.searcher != nil {
			r.Post("/knowledge/search", s.searchKnowledge)
		}
	})
	return r, nil
}

// Wait blocks until background webhook dispatches have finished or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain and input errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrFlowNotFound),
		errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedSource):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidFlow),
		errors.Is(err, domain.ErrEmptyDocument),
		errors.Is(err, runner.ErrInputTooLarge),
		errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
