package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iowathe3rd/admissions-agent/internal/chat"
	"github.com/iowathe3rd/admissions-agent/internal/rag"
	"github.com/iowathe3rd/admissions-agent/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// asker is the interface handleAsk calls to answer a question.
// *chat.Service satisfies it; tests inject a fake.
type asker interface {
	Ask(ctx context.Context, userID, question string) chat.Answer
}

// Deps bundles the services the HTTP server exposes.
type Deps struct {
	// Chat answers questions (POST /api/ask).
	Chat asker
	// Retriever serves raw context lookups (GET /api/search).
	Retriever rag.Retriever
	// Index reports indexed chunk counts (GET /api/stats). May be nil.
	Index rag.VectorStore
	// Interactions reports interaction counts (GET /api/stats). May be nil.
	Interactions store.InteractionStore
}

// Server is the HTTP server exposing the admissions assistant.
type Server struct {
	// deps holds the wired services.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// UserID optionally identifies the asker for the interaction log.
	UserID string `json:"user_id,omitempty"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Answer is the generated (or fallback) answer text.
	Answer string `json:"answer"`
	// Contexts are the knowledge base excerpts the answer was grounded on.
	Contexts []rag.Context `json:"contexts"`
}

// searchResponse is the JSON response for GET /api/search.
type searchResponse struct {
	// Query is the query that was searched.
	Query string `json:"query"`
	// Contexts are the matches above the relevance threshold, best first.
	Contexts []rag.Context `json:"contexts"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	// IndexedChunks is the number of chunks in the vector index.
	IndexedChunks uint64 `json:"indexed_chunks"`
	// Interactions is the number of recorded question/answer interactions.
	Interactions int64 `json:"interactions"`
}
