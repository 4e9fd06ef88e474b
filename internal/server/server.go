// Package server exposes the admissions assistant over HTTP: question
// answering, raw context search, index statistics, health and readiness
// probes, and Prometheus metrics.
//
// Middleware order, outermost first: request logging (request_id injection),
// then per-route auth, rate limiting, and metrics instrumentation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iowathe3rd/admissions-agent/internal/logging"
	"github.com/iowathe3rd/admissions-agent/internal/rag"
)

// Default server configuration values. The loopback bind is intentional:
// exposing the server beyond localhost requires an explicit host.
const (
	defaultHost            = "127.0.0.1"
	defaultPort            = 8080
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// maxAskBodyBytes bounds the /api/ask request body to keep a single request
// from holding excessive memory.
const maxAskBodyBytes = 64 << 10

// New constructs a Server from the given dependencies and configuration,
// applying defaults for any zero-valued fields. It registers all Prometheus
// metrics against reg; pass prometheus.NewRegistry() in tests to keep them
// hermetic, or nil to create a fresh registry with the standard Go and
// process collectors attached.
func New(deps Deps, cfg *Config, reg *prometheus.Registry) (*Server, error) {
	if deps.Chat == nil {
		return nil, errors.New("server: chat service is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "server"))

	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(reg),
	}

	if cfg.APIKey == "" {
		log.Warn("API authentication disabled: no API key configured")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	// protected wraps an API handler with auth, rate limiting, and metrics.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.metrics.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", protected("ask", s.handleAsk))
	mux.Handle("GET /api/search", protected("search", s.handleSearch))
	mux.Handle("GET /api/stats", protected("stats", s.handleStats))
	mux.Handle("GET /api/health", s.metrics.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.metrics.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root HTTP handler, including all middleware.
// Used by tests to drive requests through httptest without a live listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		if err != nil {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down", slog.Duration("timeout", s.cfg.ShutdownTimeout))
	s.stopRL()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// handleAsk answers a question via the chat service. It never fails the
// request for pipeline reasons: retrieval and generation failures surface
// as fallback answer text, so the only error statuses are for bad input.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = clientIP(r)
	}

	start := time.Now()
	answer := s.deps.Chat.Ask(r.Context(), userID, req.Question)
	elapsed := time.Since(start)

	outcome := "answered"
	if len(answer.Contexts) == 0 {
		outcome = "fallback"
	}
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
	s.metrics.retrievedContexts.Observe(float64(len(answer.Contexts)))

	log.Info("question answered",
		slog.String("outcome", outcome),
		slog.Int("contexts", len(answer.Contexts)),
		slog.Duration("duration", elapsed),
	)

	writeJSON(w, http.StatusOK, askResponse{
		Answer:   answer.Text,
		Contexts: ensureContexts(answer.Contexts),
	})
}

// handleSearch runs retrieval for the "q" query parameter and returns the
// contexts above the relevance threshold without generating an answer.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Retriever == nil {
		http.Error(w, "search is not available", http.StatusServiceUnavailable)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "query parameter q is required", http.StatusBadRequest)
		return
	}

	contexts := s.deps.Retriever.Retrieve(r.Context(), query)

	writeJSON(w, http.StatusOK, searchResponse{
		Query:    query,
		Contexts: ensureContexts(contexts),
	})
}

// handleStats reports the size of the vector index and the interaction log.
// Unavailable backends report zero rather than failing the request.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var resp statsResponse

	if s.deps.Index != nil {
		n, err := s.deps.Index.Count(r.Context())
		if err != nil {
			log.Warn("stats: index count failed", slog.String("error", err.Error()))
		} else {
			resp.IndexedChunks = n
		}
	}

	if s.deps.Interactions != nil {
		n, err := s.deps.Interactions.Count(r.Context())
		if err != nil {
			log.Warn("stats: interaction count failed", slog.String("error", err.Error()))
		} else {
			resp.Interactions = n
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ensureContexts normalizes a nil context slice to an empty one so JSON
// responses always carry an array, never null.
func ensureContexts(cs []rag.Context) []rag.Context {
	if cs == nil {
		return []rag.Context{}
	}
	return cs
}
