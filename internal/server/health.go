package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iowathe3rd/admissions-agent/internal/logging"
)

// probeTimeout bounds each dependency probe during a readiness check so a
// hung dependency cannot stall /api/ready indefinitely.
const probeTimeout = 5 * time.Second

// Pinger probes a single downstream dependency. Implementations should honor
// the context deadline and return a descriptive error on failure.
type Pinger interface {
	// Name identifies the dependency in readiness responses and logs.
	Name() string
	// Ping verifies the dependency is reachable and healthy.
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc struct {
	// PingerName identifies the dependency.
	PingerName string
	// Fn performs the probe.
	Fn func(ctx context.Context) error
}

// Name returns the dependency name.
func (p PingerFunc) Name() string { return p.PingerName }

// Ping invokes the wrapped function.
func (p PingerFunc) Ping(ctx context.Context) error { return p.Fn(ctx) }

// MultiPinger probes several dependencies under one name, failing on the
// first probe that fails.
type MultiPinger struct {
	// GroupName identifies the group in readiness responses.
	GroupName string
	// Pingers are probed in order.
	Pingers []Pinger
}

// Name returns the group name.
func (m MultiPinger) Name() string { return m.GroupName }

// Ping probes each member in order and returns the first failure, annotated
// with the failing member's name.
func (m MultiPinger) Ping(ctx context.Context) error {
	for _, p := range m.Pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// readyCheck is the per-dependency result reported by GET /api/ready.
type readyCheck struct {
	// Name is the dependency name.
	Name string `json:"name"`
	// OK reports whether the probe succeeded.
	OK bool `json:"ok"`
	// Error is the probe failure message, omitted on success.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON response for GET /api/ready.
type readyResponse struct {
	// Ready is true only if every dependency probe succeeded.
	Ready bool `json:"ready"`
	// Checks lists the individual probe results in configuration order.
	Checks []readyCheck `json:"checks,omitempty"`
}

// handleHealth is the liveness endpoint. It always returns 200 while the
// process is able to serve requests; it probes nothing.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady is the readiness endpoint. It probes every configured
// dependency with a bounded timeout and returns 503 if any probe fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true}
	for _, p := range s.pingers {
		check := readyCheck{Name: p.Name(), OK: true}

		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Ping(ctx)
		cancel()

		if err != nil {
			check.OK = false
			check.Error = err.Error()
			resp.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.String("error", err.Error()),
			)
		}
		resp.Checks = append(resp.Checks, check)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// writeJSON serializes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
