package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iowathe3rd/admissions-agent/internal/chat"
	"github.com/iowathe3rd/admissions-agent/internal/rag"
	"github.com/iowathe3rd/admissions-agent/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeChat is a test double for the chat service. It records the last call
// and returns a canned answer.
type fakeChat struct {
	// answer is returned from Ask.
	answer chat.Answer
	// lastUserID and lastQuestion capture the most recent call.
	lastUserID   string
	lastQuestion string
}

func (f *fakeChat) Ask(_ context.Context, userID, question string) chat.Answer {
	f.lastUserID = userID
	f.lastQuestion = question
	return f.answer
}

// fakeSearcher is a test double for rag.Retriever.
type fakeSearcher struct {
	// contexts is returned from Retrieve.
	contexts []rag.Context
	// lastQuery captures the most recent query.
	lastQuery string
}

func (f *fakeSearcher) Retrieve(_ context.Context, query string) []rag.Context {
	f.lastQuery = query
	return f.contexts
}

// fakeIndex is a test double for rag.VectorStore; only Count is meaningful.
type fakeIndex struct {
	// count is returned from Count.
	count uint64
	// countErr, when set, makes Count fail.
	countErr error
}

func (f *fakeIndex) Upsert(context.Context, []rag.Document, [][]float32) error { return nil }
func (f *fakeIndex) Search(context.Context, []float32, int) ([]rag.ScoredDocument, error) {
	return nil, nil
}
func (f *fakeIndex) Count(context.Context) (uint64, error) { return f.count, f.countErr }
func (f *fakeIndex) Close() error                          { return nil }

// fakeInteractions is a test double for store.InteractionStore; only Count
// is meaningful.
type fakeInteractions struct {
	// count is returned from Count.
	count int64
	// countErr, when set, makes Count fail.
	countErr error
}

func (f *fakeInteractions) Record(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeInteractions) Recent(context.Context, int) ([]store.Interaction, error) {
	return nil, nil
}
func (f *fakeInteractions) Count(context.Context) (int64, error) { return f.count, f.countErr }
func (f *fakeInteractions) Close() error                         { return nil }

// newTestServer builds a *Server with fakes and a fresh metrics registry.
func newTestServer() *Server {
	s, err := New(Deps{Chat: &fakeChat{}}, nil, prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return s
}

// newTestServerWith builds a *Server around the given dependencies.
func newTestServerWith(t *testing.T, deps Deps, cfg *Config) *Server {
	t.Helper()
	s, err := New(deps, cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

// TestNew_RequiresChat verifies that construction fails without a chat service.
func TestNew_RequiresChat(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, nil, prometheus.NewRegistry())
	if err == nil {
		t.Fatal("expected error when chat service is nil")
	}
}

// TestNew_Defaults verifies zero-valued config fields receive defaults.
func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	s, err := New(Deps{Chat: &fakeChat{}}, &Config{}, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)

	if s.cfg.Host != "127.0.0.1" {
		t.Errorf("host: expected 127.0.0.1, got %q", s.cfg.Host)
	}
	if s.cfg.Port != 8080 {
		t.Errorf("port: expected 8080, got %d", s.cfg.Port)
	}
	if s.httpServer.Addr != "127.0.0.1:8080" {
		t.Errorf("addr: expected 127.0.0.1:8080, got %q", s.httpServer.Addr)
	}
}

// ---------------------------------------------------------------------------
// POST /api/ask
// ---------------------------------------------------------------------------

// TestHandleAsk_Answered verifies a grounded answer round-trips with its
// contexts and that the provided user_id reaches the chat service.
func TestHandleAsk_Answered(t *testing.T) {
	t.Parallel()

	fc := &fakeChat{answer: chat.Answer{
		Text: "Приём документов открыт с 20 июня.",
		Contexts: []rag.Context{
			{Source: "faqs", Text: "Приём документов: 20 июня.", Score: 0.91},
		},
	}}
	s := newTestServerWith(t, Deps{Chat: fc}, nil)

	body := strings.NewReader(`{"question":"Когда начинается приём?","user_id":"tg-42"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ask", body)
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp askResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != fc.answer.Text {
		t.Errorf("answer: expected %q, got %q", fc.answer.Text, resp.Answer)
	}
	if len(resp.Contexts) != 1 || resp.Contexts[0].Source != "faqs" {
		t.Errorf("contexts: expected one from faqs, got %+v", resp.Contexts)
	}
	if fc.lastUserID != "tg-42" {
		t.Errorf("user_id: expected tg-42, got %q", fc.lastUserID)
	}
	if fc.lastQuestion != "Когда начинается приём?" {
		t.Errorf("question: got %q", fc.lastQuestion)
	}
}

// TestHandleAsk_UserIDFallsBackToIP verifies that an absent user_id is
// replaced with the client IP.
func TestHandleAsk_UserIDFallsBackToIP(t *testing.T) {
	t.Parallel()

	fc := &fakeChat{answer: chat.Answer{Text: "ok"}}
	s := newTestServerWith(t, Deps{Chat: fc}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"тест"}`))
	req.RemoteAddr = "10.1.2.3:5555"
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if fc.lastUserID != "10.1.2.3" {
		t.Errorf("expected user ID 10.1.2.3, got %q", fc.lastUserID)
	}
}

// TestHandleAsk_EmptyQuestion verifies a blank question is rejected with 400.
func TestHandleAsk_EmptyQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, Deps{Chat: &fakeChat{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"   "}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleAsk_InvalidJSON verifies malformed bodies are rejected with 400.
func TestHandleAsk_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, Deps{Chat: &fakeChat{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleAsk_FallbackContextsNeverNull verifies that a fallback answer
// with no contexts serializes contexts as [] rather than null.
func TestHandleAsk_FallbackContextsNeverNull(t *testing.T) {
	t.Parallel()

	fc := &fakeChat{answer: chat.Answer{Text: "Извините, не удалось получить ответ."}}
	s := newTestServerWith(t, Deps{Chat: fc}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"вопрос"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if !strings.Contains(w.Body.String(), `"contexts":[]`) {
		t.Errorf("expected empty contexts array in body, got %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// GET /api/search
// ---------------------------------------------------------------------------

// TestHandleSearch_OK verifies retrieval results round-trip with the query.
func TestHandleSearch_OK(t *testing.T) {
	t.Parallel()

	fr := &fakeSearcher{contexts: []rag.Context{
		{Source: "programs", Text: "Информатика, 4 года.", Score: 0.88},
	}}
	s := newTestServerWith(t, Deps{Chat: &fakeChat{}, Retriever: fr}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=информатика", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Query != "информатика" {
		t.Errorf("query: got %q", resp.Query)
	}
	if len(resp.Contexts) != 1 || resp.Contexts[0].Source != "programs" {
		t.Errorf("contexts: got %+v", resp.Contexts)
	}
	if fr.lastQuery != "информатика" {
		t.Errorf("retriever saw query %q", fr.lastQuery)
	}
}

// TestHandleSearch_MissingQuery verifies a missing q parameter yields 400.
func TestHandleSearch_MissingQuery(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, Deps{Chat: &fakeChat{}, Retriever: &fakeSearcher{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleSearch_NoRetriever verifies 503 when search is not wired.
func TestHandleSearch_NoRetriever(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, Deps{Chat: &fakeChat{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=тест", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/stats
// ---------------------------------------------------------------------------

// TestHandleStats_OK verifies both counters are reported.
func TestHandleStats_OK(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, Deps{
		Chat:         &fakeChat{},
		Index:        &fakeIndex{count: 321},
		Interactions: &fakeInteractions{count: 17},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	s.handleStats(w, req)

	var resp statsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IndexedChunks != 321 {
		t.Errorf("indexed_chunks: expected 321, got %d", resp.IndexedChunks)
	}
	if resp.Interactions != 17 {
		t.Errorf("interactions: expected 17, got %d", resp.Interactions)
	}
}

// TestHandleStats_BackendFailureReportsZero verifies a failing backend is
// reported as zero rather than failing the request.
func TestHandleStats_BackendFailureReportsZero(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, Deps{
		Chat:         &fakeChat{},
		Index:        &fakeIndex{countErr: errors.New("qdrant down")},
		Interactions: &fakeInteractions{count: 5},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	s.handleStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp statsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IndexedChunks != 0 {
		t.Errorf("indexed_chunks: expected 0 on backend failure, got %d", resp.IndexedChunks)
	}
	if resp.Interactions != 5 {
		t.Errorf("interactions: expected 5, got %d", resp.Interactions)
	}
}

// ---------------------------------------------------------------------------
// Routing and middleware chain
// ---------------------------------------------------------------------------

// TestRouting_ProtectedRouteRequiresAuth verifies the full handler chain
// rejects an unauthenticated /api/ask when an API key is configured, while
// /api/health stays open.
func TestRouting_ProtectedRouteRequiresAuth(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, Deps{Chat: &fakeChat{answer: chat.Answer{Text: "ok"}}}, &Config{
		APIKey: "secret",
	})
	h := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"тест"}`))
	req.RemoteAddr = "127.0.0.1:1000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("/api/ask without token: expected 401, got %d", w.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"тест"}`))
	req2.RemoteAddr = "127.0.0.1:1000"
	req2.Header.Set("Authorization", "Bearer secret")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Errorf("/api/ask with token: expected 200, got %d: %s", w2.Code, w2.Body.String())
	}

	req3 := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req3.RemoteAddr = "127.0.0.1:1000"
	w3 := httptest.NewRecorder()
	h.ServeHTTP(w3, req3)
	if w3.Code != http.StatusOK {
		t.Errorf("/api/health: expected 200 without auth, got %d", w3.Code)
	}
}

// TestRouting_MetricsEndpoint verifies GET /metrics serves the Prometheus
// exposition format without authentication.
func TestRouting_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, Deps{Chat: &fakeChat{}}, &Config{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:1000"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected text/plain content type, got %q", w.Header().Get("Content-Type"))
	}
}
