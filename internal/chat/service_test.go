package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iowathe3rd/admissions-agent/internal/generation"
	"github.com/iowathe3rd/admissions-agent/internal/rag"
	"github.com/iowathe3rd/admissions-agent/internal/store"
)

// fakeRetriever returns canned contexts.
type fakeRetriever struct {
	contexts []rag.Context
}

func (f *fakeRetriever) Retrieve(context.Context, string) []rag.Context {
	return f.contexts
}

// echoModel answers with the prompt it received so tests can inspect what
// reached the model.
type echoModel struct {
	err error
}

func (m *echoModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(in[len(in)-1].Content, nil), nil
}

func (m *echoModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

// recordingStore captures the last recorded interaction.
type recordingStore struct {
	userID, question, answer, contextsJSON string
	records                                int
	err                                    error
}

func (r *recordingStore) Record(_ context.Context, userID, question, answer, contextsJSON string) error {
	if r.err != nil {
		return r.err
	}
	r.userID, r.question, r.answer, r.contextsJSON = userID, question, answer, contextsJSON
	r.records++
	return nil
}

func (r *recordingStore) Recent(context.Context, int) ([]store.Interaction, error) { return nil, nil }
func (r *recordingStore) Count(context.Context) (int64, error)                     { return int64(r.records), nil }
func (r *recordingStore) Close() error                                             { return nil }

func newTestService(t *testing.T, retriever rag.Retriever, m model.BaseChatModel, s store.InteractionStore) *Service {
	t.Helper()
	svc, err := NewService(retriever, generation.NewGateway(m, nil), s, nil)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestAsk_GroundedAnswer(t *testing.T) {
	t.Parallel()

	contexts := []rag.Context{{Source: "faqs", Text: "Приём стартует 20 июня.", Score: 0.9}}
	rec := &recordingStore{}
	svc := newTestService(t, &fakeRetriever{contexts: contexts}, &echoModel{}, rec)

	answer := svc.Ask(context.Background(), "12345", "Когда начинается приём?")

	// The echo model returns the prompt: it must carry the question and the
	// retrieved context.
	if !strings.Contains(answer.Text, "Когда начинается приём?") {
		t.Error("prompt missing the question")
	}
	if !strings.Contains(answer.Text, "Приём стартует 20 июня.") {
		t.Error("prompt missing the retrieved context")
	}
	if len(answer.Contexts) != 1 {
		t.Errorf("answer contexts = %d, want 1", len(answer.Contexts))
	}

	if rec.records != 1 {
		t.Fatalf("expected 1 recorded interaction, got %d", rec.records)
	}
	if rec.userID != "12345" || rec.question != "Когда начинается приём?" {
		t.Errorf("recorded %q/%q", rec.userID, rec.question)
	}
	if !strings.Contains(rec.contextsJSON, `"source":"faqs"`) {
		t.Errorf("contexts json = %q", rec.contextsJSON)
	}
}

func TestAsk_NoContextsStillAnswers(t *testing.T) {
	t.Parallel()

	rec := &recordingStore{}
	svc := newTestService(t, &fakeRetriever{}, &echoModel{}, rec)

	answer := svc.Ask(context.Background(), "u", "Есть ли общежитие?")
	if !strings.Contains(answer.Text, "Релевантного контекста в базе знаний не найдено") {
		t.Error("prompt should carry the no-context notice")
	}
	if len(answer.Contexts) != 0 {
		t.Errorf("expected no contexts, got %d", len(answer.Contexts))
	}
	if rec.contextsJSON != "[]" {
		t.Errorf("contexts json = %q, want []", rec.contextsJSON)
	}
}

func TestAsk_GenerationFailureFallsBack(t *testing.T) {
	t.Parallel()

	rec := &recordingStore{}
	svc := newTestService(t, &fakeRetriever{}, &echoModel{err: errors.New("quota")}, rec)

	answer := svc.Ask(context.Background(), "u", "q")
	if answer.Text != generation.FallbackError {
		t.Errorf("answer = %q, want error fallback", answer.Text)
	}
	// The fallback is still recorded.
	if rec.records != 1 || rec.answer != generation.FallbackError {
		t.Errorf("fallback not recorded: %+v", rec)
	}
}

func TestAsk_StoreFailureDoesNotBlockAnswer(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeRetriever{}, &echoModel{}, &recordingStore{err: errors.New("disk full")})
	if answer := svc.Ask(context.Background(), "u", "q"); answer.Text == "" {
		t.Error("answer must be produced even when recording fails")
	}
}

func TestAsk_NilStore(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeRetriever{}, &echoModel{}, nil)
	if answer := svc.Ask(context.Background(), "u", "q"); answer.Text == "" {
		t.Error("answer must be produced without an interaction store")
	}
}
