package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel returns a canned message or error and records the messages
// it was called with.
type fakeChatModel struct {
	reply *schema.Message
	err   error

	gotMessages []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.gotMessages = in
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestAnswer_Success(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: schema.AssistantMessage("Приём стартует 20 июня! 📅", nil)}
	g := NewGateway(fake, nil)

	got := g.Answer(context.Background(), "Когда начинается приём?")
	if got != "Приём стартует 20 июня! 📅" {
		t.Errorf("answer = %q", got)
	}

	if len(fake.gotMessages) != 2 {
		t.Fatalf("expected 2 messages (system + user), got %d", len(fake.gotMessages))
	}
	if fake.gotMessages[0].Role != schema.System {
		t.Errorf("first message role = %v, want system", fake.gotMessages[0].Role)
	}
	if !strings.Contains(fake.gotMessages[0].Content, "приёмной комиссии") {
		t.Error("system message missing the assistant persona")
	}
	if fake.gotMessages[1].Role != schema.User {
		t.Errorf("second message role = %v, want user", fake.gotMessages[1].Role)
	}
}

func TestAnswer_ModelError(t *testing.T) {
	t.Parallel()

	g := NewGateway(&fakeChatModel{err: errors.New("rate limited")}, nil)
	if got := g.Answer(context.Background(), "q"); got != FallbackError {
		t.Errorf("answer = %q, want error fallback", got)
	}
}

func TestAnswer_EmptyCompletion(t *testing.T) {
	t.Parallel()

	tests := []*schema.Message{
		nil,
		schema.AssistantMessage("", nil),
		schema.AssistantMessage("   \n", nil),
	}
	for _, reply := range tests {
		g := NewGateway(&fakeChatModel{reply: reply}, nil)
		if got := g.Answer(context.Background(), "q"); got != FallbackEmpty {
			t.Errorf("answer for reply %+v = %q, want empty fallback", reply, got)
		}
	}
}

func TestAnswer_NoModel(t *testing.T) {
	t.Parallel()

	g := NewGateway(nil, nil)
	if g.Ready() {
		t.Error("gateway without model must not report ready")
	}
	if got := g.Answer(context.Background(), "q"); got != FallbackUnavailable {
		t.Errorf("answer = %q, want unavailable fallback", got)
	}
}
