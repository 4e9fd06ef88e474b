// Package generation wraps a chat model behind a gateway that always
// produces user-facing text. Provider failures, empty completions, and a
// missing model all degrade to fixed fallback sentences instead of errors,
// so every question gets an answer.
package generation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iowathe3rd/admissions-agent/internal/rag"
)

// Fallback answers returned when the model cannot produce a usable response.
const (
	// FallbackUnavailable is returned when no chat model is configured.
	FallbackUnavailable = "Извините, сервис временно недоступен. Пожалуйста, обратитесь в приёмную комиссию напрямую."

	// FallbackEmpty is returned when the model produced an empty completion.
	FallbackEmpty = "Извините, не удалось получить ответ. Попробуйте переформулировать вопрос."

	// FallbackError is returned when the generation call failed.
	FallbackError = "Произошла ошибка при обработке запроса. Пожалуйста, попробуйте позже или обратитесь в приёмную комиссию."
)

// Gateway turns prompts into answers via a chat model. It is safe for
// concurrent use.
type Gateway struct {
	// model is the underlying chat model; nil means the provider failed to
	// initialise and every call falls back.
	model model.BaseChatModel

	// log is the structured logger for generation diagnostics.
	log *slog.Logger
}

// NewGateway constructs a Gateway around the given chat model. A nil model
// is accepted: the gateway then answers every prompt with the unavailable
// fallback, mirroring a degraded but running service.
func NewGateway(m model.BaseChatModel, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{model: m, log: log}
}

// Ready reports whether a chat model is configured.
func (g *Gateway) Ready() bool {
	return g.model != nil
}

// Answer runs one generation call for the prompt, framing it with the
// system prompt. It never returns an error: failures map to the fixed
// fallback sentences.
func (g *Gateway) Answer(ctx context.Context, prompt string) string {
	if g.model == nil {
		g.log.Error("generation: chat model not initialised")
		return FallbackUnavailable
	}

	messages := []*schema.Message{
		schema.SystemMessage(rag.SystemPrompt),
		schema.UserMessage(prompt),
	}

	resp, err := g.model.Generate(ctx, messages)
	if err != nil {
		g.log.Error("generation: model call failed", slog.Any("error", err))
		return FallbackError
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		g.log.Warn("generation: model returned empty completion")
		return FallbackEmpty
	}

	g.log.Info("generation: answer produced",
		slog.Int("prompt_chars", len([]rune(prompt))),
		slog.Int("answer_chars", len([]rune(resp.Content))),
	)

	return resp.Content
}
