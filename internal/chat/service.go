// Package chat implements the question answering service: retrieve relevant
// context, construct the prompt, generate the answer, and record the
// interaction. Both the Telegram bot and the HTTP API sit on top of it.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/iowathe3rd/admissions-agent/internal/generation"
	"github.com/iowathe3rd/admissions-agent/internal/rag"
	"github.com/iowathe3rd/admissions-agent/internal/store"
)

// Answer is the outcome of one answered question.
type Answer struct {
	// Text is the user-facing answer (a real completion or a fallback).
	Text string

	// Contexts are the knowledge base excerpts the answer was grounded on.
	// Empty when nothing cleared the relevance threshold.
	Contexts []rag.Context
}

// Service answers user questions over the knowledge base. It is safe for
// concurrent use.
type Service struct {
	// retriever supplies relevance-gated context for each question.
	retriever rag.Retriever

	// gateway produces the final answer text.
	gateway *generation.Gateway

	// interactions records answered questions; nil disables logging.
	interactions store.InteractionStore

	// log is the structured logger.
	log *slog.Logger
}

// NewService constructs a chat Service. interactions may be nil when no
// persistence is configured.
func NewService(retriever rag.Retriever, gateway *generation.Gateway, interactions store.InteractionStore, log *slog.Logger) (*Service, error) {
	if retriever == nil {
		return nil, fmt.Errorf("chat: retriever must not be nil")
	}
	if gateway == nil {
		return nil, fmt.Errorf("chat: gateway must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		retriever:    retriever,
		gateway:      gateway,
		interactions: interactions,
		log:          log,
	}, nil
}

// Ask answers one question. It never returns an error: retrieval degrades to
// an empty context set and generation degrades to a fallback sentence, so
// the caller always has text to show. The interaction record is best-effort
// and never blocks the answer.
func (s *Service) Ask(ctx context.Context, userID, question string) Answer {
	contexts := s.retriever.Retrieve(ctx, question)
	prompt := rag.ConstructPrompt(question, contexts)
	text := s.gateway.Answer(ctx, prompt)

	s.record(ctx, userID, question, text, contexts)

	return Answer{Text: text, Contexts: contexts}
}

// record persists the interaction when a store is configured. Failures are
// logged and swallowed.
func (s *Service) record(ctx context.Context, userID, question, answer string, contexts []rag.Context) {
	if s.interactions == nil {
		return
	}
	contextsJSON := "[]"
	if len(contexts) > 0 {
		if data, err := json.Marshal(contexts); err == nil {
			contextsJSON = string(data)
		} else {
			s.log.Warn("chat: failed to encode contexts for the interaction log", slog.Any("error", err))
		}
	}
	if err := s.interactions.Record(ctx, userID, question, answer, contextsJSON); err != nil {
		s.log.Warn("chat: failed to record interaction", slog.Any("error", err))
	}
}
