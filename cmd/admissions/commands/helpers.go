package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/iowathe3rd/admissions-agent/internal/chat"
	"github.com/iowathe3rd/admissions-agent/internal/embedder"
	"github.com/iowathe3rd/admissions-agent/internal/generation"
	"github.com/iowathe3rd/admissions-agent/internal/provider"
	"github.com/iowathe3rd/admissions-agent/internal/rag"
	"github.com/iowathe3rd/admissions-agent/internal/store"
)

// getEnvOrDefault returns the env var value or a fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or a fallback when unset or
// unparsable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat32 returns the env var parsed as float32, or a fallback when
// unset or unparsable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// buildIndexStore connects to Qdrant using QDRANT_* env vars, sizing the
// collection vectors for the configured embedding backend.
func buildIndexStore(ctx context.Context, log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "admissions-kb")
	vectorSize := uint64(embedder.DefaultDimensions(embedder.ResolveBackend())) //nolint:gosec // dimensions are bounded

	st, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return st, nil
}

// buildRetriever wires an embedder and the Qdrant store into a
// threshold-gated retriever. The returned cleanup closes the store.
func buildRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, *rag.QdrantStore, func(), error) {
	emb, err := embedder.NewFromEnv(ctx, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	st, err := buildIndexStore(ctx, log)
	if err != nil {
		return nil, nil, nil, err
	}

	threshold := getEnvFloat32("RAG_RELEVANCE_THRESHOLD", 0.75)
	topK := getEnvInt("RAG_TOP_K", 5)

	retriever, err := rag.NewRetriever(emb, st, threshold, topK, log)
	if err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialise retriever: %w", err)
	}

	return retriever, st, func() { _ = st.Close() }, nil
}

// buildInteractionStore opens the SQLite interaction log. INTERACTIONS_DB
// overrides the default path (~/.admissions/interactions.db); set it to
// "disabled" to turn the log off. Failures degrade to a nil store with a
// warning rather than aborting the command.
func buildInteractionStore(log *slog.Logger) (store.InteractionStore, func()) {
	dbPath := os.Getenv("INTERACTIONS_DB")
	if dbPath == "disabled" {
		log.Info("interactions: disabled via INTERACTIONS_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("interactions: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
		dbPath = p
	}

	st, err := store.Open(dbPath)
	if err != nil {
		log.Warn("interactions: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("interactions: store opened", slog.String("path", dbPath))
	return st, func() { _ = st.Close() }
}

// answerStack bundles everything the answering commands need: the chat
// service plus the components the HTTP server also exposes directly.
type answerStack struct {
	// Service answers questions.
	Service *chat.Service
	// Gateway is the generation gateway, used for readiness probes.
	Gateway *generation.Gateway
	// Retriever serves raw context lookups.
	Retriever rag.Retriever
	// Store is the Qdrant index, used for stats and health checks.
	Store *rag.QdrantStore
	// Interactions is the interaction log; nil when disabled.
	Interactions store.InteractionStore
}

// buildAnswerStack assembles the full answering stack: retriever, generation
// gateway, and interaction log. A model provider failure is non-fatal; the
// gateway then serves the fixed unavailability fallback. The returned cleanup
// closes the Qdrant connection and the interaction log.
func buildAnswerStack(ctx context.Context, log *slog.Logger) (*answerStack, func(), error) {
	retriever, qdrantStore, closeStore, err := buildRetriever(ctx, log)
	if err != nil {
		return nil, nil, err
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		log.Warn("model provider unavailable, serving fallback answers", slog.Any("error", err))
		chatModel = nil
	}
	gateway := generation.NewGateway(chatModel, log)

	interactions, closeInteractions := buildInteractionStore(log)

	svc, err := chat.NewService(retriever, gateway, interactions, log)
	if err != nil {
		closeInteractions()
		closeStore()
		return nil, nil, fmt.Errorf("failed to initialise chat service: %w", err)
	}

	cleanup := func() {
		closeInteractions()
		closeStore()
	}
	return &answerStack{
		Service:      svc,
		Gateway:      gateway,
		Retriever:    retriever,
		Store:        qdrantStore,
		Interactions: interactions,
	}, cleanup, nil
}
