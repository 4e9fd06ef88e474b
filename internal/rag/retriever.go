package rag

import (
	"context"
	"fmt"
	"log/slog"
)

// ThresholdRetriever implements Retriever by combining an Embedder and a
// VectorStore, keeping only results whose cosine similarity meets the
// relevance threshold. All failures degrade to an empty result.
type ThresholdRetriever struct {
	// embedder converts the query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// threshold is the minimum cosine similarity for a result to be kept.
	threshold float32

	// topK is the number of nearest neighbours fetched before gating.
	topK int

	// log is the structured logger for retrieval diagnostics.
	log *slog.Logger
}

// NewRetriever constructs a ThresholdRetriever. topK falls back to 5 and
// threshold to 0.75 when unset.
func NewRetriever(embedder Embedder, store VectorStore, threshold float32, topK int, log *slog.Logger) (*ThresholdRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if topK <= 0 {
		topK = 5
	}
	if threshold <= 0 {
		threshold = 0.75
	}
	if log == nil {
		log = slog.Default()
	}
	return &ThresholdRetriever{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
		topK:      topK,
		log:       log,
	}, nil
}

// Retrieve embeds the query, searches the store, and returns the results
// whose similarity (1 - cosine distance) is at or above the threshold, in
// store order (best match first). Any upstream failure logs and returns nil
// so answering can continue with a fallback.
func (r *ThresholdRetriever) Retrieve(ctx context.Context, query string) []Context {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		r.log.Error("retriever: failed to embed query", slog.Any("error", err))
		return nil
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		r.log.Error("retriever: embedder returned no vector for query")
		return nil
	}

	docs, err := r.store.Search(ctx, embeddings[0], r.topK)
	if err != nil {
		r.log.Error("retriever: vector search failed", slog.Any("error", err))
		return nil
	}

	var contexts []Context
	for _, doc := range docs {
		similarity := 1 - doc.Distance
		if similarity < r.threshold {
			continue
		}
		source := doc.Source
		if source == "" {
			source = "unknown"
		}
		contexts = append(contexts, Context{
			Source: source,
			Text:   doc.Content,
			Score:  similarity,
		})
	}

	r.log.Info("retriever: query answered",
		slog.Int("candidates", len(docs)),
		slog.Int("relevant", len(contexts)),
		slog.String("query", truncate(query, 50)),
	)

	return contexts
}

// truncate shortens s to at most n runes for log output.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
