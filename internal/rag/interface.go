// Package rag defines the interfaces for the retrieval-augmented answering
// pipeline: vector storage, atomic index rebuilds, embedding, and relevant
// context retrieval. Concrete implementations (Qdrant, Gemini, etc.) satisfy
// these interfaces so the chat layer never depends on a specific backend.
package rag

import (
	"context"
)

// Document represents one chunk of knowledge base text ready for indexing.
type Document struct {
	// ID is the chunk identifier, unique across a whole ingestion run
	// (chunk_1, chunk_2, ...).
	ID string

	// Content is the chunk text.
	Content string

	// Source is the originating document's name (file base name without
	// extension).
	Source string
}

// ScoredDocument is a Document returned from a similarity search together
// with its cosine distance from the query vector.
type ScoredDocument struct {
	Document

	// Distance is the cosine distance in [0, 2]. Similarity is 1 - Distance.
	Distance float32
}

// Context is one unit of retrieved knowledge handed to the prompt
// constructor, already gated by the relevance threshold.
type Context struct {
	// Source names the originating document.
	Source string `json:"source"`

	// Text is the chunk text.
	Text string `json:"text"`

	// Score is the cosine similarity in [0, 1], at or above the configured
	// relevance threshold.
	Score float32 `json:"score"`
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed
	// embeddings. embeddings[i] is the vector for docs[i]; the slices must
	// be the same length.
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the top-k nearest documents for the query embedding,
	// each annotated with its cosine distance.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredDocument, error)

	// Count returns the number of points currently indexed.
	Count(ctx context.Context) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}

// IndexStore is a VectorStore that also supports atomic full rebuilds: new
// content is written to a staging area and swapped in only on Commit, so
// readers never observe a partially rebuilt index.
type IndexStore interface {
	VectorStore

	// BeginRebuild opens a staging area for a full reindex. The live index
	// stays untouched until the returned handle is committed.
	BeginRebuild(ctx context.Context) (RebuildHandle, error)
}

// RebuildHandle accumulates documents for a pending index rebuild.
// Exactly one of Commit or Abort must be called.
type RebuildHandle interface {
	// Upsert writes a batch of documents into the staging area.
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Commit atomically replaces the live index with the staged content.
	Commit(ctx context.Context) error

	// Abort discards the staged content, leaving the live index unchanged.
	Abort(ctx context.Context) error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches relevance-gated context for a user question. It never
// fails: any upstream error degrades to an empty result so the caller can
// still produce a fallback answer.
type Retriever interface {
	// Retrieve returns the contexts whose similarity to the query meets the
	// configured relevance threshold, best match first.
	Retrieve(ctx context.Context, query string) []Context
}
