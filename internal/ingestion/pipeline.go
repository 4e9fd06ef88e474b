// Package ingestion implements the knowledge base indexing pipeline.
// It loads seed documents from the data directory, chunks their text,
// embeds each chunk in batches, and builds a fresh vector index that is
// swapped in atomically on success. This pipeline is invoked by the
// `admissions ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iowathe3rd/admissions-agent/internal/loader"
	"github.com/iowathe3rd/admissions-agent/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// DataDir is the directory holding the seed documents.
	DataDir string

	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to 800 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive
	// chunks. Defaults to 100 if zero.
	ChunkOverlap int

	// BatchSize is the number of chunks embedded per provider call.
	// Defaults to 32 if zero.
	BatchSize int
}

// Report summarises one completed ingestion run.
type Report struct {
	// SourcesLoaded is the number of documents successfully loaded.
	SourcesLoaded int

	// SourcesFailed is the number of files or records that failed to load.
	SourcesFailed int

	// Chunks is the total number of chunks indexed.
	Chunks int

	// Batches is the number of embedding batches processed.
	Batches int
}

// Pipeline orchestrates the load → chunk → embed → index flow. A run either
// replaces the whole index or leaves it untouched: embedding failures abort
// the staged rebuild before anything becomes visible to readers.
type Pipeline struct {
	// loader normalises seed files into documents.
	loader *loader.Loader

	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store receives the staged index content.
	store rag.IndexStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// log is the structured logger for run progress.
	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(ld *loader.Loader, embedder rag.Embedder, store rag.IndexStore, cfg *Config, log *slog.Logger) (*Pipeline, error) {
	if ld == nil {
		return nil, fmt.Errorf("ingestion: loader must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 100
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		loader:   ld,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Run executes one full ingestion pass over the data directory. The live
// index is replaced only when every chunk embedded and indexed successfully;
// any failure aborts the staged rebuild and the previous index stays live.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	results := p.loader.LoadDirectory(p.cfg.DataDir)
	stats := loader.Statistics(results)
	for _, e := range stats.Errors {
		p.log.Warn("ingestion: document failed to load",
			slog.String("source", e.Source),
			slog.Any("error", e.Err),
		)
	}
	if stats.Successful == 0 {
		return nil, fmt.Errorf("ingestion: no loadable documents in %s", p.cfg.DataDir)
	}

	// Chunk IDs number sequentially across the whole run, starting at 1.
	var docs []rag.Document
	chunkID := 1
	for _, r := range results {
		if !r.OK() {
			continue
		}
		for _, chunk := range Chunk(r.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap) {
			docs = append(docs, rag.Document{
				ID:      fmt.Sprintf("chunk_%d", chunkID),
				Content: chunk,
				Source:  r.Source,
			})
			chunkID++
		}
	}

	p.log.Info("ingestion: documents chunked",
		slog.Int("documents", stats.Successful),
		slog.Int("chunks", len(docs)),
	)

	handle, err := p.store.BeginRebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingestion: failed to begin rebuild: %w", err)
	}

	batches, err := p.embedAndStage(ctx, handle, docs)
	if err != nil {
		if abortErr := handle.Abort(ctx); abortErr != nil {
			p.log.Error("ingestion: failed to abort staged rebuild", slog.Any("error", abortErr))
		}
		return nil, err
	}

	if err := handle.Commit(ctx); err != nil {
		if abortErr := handle.Abort(ctx); abortErr != nil {
			p.log.Error("ingestion: failed to abort staged rebuild", slog.Any("error", abortErr))
		}
		return nil, fmt.Errorf("ingestion: failed to commit rebuild: %w", err)
	}

	p.log.Info("ingestion: index rebuilt",
		slog.Int("chunks", len(docs)),
		slog.Int("batches", batches),
	)

	return &Report{
		SourcesLoaded: stats.Successful,
		SourcesFailed: stats.Failed,
		Chunks:        len(docs),
		Batches:       batches,
	}, nil
}

// embedAndStage embeds the chunks batch by batch and writes each batch to
// the staging handle. Any embedding failure, including a count mismatch,
// aborts the run immediately.
func (p *Pipeline) embedAndStage(ctx context.Context, handle rag.RebuildHandle, docs []rag.Document) (int, error) {
	total := (len(docs) + p.cfg.BatchSize - 1) / p.cfg.BatchSize
	batches := 0

	for start := 0; start < len(docs); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		batches++

		p.log.Info("ingestion: embedding batch",
			slog.Int("batch", batches),
			slog.Int("total", total),
			slog.Int("chunks", len(batch)),
		)

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Content
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return batches, fmt.Errorf("ingestion: embedding batch %d/%d failed: %w", batches, total, err)
		}
		if len(embeddings) != len(batch) {
			return batches, fmt.Errorf("ingestion: embedding batch %d/%d returned %d vectors for %d chunks", batches, total, len(embeddings), len(batch))
		}

		if err := handle.Upsert(ctx, batch, embeddings); err != nil {
			return batches, fmt.Errorf("ingestion: staging batch %d/%d failed: %w", batches, total, err)
		}
	}

	return batches, nil
}
