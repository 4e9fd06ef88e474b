package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iowathe3rd/admissions-agent/internal/loader"
	"github.com/iowathe3rd/admissions-agent/internal/rag"
)

// fakeEmbedder embeds deterministically, optionally failing from a given
// batch call onward.
type fakeEmbedder struct {
	calls       int
	failOnCall  int
	shortOnCall int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failOnCall > 0 && f.calls >= f.failOnCall {
		return nil, errors.New("embedding provider unavailable")
	}
	if f.shortOnCall > 0 && f.calls >= f.shortOnCall {
		return make([][]float32, len(texts)-1), nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

// fakeIndexStore keeps live documents and a staging buffer in memory,
// mirroring the alias-swap rebuild contract.
type fakeIndexStore struct {
	live    []rag.Document
	staging []rag.Document

	commits int
	aborts  int
}

func (s *fakeIndexStore) Upsert(_ context.Context, docs []rag.Document, _ [][]float32) error {
	s.live = append(s.live, docs...)
	return nil
}

func (s *fakeIndexStore) Search(context.Context, []float32, int) ([]rag.ScoredDocument, error) {
	return nil, nil
}

func (s *fakeIndexStore) Count(context.Context) (uint64, error) {
	return uint64(len(s.live)), nil
}

func (s *fakeIndexStore) Close() error { return nil }

func (s *fakeIndexStore) BeginRebuild(context.Context) (rag.RebuildHandle, error) {
	s.staging = nil
	return &fakeRebuild{store: s}, nil
}

type fakeRebuild struct {
	store *fakeIndexStore
	done  bool
}

func (r *fakeRebuild) Upsert(_ context.Context, docs []rag.Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("docs/embeddings length mismatch: %d vs %d", len(docs), len(embeddings))
	}
	r.store.staging = append(r.store.staging, docs...)
	return nil
}

func (r *fakeRebuild) Commit(context.Context) error {
	if r.done {
		return errors.New("rebuild already finished")
	}
	r.done = true
	r.store.live = r.store.staging
	r.store.staging = nil
	r.store.commits++
	return nil
}

func (r *fakeRebuild) Abort(context.Context) error {
	if r.done {
		return errors.New("rebuild already finished")
	}
	r.done = true
	r.store.staging = nil
	r.store.aborts++
	return nil
}

// seedDataDir writes a small knowledge base into a temp directory.
func seedDataDir(t *testing.T, texts map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range texts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestPipeline(t *testing.T, dir string, embedder rag.Embedder, store rag.IndexStore, batchSize int) *Pipeline {
	t.Helper()
	p, err := NewPipeline(loader.New(), embedder, store, &Config{
		DataDir:      dir,
		ChunkSize:    50,
		ChunkOverlap: 10,
		BatchSize:    batchSize,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRun_IndexesAllChunks(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, map[string]string{
		"faqs.txt":  strings.Repeat("Вопросы и ответы о поступлении. ", 10),
		"rules.txt": "Короткий документ.",
	})
	store := &fakeIndexStore{}
	p := newTestPipeline(t, dir, &fakeEmbedder{}, store, 4)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.SourcesLoaded != 2 {
		t.Errorf("SourcesLoaded = %d, want 2", report.SourcesLoaded)
	}
	if report.Chunks != len(store.live) {
		t.Errorf("report.Chunks = %d but store holds %d", report.Chunks, len(store.live))
	}
	if store.commits != 1 || store.aborts != 0 {
		t.Errorf("commits/aborts = %d/%d, want 1/0", store.commits, store.aborts)
	}

	// Chunk IDs number sequentially from 1 across the whole run.
	for i, doc := range store.live {
		want := fmt.Sprintf("chunk_%d", i+1)
		if doc.ID != want {
			t.Errorf("doc %d: ID = %q, want %q", i, doc.ID, want)
		}
	}
}

func TestRun_EmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, map[string]string{
		"big.txt": strings.Repeat("Правила приёма в университет. ", 20),
	})
	store := &fakeIndexStore{live: []rag.Document{{ID: "chunk_1", Content: "old"}}}
	embedder := &fakeEmbedder{failOnCall: 2}
	p := newTestPipeline(t, dir, embedder, store, 2)

	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if store.aborts != 1 || store.commits != 0 {
		t.Errorf("commits/aborts = %d/%d, want 0/1", store.commits, store.aborts)
	}
	if len(store.live) != 1 || store.live[0].Content != "old" {
		t.Errorf("live index changed after aborted run: %+v", store.live)
	}
	if len(store.staging) != 0 {
		t.Errorf("staging not discarded: %d docs", len(store.staging))
	}
}

func TestRun_EmbeddingCountMismatchAborts(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, map[string]string{
		"doc.txt": strings.Repeat("Стоимость обучения и сроки подачи. ", 10),
	})
	store := &fakeIndexStore{}
	embedder := &fakeEmbedder{shortOnCall: 1}
	p := newTestPipeline(t, dir, embedder, store, 4)

	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for embedding count mismatch")
	}
	if !strings.Contains(err.Error(), "vectors") {
		t.Errorf("error should mention the vector count: %v", err)
	}
	if store.commits != 0 || store.aborts != 1 {
		t.Errorf("commits/aborts = %d/%d, want 0/1", store.commits, store.aborts)
	}
}

func TestRun_NoDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := &fakeIndexStore{}
	p := newTestPipeline(t, dir, &fakeEmbedder{}, store, 4)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error for empty data directory")
	}
	if store.commits != 0 {
		t.Errorf("no rebuild should have been committed")
	}
}

func TestRun_LoadFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, map[string]string{
		"good.txt":    "Приём документов открыт с 20 июня.",
		"broken.json": "{not an array",
	})
	store := &fakeIndexStore{}
	p := newTestPipeline(t, dir, &fakeEmbedder{}, store, 4)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.SourcesLoaded != 1 || report.SourcesFailed != 1 {
		t.Errorf("loaded/failed = %d/%d, want 1/1", report.SourcesLoaded, report.SourcesFailed)
	}
	if len(store.live) == 0 {
		t.Error("good document should have been indexed")
	}
}

func TestNewPipeline_Defaults(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(loader.New(), &fakeEmbedder{}, &fakeIndexStore{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.cfg.ChunkSize != 800 || p.cfg.ChunkOverlap != 100 {
		t.Errorf("chunk defaults = %d/%d, want 800/100", p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	}
	if p.cfg.BatchSize != 32 {
		t.Errorf("batch size default = %d, want 32", p.cfg.BatchSize)
	}
}
