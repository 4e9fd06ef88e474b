package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the logical collection name. It is maintained as an
	// alias onto a timestamped physical collection so rebuilds can swap the
	// index atomically.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements IndexStore backed by a Qdrant instance. The logical
// collection name is an alias; BeginRebuild stages a fresh physical
// collection and Commit re-points the alias in one step.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the logical collection
// exists (creating a physical collection plus alias if necessary), and
// returns a ready-to-use IndexStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying gRPC client for health checks.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// ensureCollection makes the logical collection name usable. If neither an
// alias nor a concrete collection carries the name, a fresh physical
// collection is created and aliased.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	target, err := s.resolveAlias(ctx)
	if err != nil {
		return err
	}
	if target != "" {
		return nil
	}

	// Older deployments created a concrete collection under the logical
	// name. Point operations work against it directly, so leave it alone;
	// the first rebuild migrates it to the alias scheme.
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	physical := s.physicalName()
	if err := s.createPhysical(ctx, physical); err != nil {
		return err
	}
	if err := s.client.CreateAlias(ctx, s.cfg.Collection, physical); err != nil {
		return fmt.Errorf("qdrant: failed to alias %q -> %q: %w", s.cfg.Collection, physical, err)
	}

	return nil
}

// resolveAlias returns the physical collection the logical name points at,
// or "" when no such alias exists.
func (s *QdrantStore) resolveAlias(ctx context.Context) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("qdrant: failed to list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == s.cfg.Collection {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// physicalName derives a fresh timestamped physical collection name.
func (s *QdrantStore) physicalName() string {
	return fmt.Sprintf("%s-%d", s.cfg.Collection, time.Now().UnixNano())
}

// createPhysical creates a physical collection with the configured vector
// geometry (cosine distance).
func (s *QdrantStore) createPhysical(ctx context.Context, name string) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
	}
	return nil
}

// Upsert stores or updates a batch of documents with their embeddings in the
// live collection.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	return s.upsertInto(ctx, s.cfg.Collection, docs, embeddings)
}

// upsertInto writes points to the named collection. Chunk IDs of the form
// chunk_N map to numeric point IDs; the string form is preserved in the
// payload.
func (s *QdrantStore) upsertInto(ctx context.Context, collection string, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		num, err := chunkNumber(doc.ID)
		if err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(num),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id": doc.ID,
				"text":     doc.Content,
				"source":   doc.Source,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", collection, err)
	}

	return nil
}

// Search performs a cosine similarity search against the live collection and
// returns the top-k results with their cosine distances. Qdrant reports
// cosine similarity as the score, so distance is 1 - score.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredDocument, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]ScoredDocument, 0, len(results))
	for _, r := range results {
		doc := ScoredDocument{Distance: 1 - r.Score}
		if p := r.Payload; p != nil {
			if v, ok := p["chunk_id"]; ok {
				doc.ID = v.GetStringValue()
			}
			if v, ok := p["text"]; ok {
				doc.Content = v.GetStringValue()
			}
			if v, ok := p["source"]; ok {
				doc.Source = v.GetStringValue()
			}
		}
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("chunk_%d", r.Id.GetNum())
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Count returns the exact number of points in the live collection.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return count, nil
}

// BeginRebuild creates a fresh staging collection for a full reindex. The
// live alias is untouched until Commit.
func (s *QdrantStore) BeginRebuild(ctx context.Context) (RebuildHandle, error) {
	staging := s.physicalName()
	if err := s.createPhysical(ctx, staging); err != nil {
		return nil, err
	}
	return &qdrantRebuild{store: s, staging: staging}, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// qdrantRebuild is a RebuildHandle writing to a staging physical collection.
type qdrantRebuild struct {
	store   *QdrantStore
	staging string
}

// Upsert writes a batch of documents into the staging collection.
func (r *qdrantRebuild) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	return r.store.upsertInto(ctx, r.staging, docs, embeddings)
}

// Commit re-points the logical alias at the staging collection and drops the
// previous physical collection. Readers switch over in one alias update.
func (r *qdrantRebuild) Commit(ctx context.Context) error {
	s := r.store
	logical := s.cfg.Collection

	previous, err := s.resolveAlias(ctx)
	if err != nil {
		return err
	}

	if previous != "" {
		if err := s.client.DeleteAlias(ctx, logical); err != nil {
			return fmt.Errorf("qdrant: failed to drop alias %q: %w", logical, err)
		}
	} else {
		// Legacy layout: a concrete collection occupies the logical name and
		// must be removed before the alias can take it over.
		exists, err := s.client.CollectionExists(ctx, logical)
		if err != nil {
			return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
		}
		if exists {
			if err := s.client.DeleteCollection(ctx, logical); err != nil {
				return fmt.Errorf("qdrant: failed to drop legacy collection %q: %w", logical, err)
			}
		}
	}

	if err := s.client.CreateAlias(ctx, logical, r.staging); err != nil {
		return fmt.Errorf("qdrant: failed to alias %q -> %q: %w", logical, r.staging, err)
	}

	if previous != "" && previous != r.staging {
		if err := s.client.DeleteCollection(ctx, previous); err != nil {
			return fmt.Errorf("qdrant: failed to drop previous collection %q: %w", previous, err)
		}
	}

	return nil
}

// Abort drops the staging collection, leaving the live index unchanged.
func (r *qdrantRebuild) Abort(ctx context.Context) error {
	if err := r.store.client.DeleteCollection(ctx, r.staging); err != nil {
		return fmt.Errorf("qdrant: failed to drop staging collection %q: %w", r.staging, err)
	}
	return nil
}

// chunkNumber extracts the numeric suffix from a chunk_N identifier for use
// as a Qdrant point ID.
func chunkNumber(id string) (uint64, error) {
	suffix, ok := strings.CutPrefix(id, "chunk_")
	if !ok {
		return 0, fmt.Errorf("qdrant: malformed chunk id %q", id)
	}
	num, err := strconv.ParseUint(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("qdrant: malformed chunk id %q: %w", id, err)
	}
	return num, nil
}
