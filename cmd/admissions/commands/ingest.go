package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iowathe3rd/admissions-agent/internal/embedder"
	"github.com/iowathe3rd/admissions-agent/internal/ingestion"
	"github.com/iowathe3rd/admissions-agent/internal/loader"
	"github.com/iowathe3rd/admissions-agent/internal/logging"
)

// NewIngestCmd constructs the `admissions ingest` command, which rebuilds the
// knowledge base index from the seed document directory.
func NewIngestCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the knowledge base documents into Qdrant",
		Long: `Load the seed documents (JSON, TXT, PDF, DOCX), chunk them, embed every
chunk, and rebuild the Qdrant index.

The rebuild is atomic: new content is staged in a fresh collection and
swapped in only after every chunk is embedded and stored, so queries keep
hitting the previous index until the swap. Any embedding failure aborts the
whole run and leaves the live index untouched.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: admissions-kb)
  EMBEDDING_PROVIDER   Embedding backend: gemini, openai, ollama
  GEMINI_API_KEY       Required for the gemini backend
  DATA_DIR             Seed document directory (or use --data-dir)

Examples:
  admissions ingest
  admissions ingest --data-dir ./data
  EMBEDDING_PROVIDER=ollama admissions ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dataDir == "" {
				dataDir = getEnvOrDefault("DATA_DIR", "data")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("backend", embedder.ResolveBackend()))

			st, err := buildIndexStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer st.Close()

			pipeline, err := ingestion.NewPipeline(loader.New(), emb, st, &ingestion.Config{
				DataDir:      dataDir,
				ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
				ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
				BatchSize:    getEnvInt("EMBEDDING_BATCH_SIZE", 0),
			}, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			report, err := pipeline.Run(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("Ingestion complete: %d sources loaded (%d failed), %d chunks indexed in %d batches\n",
				report.SourcesLoaded, report.SourcesFailed, report.Chunks, report.Batches)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Seed document directory (default: $DATA_DIR or ./data)")

	return cmd
}
