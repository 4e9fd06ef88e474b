package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/iowathe3rd/admissions-agent/internal/logging"
	"github.com/iowathe3rd/admissions-agent/internal/server"
	"github.com/iowathe3rd/admissions-agent/internal/tracing"
)

// NewServeCmd constructs the `admissions serve` command, which starts the
// HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admissions HTTP API",
		Long: `Start the HTTP API on localhost.

Endpoints:
  POST /api/ask      answer a question (JSON: {"question": "...", "user_id": "..."})
  GET  /api/search   raw context lookup (?q=...)
  GET  /api/stats    index and interaction counters
  GET  /api/health   liveness
  GET  /api/ready    readiness (probes Qdrant and the model provider)
  GET  /metrics      Prometheus metrics

Set ADMISSIONS_API_KEY to require Bearer authentication on the /api/*
routes. Without it the server runs open, intended for local development.

Examples:
  admissions serve
  admissions serve --port 9090
  ADMISSIONS_API_KEY=secret admissions serve --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			stack, cleanup, err := buildAnswerStack(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			pingers := []server.Pinger{
				server.QdrantPinger{Client: stack.Store.Client()},
				server.GatewayPinger{Gateway: stack.Gateway},
			}

			srv, err := server.New(server.Deps{
				Chat:         stack.Service,
				Retriever:    stack.Retriever,
				Index:        stack.Store,
				Interactions: stack.Interactions,
			}, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("ADMISSIONS_API_KEY"),
			}, nil)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
