package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/iowathe3rd/admissions-agent/internal/logging"
	"github.com/iowathe3rd/admissions-agent/internal/telegram"
	"github.com/iowathe3rd/admissions-agent/internal/tracing"
)

// NewBotCmd constructs the `admissions bot` command, which runs the Telegram
// front-end.
func NewBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Run the Telegram bot front-end. The bot long-polls for updates and
answers plain-text questions against the indexed knowledge base. Every
message is a standalone question; the bot keeps no dialogue history.

Required environment variables:
  TELEGRAM_BOT_TOKEN   Bot token from @BotFather
  QDRANT_*             Vector store connection (see 'admissions ingest --help')
  GEMINI_API_KEY       Or the provider selected by MODEL_PROVIDER

Examples:
  TELEGRAM_BOT_TOKEN=123:abc admissions bot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			}

			stack, cleanup, err := buildAnswerStack(ctx, log)
			if err != nil {
				return fmt.Errorf("bot: %w", err)
			}
			defer cleanup()

			b, err := telegram.New(os.Getenv("TELEGRAM_BOT_TOKEN"), stack.Service, log)
			if err != nil {
				return fmt.Errorf("bot: %w", err)
			}

			b.Start(ctx)
			return nil
		},
	}
}
