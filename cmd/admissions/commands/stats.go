package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iowathe3rd/admissions-agent/internal/logging"
)

// NewStatsCmd constructs the `admissions stats` command, which reports the
// size of the vector index and the interaction log.
func NewStatsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base and interaction statistics",
		Long: `Report the number of indexed chunks in Qdrant and the number of recorded
question/answer interactions. With --recent N the last N interactions are
printed as well.

Examples:
  admissions stats
  admissions stats --recent 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			st, err := buildIndexStore(ctx, log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer st.Close()

			chunks, err := st.Count(ctx)
			if err != nil {
				return fmt.Errorf("stats: failed to count indexed chunks: %w", err)
			}
			fmt.Printf("Indexed chunks: %d\n", chunks)

			interactions, closeInteractions := buildInteractionStore(log)
			defer closeInteractions()
			if interactions == nil {
				return nil
			}

			n, err := interactions.Count(ctx)
			if err != nil {
				return fmt.Errorf("stats: failed to count interactions: %w", err)
			}
			fmt.Printf("Recorded interactions: %d\n", n)

			if recent > 0 {
				items, err := interactions.Recent(ctx, recent)
				if err != nil {
					return fmt.Errorf("stats: failed to load recent interactions: %w", err)
				}
				for _, it := range items {
					fmt.Printf("\n[%s] %s\nQ: %s\nA: %s\n",
						it.CreatedAt.Format("2006-01-02 15:04"), it.UserID, it.Question, it.Answer)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&recent, "recent", "n", 0, "Also print the N most recent interactions")

	return cmd
}
