package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iowathe3rd/admissions-agent/internal/logging"
)

// NewAskCmd constructs the `admissions ask` command, which answers a single
// question from the terminal and prints the grounding sources.
func NewAskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the admissions assistant a single question",
		Long: `Answer one question against the indexed knowledge base and print the
result to stdout. The knowledge base must be ingested first (see
'admissions ingest').

Examples:
  admissions ask "Какие документы нужны для поступления?"
  admissions ask --sources "Когда начинается приём документов?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			stack, cleanup, err := buildAnswerStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			question := strings.Join(args, " ")
			answer := stack.Service.Ask(ctx, "cli", question)

			fmt.Println(answer.Text)

			if showSources && len(answer.Contexts) > 0 {
				fmt.Println("\nИсточники:")
				for _, c := range answer.Contexts {
					fmt.Printf("  - %s (релевантность %.3f)\n", c.Source, c.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print the knowledge base sources the answer was grounded on")

	return cmd
}
