// Command admissions is the entry point for the university admissions
// assistant. It provides a CLI (via Cobra) for ingesting the knowledge base,
// asking one-shot questions, and running the HTTP API or Telegram bot.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/iowathe3rd/admissions-agent/cmd/admissions/commands"
)

func main() {
	// A local .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
