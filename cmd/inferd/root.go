package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "inferd",
	Short: "Local inference daemon with an OpenAI-compatible API",
	Long: `inferd keeps a single llama.cpp model resident in memory and exposes it
over an OpenAI-compatible HTTP API, with personas, streamed delivery and a
WebSocket bridge for local tooling.`,
	SilenceUsage: true,
}

// envOr returns the value of the environment variable key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
