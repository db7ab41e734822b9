package main

import (
	"os"
)

// @title inferd API
// @version 1.0
// @description OpenAI-compatible API over a locally loaded model.
// @BasePath /
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
