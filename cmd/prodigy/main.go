package main

import (
	"os"

	"github.com/prodigy-ranking/backend/cmd/prodigy/commands"
)

// main is the entry point for the ranking CLI: go run ./cmd/prodigy [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
