package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tbeh-star/solvate-ai/cmd/golden-record/commands"
)

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
