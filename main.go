package main

import (
	"fmt"
	"os"

	"erebus/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; everything can come from real env vars too
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
