package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "erebus",
	Short: "A CLI and relay daemon for private transfers on Solana",
	Long: `erebus runs the treasury-relay backend and drives its client-side
transfer flow. Transfers route through a treasury wallet so the sender
and recipient never touch each other on-chain, for a 0.5% fee.

Examples:
  erebus serve
  erebus transfer 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin 0.5
  erebus tokens
  erebus quote <input-mint> <output-mint> 1000000
  erebus balance <address>
  erebus history <address>`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
