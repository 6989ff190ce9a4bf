package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"erebus/config"
	"erebus/pkg/client"
)

var balanceShowTokens bool

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show a wallet's SOL balance",
	Long: `Show the native SOL balance of a wallet. With --tokens, also
lists every SPL token the wallet holds, with resolved metadata.

Examples:
  erebus balance 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
  erebus balance <address> --tokens`,
	Args: cobra.ExactArgs(1),
	Run:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().BoolVar(&balanceShowTokens, "tokens", false, "Also list SPL token holdings")
}

func runBalance(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	address := args[0]

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	apiClient := client.New(cfg.APIUrl)
	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balance..."
		s.Start()
	}

	sol, err := apiClient.Balance.SOL(ctx, address)
	if err != nil {
		if !jsonOutput {
			s.Stop()
		}
		printError(err)
		os.Exit(1)
	}

	if !balanceShowTokens {
		if !jsonOutput {
			s.Stop()
		}
		if jsonOutput {
			out, _ := json.MarshalIndent(map[string]any{"address": address, "balance": sol}, "", "  ")
			fmt.Println(string(out))
			return
		}
		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("\n%s: %s SOL\n\n", address, bold(fmt.Sprintf("%.9f", sol)))
		return
	}

	tokens, err := apiClient.Tokens.WalletTokens(ctx, address)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(map[string]any{"address": address, "balance": sol, "tokens": tokens.Tokens}, "", "  ")
		fmt.Println(string(out))
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\n%s\n", address)
	fmt.Printf("  SOL: %s\n", bold(fmt.Sprintf("%.9f", sol)))
	if len(tokens.Tokens) == 0 {
		fmt.Println("  No token holdings")
	} else {
		fmt.Printf("\n  Tokens (%d):\n", len(tokens.Tokens))
		for _, t := range tokens.Tokens {
			fmt.Printf("    %-10s %12.6f  %s\n", cyan(t.Symbol), t.Balance, t.Address)
		}
	}
	fmt.Println()
}
