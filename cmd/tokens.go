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

var tokensCmd = &cobra.Command{
	Use:   "tokens [mint]",
	Short: "List known tokens or look up one mint",
	Long: `Without arguments, prints the token list served by the backend.
With a mint address, resolves that token's metadata through the
fallback chain (token list, CryptoAPIs, on-chain).

Examples:
  erebus tokens
  erebus tokens EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v`,
	Args: cobra.MaximumNArgs(1),
	Run:  runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func runTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	apiClient := client.New(cfg.APIUrl)
	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching tokens..."
		s.Start()
	}

	if len(args) == 1 {
		info, err := apiClient.Tokens.Info(ctx, args[0])
		if !jsonOutput {
			s.Stop()
		}
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if jsonOutput {
			out, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(out))
			return
		}
		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("\n%s (%s)\n", bold(info.Symbol), info.Name)
		fmt.Printf("  Mint:     %s\n", info.Address)
		fmt.Printf("  Decimals: %d\n", info.Decimals)
		fmt.Printf("  Source:   %s\n\n", info.Source)
		return
	}

	list, err := apiClient.Tokens.List(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(out))
		return
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\nKnown tokens (%d):\n\n", len(list))
	for _, t := range list {
		fmt.Printf("  %-10s %-24s %s\n", cyan(t.Symbol), t.Name, t.Address)
	}
	fmt.Println()
}
