package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"erebus/config"
	"erebus/pkg/client"
	"erebus/pkg/swap"
	"erebus/pkg/types"
)

var quoteSlippageBps int

var quoteCmd = &cobra.Command{
	Use:   "quote <input-mint> <output-mint> <amount>",
	Short: "Get a swap quote",
	Long: `Fetch a swap quote for the given pair. Amount is in the input
token's base units (lamports for SOL). Falls back to an estimated
quote when the aggregator is unreachable.

Examples:
  erebus quote So11111111111111111111111111111111111111112 EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v 1000000000
  erebus quote <in> <out> 1000000 --slippage 100`,
	Args: cobra.ExactArgs(3),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().IntVar(&quoteSlippageBps, "slippage", swap.DefaultSlippageBps, "Slippage tolerance in basis points")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	amount, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil || amount == 0 {
		printError(fmt.Errorf("invalid amount %q", args[2]))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	apiClient := client.New(cfg.APIUrl)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	q, err := apiClient.Swap.Quote(context.Background(), &types.SwapQuoteRequest{
		InputMint:   args[0],
		OutputMint:  args[1],
		Amount:      amount,
		SlippageBps: quoteSlippageBps,
	})
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(q, "", "  ")
		fmt.Println(string(out))
		return
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\nQuote: %s → %s\n", q.InputMint, q.OutputMint)
	fmt.Printf("  In:           %s\n", q.InAmount)
	fmt.Printf("  Out:          %s\n", q.OutAmount)
	fmt.Printf("  Min out:      %s\n", q.OtherAmountThreshold)
	fmt.Printf("  Price impact: %s%%\n", q.PriceImpactPct)
	fmt.Printf("  Slippage:     %d bps\n", q.SlippageBps)
	if q.Fallback {
		fmt.Printf("  %s\n", yellow("(estimated quote, aggregator unavailable)"))
	}
	fmt.Println()
}
