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
	"erebus/pkg/types"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <address>",
	Short: "Show a wallet's transfer history",
	Long: `List transfers recorded for a wallet, newest first.

Examples:
  erebus history 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
  erebus history <address> --limit 10`,
	Args: cobra.ExactArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of records")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	apiClient := client.New(cfg.APIUrl)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching history..."
		s.Start()
	}

	records, err := apiClient.Transactions.History(context.Background(), args[0], historyLimit)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(out))
		return
	}

	if len(records) == 0 {
		fmt.Printf("\nNo transfers found\n\n")
		return
	}

	fmt.Printf("\nTransfers (%d):\n\n", len(records))
	for _, r := range records {
		fmt.Printf("  %s  %-14s %12.6f %-10s %s\n",
			r.Timestamp.Format("2006-01-02 15:04"), r.TxType, r.Amount, r.Token, statusColor(r.Status))
	}
	fmt.Println()
}

func statusColor(status string) string {
	switch status {
	case types.StatusConfirmed:
		return color.GreenString(status)
	case types.StatusFailed:
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}
