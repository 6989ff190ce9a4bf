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
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"erebus/config"
	"erebus/pkg/chain"
	"erebus/pkg/client"
	"erebus/pkg/types"
)

var (
	transferTokenMint string
	transferDecimals  uint8
)

var transferCmd = &cobra.Command{
	Use:   "transfer <recipient> <amount>",
	Short: "Send a private transfer through the treasury relay",
	Long: `Run the full two-phase transfer flow with the configured wallet:
prepare a quote, pay the total to the treasury, wait for confirmation,
then execute so the relay forwards the amount to the recipient.

The wallet key comes from EREBUS_WALLET_PRIVATE_KEY (base58).

Examples:
  erebus transfer 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin 0.5
  erebus transfer <recipient> 25 --token EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v --decimals 6`,
	Args: cobra.ExactArgs(2),
	Run:  runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().StringVar(&transferTokenMint, "token", "", "SPL token mint (omit for native SOL)")
	transferCmd.Flags().Uint8Var(&transferDecimals, "decimals", 9, "Token decimals (with --token)")
}

// walletPayer pays the treasury from a local keypair and blocks until
// the payment confirms
type walletPayer struct {
	chain  *chain.Client
	wallet solana.PrivateKey
}

func (p *walletPayer) Pay(ctx context.Context, treasuryAddress string, amount float64) (string, error) {
	lamports := decimal.NewFromFloat(amount).Mul(decimal.New(1, 9)).Ceil()
	sig, err := p.chain.SendNative(ctx, p.wallet, treasuryAddress, uint64(lamports.IntPart()))
	if err != nil {
		return "", err
	}
	if err := p.chain.Confirm(ctx, sig, 60*time.Second); err != nil {
		return "", err
	}
	return sig, nil
}

func runTransfer(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	recipient := args[0]
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil || amount <= 0 {
		printError(fmt.Errorf("invalid amount %q", args[1]))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if cfg.WalletPrivateKey == "" {
		printError(fmt.Errorf("wallet key not found. Please set EREBUS_WALLET_PRIVATE_KEY or add wallet_private_key to .erebus.yaml"))
		os.Exit(1)
	}

	wallet, err := solana.PrivateKeyFromBase58(cfg.WalletPrivateKey)
	if err != nil {
		printError(fmt.Errorf("invalid wallet private key: %w", err))
		os.Exit(1)
	}
	from := wallet.PublicKey().String()

	apiClient := client.New(cfg.APIUrl)
	payer := &walletPayer{chain: chain.New(cfg.RPCUrl), wallet: wallet}

	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Preparing transfer..."
		s.Start()
	}

	var result *types.TransferExecuteResponse
	if transferTokenMint == "" {
		if !jsonOutput {
			s.Suffix = " Running private SOL transfer..."
		}
		result, err = apiClient.Transfer.SendNative(ctx, payer, from, recipient, amount)
	} else {
		result, err = runTokenTransfer(ctx, apiClient, payer, from, recipient, amount)
	}
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	printSuccess(green("Transfer complete"))
	fmt.Printf("  Transfer ID:  %s\n", result.TransferID)
	fmt.Printf("  Amount:       %v → %s\n", result.Amount, result.Destination)
	fmt.Printf("  Payment:      %s\n", cyan(result.PaymentExplorer))
	fmt.Printf("  Destination:  %s\n", cyan(result.DestinationExplorer))
}

// runTokenTransfer drives the token variant by hand: prepare, pay the
// token total to the treasury, execute
func runTokenTransfer(ctx context.Context, apiClient *client.Client, payer *walletPayer, from, recipient string, amount float64) (*types.TransferExecuteResponse, error) {
	quote, err := apiClient.Transfer.PrepareToken(ctx, &types.TokenTransferPrepareRequest{
		FromAddress: from,
		ToAddress:   recipient,
		TokenMint:   transferTokenMint,
		Amount:      amount,
		Decimals:    transferDecimals,
	})
	if err != nil {
		return nil, err
	}

	raw := decimal.NewFromFloat(quote.TotalToPay).Mul(decimal.New(1, int32(transferDecimals))).Ceil()
	sig, err := payer.chain.SendToken(ctx, payer.wallet, quote.TreasuryAddress, transferTokenMint, uint64(raw.IntPart()))
	if err != nil {
		return nil, fmt.Errorf("payment failed for transfer %s: %w", quote.TransferID, err)
	}
	if err := payer.chain.Confirm(ctx, sig, 60*time.Second); err != nil {
		return nil, fmt.Errorf("payment confirmation failed for transfer %s: %w", quote.TransferID, err)
	}

	return apiClient.Transfer.ExecuteToken(ctx, &types.TransferExecuteRequest{
		TransferID:       quote.TransferID,
		PaymentSignature: sig,
		FromAddress:      from,
	})
}
