package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"erebus/config"
	"erebus/pkg/chain"
	"erebus/pkg/history"
	"erebus/pkg/metadata"
	"erebus/pkg/relay"
	"erebus/pkg/server"
	"erebus/pkg/swap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay backend",
	Long: `Start the Erebus relay backend: the HTTP API, the treasury
forwarding worker and the transfer history store.

The treasury private key must be configured; generate one with
"solana-keygen" and set EREBUS_TREASURY_PRIVATE_KEY.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireTreasury(); err != nil {
		return err
	}

	treasury, err := solana.PrivateKeyFromBase58(cfg.TreasuryPrivateKey)
	if err != nil {
		return fmt.Errorf("invalid treasury private key: %w", err)
	}

	feeRate, err := decimal.NewFromString(cfg.FeeRate)
	if err != nil {
		return fmt.Errorf("invalid fee rate %q: %w", cfg.FeeRate, err)
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	chainClient := chain.New(cfg.RPCUrl)

	relayService := relay.NewService(relay.Options{
		Chain:               chainClient,
		History:             store,
		Treasury:            treasury,
		FeeRate:             feeRate,
		EstimatedNetworkFee: cfg.EstimatedNetworkFee,
		QuoteTTL:            cfg.QuoteTTL,
		ResultRetention:     cfg.ResultRetention,
	})
	defer relayService.Close()

	cryptoAPIs := metadata.NewCryptoAPIsSource(cfg.CryptoAPIsURL, cfg.CryptoAPIsKey, cfg.SolanaNetwork)
	resolver := metadata.NewResolver(
		metadata.NewBulkListSource(cfg.TokenListURL, metadata.PopularTokens()),
		cryptoAPIs,
		metadata.NewChainSource(chainClient),
	)

	srv := server.New(server.Deps{
		Relay:      relayService,
		Chain:      chainClient,
		Resolver:   resolver,
		CryptoAPIs: cryptoAPIs,
		Swap:       swap.NewClient(cfg.JupiterQuoteURL),
		History:    store,
	})

	listenAddr := cfg.ListenAddr
	if flagAddr, _ := cmd.Flags().GetString("listen"); flagAddr != "" {
		listenAddr = flagAddr
	}

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Println("serve: shutting down")
		if err := srv.Shutdown(); err != nil {
			log.Printf("serve: shutdown error: %v", err)
		}
	}()

	log.Printf("serve: treasury %s", relayService.TreasuryAddress())
	log.Printf("serve: listening on %s", listenAddr)
	return srv.Listen(listenAddr)
}
