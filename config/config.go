package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Chain
	RPCUrl             string
	TreasuryPrivateKey string

	// Relay
	FeeRate             string // decimal string, e.g. "0.005"
	EstimatedNetworkFee uint64 // lamports
	QuoteTTL            time.Duration
	ResultRetention     time.Duration

	// Server
	ListenAddr string
	HistoryDB  string

	// Upstreams
	APIUrl          string // base URL the SDK/CLI talks to
	JupiterQuoteURL string
	TokenListURL    string
	CryptoAPIsURL   string
	CryptoAPIsKey   string
	SolanaNetwork   string

	// CLI wallet
	WalletPrivateKey string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".erebus")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("fee_rate", "0.005")
	viper.SetDefault("estimated_network_fee", 5000)
	viper.SetDefault("quote_ttl", "5m")
	viper.SetDefault("result_retention", "1h")
	viper.SetDefault("listen_addr", ":8001")
	viper.SetDefault("history_db", "erebus.db")
	viper.SetDefault("api_url", "http://localhost:8001")
	viper.SetDefault("jupiter_quote_url", "https://quote-api.jup.ag/v6/quote")
	viper.SetDefault("token_list_url", "https://token.jup.ag/all")
	viper.SetDefault("cryptoapis_url", "https://rest.cryptoapis.io")
	viper.SetDefault("network", "mainnet")

	// Read from environment variables
	viper.SetEnvPrefix("EREBUS")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	quoteTTL, err := time.ParseDuration(viper.GetString("quote_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid quote_ttl: %w", err)
	}

	resultRetention, err := time.ParseDuration(viper.GetString("result_retention"))
	if err != nil {
		return nil, fmt.Errorf("invalid result_retention: %w", err)
	}

	cfg := &Config{
		RPCUrl:              viper.GetString("rpc_url"),
		TreasuryPrivateKey:  viper.GetString("treasury_private_key"),
		FeeRate:             viper.GetString("fee_rate"),
		EstimatedNetworkFee: viper.GetUint64("estimated_network_fee"),
		QuoteTTL:            quoteTTL,
		ResultRetention:     resultRetention,
		ListenAddr:          viper.GetString("listen_addr"),
		HistoryDB:           viper.GetString("history_db"),
		APIUrl:              viper.GetString("api_url"),
		JupiterQuoteURL:     viper.GetString("jupiter_quote_url"),
		TokenListURL:        viper.GetString("token_list_url"),
		CryptoAPIsURL:       viper.GetString("cryptoapis_url"),
		CryptoAPIsKey:       viper.GetString("cryptoapis_key"),
		SolanaNetwork:       viper.GetString("network"),
		WalletPrivateKey:    viper.GetString("wallet_private_key"),
	}

	globalConfig = cfg
	return cfg, nil
}

// RequireTreasury validates that a treasury key is configured (server side)
func (c *Config) RequireTreasury() error {
	if c.TreasuryPrivateKey == "" {
		return fmt.Errorf("treasury key not found. Please set EREBUS_TREASURY_PRIVATE_KEY or add treasury_private_key to .erebus.yaml")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
