package types

import "time"

// TokenInfo describes a fungible token's display metadata
type TokenInfo struct {
	Address  string   `json:"address"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals uint8    `json:"decimals"`
	LogoURI  string   `json:"logoURI,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Source   string   `json:"source,omitempty"` // jupiter, cryptoapis, backend, fallback
}

// WalletToken is a TokenInfo enriched with the holder's balance
type WalletToken struct {
	TokenInfo
	Balance    float64 `json:"balance"`
	RawBalance string  `json:"raw_balance"`
}

// FeeBreakdown itemizes what a prepared transfer will cost
type FeeBreakdown struct {
	TransferAmount      float64 `json:"transfer_amount"`
	PrivacyFee          float64 `json:"privacy_fee"`
	EstimatedNetworkFee float64 `json:"estimated_network_fee"`
	Total               float64 `json:"total"`
}

// TransferPrepareRequest asks the relay to quote a native transfer.
// Amount is denominated in whole SOL.
type TransferPrepareRequest struct {
	FromAddress string  `json:"from_address"`
	ToAddress   string  `json:"to_address"`
	Amount      float64 `json:"amount"`
}

// TokenTransferPrepareRequest is the SPL-token variant of a prepare call
type TokenTransferPrepareRequest struct {
	FromAddress string  `json:"from_address"`
	ToAddress   string  `json:"to_address"`
	TokenMint   string  `json:"token_mint"`
	Amount      float64 `json:"amount"`
	Decimals    uint8   `json:"decimals"`
}

// TransferPrepareResponse carries the single-use quote for a prepared transfer
type TransferPrepareResponse struct {
	TransferID      string       `json:"transfer_id"`
	Amount          float64      `json:"amount"`
	FeeAmount       float64      `json:"fee_amount"`
	TotalToPay      float64      `json:"total_to_pay"`
	TreasuryAddress string       `json:"treasury_address"`
	Breakdown       FeeBreakdown `json:"breakdown"`
}

// TransferExecuteRequest redeems a quote after the treasury payment confirmed
type TransferExecuteRequest struct {
	TransferID       string `json:"transfer_id"`
	PaymentSignature string `json:"payment_signature"`
	FromAddress      string `json:"from_address"`
}

// TransferExecuteResponse reports both legs of a completed relay transfer
type TransferExecuteResponse struct {
	Success              bool    `json:"success"`
	TransferID           string  `json:"transfer_id"`
	PaymentSignature     string  `json:"payment_signature"`
	DestinationSignature string  `json:"destination_signature"`
	Amount               float64 `json:"amount"`
	Destination          string  `json:"destination"`
	PaymentExplorer      string  `json:"payment_explorer"`
	DestinationExplorer  string  `json:"destination_explorer"`
}

// Transfer record statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Transfer record types
const (
	TxTypeSwap          = "swap"
	TxTypeTransferSOL   = "transfer_sol"
	TxTypeTransferToken = "transfer_token"
	TxTypeBridge        = "bridge"
)

// TransferRecord is a persisted history entry for a relay transfer
type TransferRecord struct {
	ID                   string    `json:"id"`
	WalletAddress        string    `json:"wallet_address"`
	TxType               string    `json:"tx_type"`
	Amount               float64   `json:"amount"`
	Token                string    `json:"token"`
	Destination          string    `json:"destination,omitempty"`
	PaymentSignature     string    `json:"payment_signature,omitempty"`
	DestinationSignature string    `json:"destination_signature,omitempty"`
	Status               string    `json:"status"`
	Timestamp            time.Time `json:"timestamp"`
}

// SwapQuoteRequest asks for an indicative swap rate.
// Amount is in the input token's smallest unit.
type SwapQuoteRequest struct {
	InputMint   string `json:"input_mint"`
	OutputMint  string `json:"output_mint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippage_bps"`
}

// SwapQuote is the (possibly estimated) response to a quote request
type SwapQuote struct {
	InputMint            string `json:"inputMint"`
	OutputMint           string `json:"outputMint"`
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SwapMode             string `json:"swapMode"`
	SlippageBps          int    `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`
	Fallback             bool   `json:"fallback,omitempty"`
}

// BalanceResponse reports a wallet's native balance in SOL
type BalanceResponse struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
}

// TokenBalanceResponse reports a wallet's balance for one mint
type TokenBalanceResponse struct {
	Balance    float64 `json:"balance"`
	Decimals   uint8   `json:"decimals"`
	Mint       string  `json:"mint"`
	RawBalance string  `json:"raw_balance"`
}

// WalletTokensResponse lists all tokens a wallet holds
type WalletTokensResponse struct {
	Tokens []WalletToken `json:"tokens"`
	Count  int           `json:"count"`
}

// TransactionsResponse wraps a history query result
type TransactionsResponse struct {
	Transactions []TransferRecord `json:"transactions"`
}

// TreasuryResponse reports the relay's treasury address
type TreasuryResponse struct {
	Address string `json:"address"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the error body returned by the API
type ErrorResponse struct {
	Error string `json:"error"`
}
