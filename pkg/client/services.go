package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"erebus/pkg/types"
)

// Payer executes the client-side payment leg of a relay transfer:
// moving totalToPay from the sender's wallet to the treasury and
// returning the confirmed signature. Implemented over a local keypair
// by the CLI; a dApp would satisfy it with a wallet adapter.
type Payer interface {
	Pay(ctx context.Context, treasuryAddress string, amount float64) (string, error)
}

// TransferService drives the two-phase relay transfer protocol
type TransferService struct {
	client *Client
}

// PrepareSOL quotes a native transfer (step 1)
func (t *TransferService) PrepareSOL(ctx context.Context, req *types.TransferPrepareRequest) (*types.TransferPrepareResponse, error) {
	var resp types.TransferPrepareResponse
	if err := t.client.post(ctx, "/transfer/sol/prepare", req, &resp); err != nil {
		return nil, fmt.Errorf("prepare failed: %w", err)
	}
	return &resp, nil
}

// ExecuteSOL redeems a native-transfer quote after paying the treasury (step 2)
func (t *TransferService) ExecuteSOL(ctx context.Context, req *types.TransferExecuteRequest) (*types.TransferExecuteResponse, error) {
	var resp types.TransferExecuteResponse
	if err := t.client.post(ctx, "/transfer/sol/execute", req, &resp); err != nil {
		return nil, fmt.Errorf("execute failed: %w", err)
	}
	return &resp, nil
}

// PrepareToken quotes an SPL token transfer
func (t *TransferService) PrepareToken(ctx context.Context, req *types.TokenTransferPrepareRequest) (*types.TransferPrepareResponse, error) {
	var resp types.TransferPrepareResponse
	if err := t.client.post(ctx, "/transfer/token/prepare", req, &resp); err != nil {
		return nil, fmt.Errorf("prepare failed: %w", err)
	}
	return &resp, nil
}

// ExecuteToken redeems a token-transfer quote
func (t *TransferService) ExecuteToken(ctx context.Context, req *types.TransferExecuteRequest) (*types.TransferExecuteResponse, error) {
	var resp types.TransferExecuteResponse
	if err := t.client.post(ctx, "/transfer/token/execute", req, &resp); err != nil {
		return nil, fmt.Errorf("execute failed: %w", err)
	}
	return &resp, nil
}

// SendNative runs the full native transfer flow: prepare, pay the
// treasury through the payer, execute. The payer must block until its
// payment transaction confirms.
func (t *TransferService) SendNative(ctx context.Context, payer Payer, from, to string, amount float64) (*types.TransferExecuteResponse, error) {
	quote, err := t.PrepareSOL(ctx, &types.TransferPrepareRequest{
		FromAddress: from,
		ToAddress:   to,
		Amount:      amount,
	})
	if err != nil {
		return nil, err
	}

	signature, err := payer.Pay(ctx, quote.TreasuryAddress, quote.TotalToPay)
	if err != nil {
		return nil, fmt.Errorf("payment failed for transfer %s: %w", quote.TransferID, err)
	}

	return t.ExecuteSOL(ctx, &types.TransferExecuteRequest{
		TransferID:       quote.TransferID,
		PaymentSignature: signature,
		FromAddress:      from,
	})
}

// TokensService reads token lists and metadata
type TokensService struct {
	client *Client
}

// List returns the curated popular token list
func (t *TokensService) List(ctx context.Context) ([]types.TokenInfo, error) {
	var tokens []types.TokenInfo
	if err := t.client.get(ctx, "/token-list", &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Info resolves metadata for a mint through the server's fallback chain
func (t *TokensService) Info(ctx context.Context, mint string) (*types.TokenInfo, error) {
	var info types.TokenInfo
	if err := t.client.get(ctx, "/token-info/"+url.PathEscape(mint), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Metadata queries the CryptoAPIs proxy for extended metadata
func (t *TokensService) Metadata(ctx context.Context, mint, network string) (*types.TokenInfo, error) {
	path := "/token-metadata/cryptoapis/" + url.PathEscape(mint)
	if network != "" {
		path += "?network=" + url.QueryEscape(network)
	}
	var info types.TokenInfo
	if err := t.client.get(ctx, path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// WalletTokens lists a wallet's holdings with metadata and balances
func (t *TokensService) WalletTokens(ctx context.Context, address string) (*types.WalletTokensResponse, error) {
	var resp types.WalletTokensResponse
	if err := t.client.get(ctx, "/wallet-tokens/"+url.PathEscape(address), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SwapService fetches indicative swap quotes
type SwapService struct {
	client *Client
}

// Quote returns the (possibly estimated) quote for a swap
func (s *SwapService) Quote(ctx context.Context, req *types.SwapQuoteRequest) (*types.SwapQuote, error) {
	var quote types.SwapQuote
	if err := s.client.post(ctx, "/swap/quote", req, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// BalanceService reads wallet balances
type BalanceService struct {
	client *Client
}

// SOL returns the native balance in SOL
func (b *BalanceService) SOL(ctx context.Context, address string) (float64, error) {
	var resp types.BalanceResponse
	if err := b.client.get(ctx, "/balance/"+url.PathEscape(address), &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// Token returns the balance of one mint in a wallet
func (b *BalanceService) Token(ctx context.Context, wallet, mint string) (*types.TokenBalanceResponse, error) {
	var resp types.TokenBalanceResponse
	path := "/token-balance/" + url.PathEscape(wallet) + "/" + url.PathEscape(mint)
	if err := b.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TransactionsService queries transfer history
type TransactionsService struct {
	client *Client
}

// History returns a wallet's transfer records, newest first
func (t *TransactionsService) History(ctx context.Context, address string, limit int) ([]types.TransferRecord, error) {
	path := "/transactions/" + url.PathEscape(address)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp types.TransactionsResponse
	if err := t.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// TreasuryService reads treasury facts
type TreasuryService struct {
	client *Client
}

// Address returns the relay's treasury address
func (t *TreasuryService) Address(ctx context.Context) (string, error) {
	var resp types.TreasuryResponse
	if err := t.client.get(ctx, "/treasury/address", &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}
