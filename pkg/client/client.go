package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"erebus/pkg/types"
)

// Client is the typed SDK for the Erebus relay API. Calls are stateless
// request/response pairs; no retries happen at this layer.
type Client struct {
	baseURL string
	http    *http.Client

	Transfer     *TransferService
	Tokens       *TokensService
	Swap         *SwapService
	Balance      *BalanceService
	Transactions *TransactionsService
	Treasury     *TreasuryService
}

// New creates a client against the API base URL (without the /api path)
func New(apiURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(apiURL, "/") + "/api",
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	c.Transfer = &TransferService{client: c}
	c.Tokens = &TokensService{client: c}
	c.Swap = &SwapService{client: c}
	c.Balance = &BalanceService{client: c}
	c.Transactions = &TransactionsService{client: c}
	c.Treasury = &TreasuryService{client: c}

	return c
}

// SetTimeout overrides the default 30s request timeout
func (c *Client) SetTimeout(d time.Duration) {
	c.http.Timeout = d
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Pull the API's own error message out when the body carries one
		body, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(body) > 0 {
			var errorResp types.ErrorResponse
			if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil && errorResp.Error != "" {
				return fmt.Errorf("API error (status %d): %s", resp.StatusCode, errorResp.Error)
			}
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
