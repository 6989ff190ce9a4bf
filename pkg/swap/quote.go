package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"erebus/pkg/metadata"
	"erebus/pkg/types"
)

// ErrQuoteUnavailable means neither the upstream nor the local
// estimator could price the pair
var ErrQuoteUnavailable = errors.New("swap quote unavailable")

// DefaultSlippageBps is applied when a request leaves slippage unset
const DefaultSlippageBps = 50

// estimatedPrices backs the fallback estimator when the quote upstream
// is unreachable. Indicative USD prices for the curated token list.
var estimatedPrices = map[string]float64{
	"SOL": 180.0, "USDC": 1.0, "USDT": 1.0, "ETH": 3200.0,
	"mSOL": 195.0, "stSOL": 195.0, "JitoSOL": 198.0,
	"BONK": 0.000025, "POPCAT": 0.85, "PYTH": 0.45,
}

// Client fetches indicative swap quotes from an aggregator, degrading
// to a locally estimated quote when the upstream is down. Estimated
// quotes are marked Fallback so strict callers can reject them.
type Client struct {
	quoteURL string
	http     *http.Client
}

// NewClient creates a quote client against the given aggregator endpoint
func NewClient(quoteURL string) *Client {
	return &Client{
		quoteURL: quoteURL,
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

// GetQuote returns an indicative quote for swapping amount (smallest
// units of the input mint) into the output mint
func (c *Client) GetQuote(ctx context.Context, req *types.SwapQuoteRequest) (*types.SwapQuote, error) {
	if req.Amount == 0 {
		return nil, fmt.Errorf("swap amount must be greater than 0")
	}
	if req.SlippageBps <= 0 {
		req.SlippageBps = DefaultSlippageBps
	}

	quote, err := c.fetchQuote(ctx, req)
	if err != nil {
		// Quote failures are not critical: degrade to the estimator and
		// let the response carry the fallback marker
		log.Printf("swap: upstream quote failed (%v), using estimated pricing", err)
		return c.fallbackQuote(req)
	}

	return quote, nil
}

func (c *Client) fetchQuote(ctx context.Context, req *types.SwapQuoteRequest) (*types.SwapQuote, error) {
	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	params.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	params.Set("onlyDirectRoutes", "false")
	params.Set("asLegacyTransaction", "false")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Surface the upstream's own error message when it has one
		body, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(body) > 0 {
			var errorResp map[string]interface{}
			if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil {
				if message, ok := errorResp["error"].(string); ok {
					return nil, fmt.Errorf("quote API error (status %d): %s", resp.StatusCode, message)
				}
			}
		}
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var quote types.SwapQuote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}

	return &quote, nil
}

// fallbackQuote estimates the output amount from indicative prices over
// the curated token list, then applies slippage
func (c *Client) fallbackQuote(req *types.SwapQuoteRequest) (*types.SwapQuote, error) {
	inputToken, ok := metadata.PopularToken(req.InputMint)
	if !ok {
		return nil, fmt.Errorf("%w: unknown input mint %s", ErrQuoteUnavailable, req.InputMint)
	}
	outputToken, ok := metadata.PopularToken(req.OutputMint)
	if !ok {
		return nil, fmt.Errorf("%w: unknown output mint %s", ErrQuoteUnavailable, req.OutputMint)
	}

	inputPrice, ok := estimatedPrices[inputToken.Symbol]
	if !ok {
		inputPrice = 1.0
	}
	outputPrice, ok := estimatedPrices[outputToken.Symbol]
	if !ok {
		outputPrice = 1.0
	}

	inputAmountUI := float64(req.Amount) / pow10(inputToken.Decimals)
	inputValueUSD := inputAmountUI * inputPrice
	outputAmountUI := inputValueUSD / outputPrice
	outputAmount := uint64(outputAmountUI * pow10(outputToken.Decimals))

	slippageFactor := 1 - float64(req.SlippageBps)/10000
	outputAmount = uint64(float64(outputAmount) * slippageFactor)

	return &types.SwapQuote{
		InputMint:            req.InputMint,
		OutputMint:           req.OutputMint,
		InAmount:             strconv.FormatUint(req.Amount, 10),
		OutAmount:            strconv.FormatUint(outputAmount, 10),
		OtherAmountThreshold: strconv.FormatUint(uint64(float64(outputAmount)*0.99), 10),
		SwapMode:             "ExactIn",
		SlippageBps:          req.SlippageBps,
		PriceImpactPct:       "0.1",
		Fallback:             true,
	}, nil
}

func pow10(decimals uint8) float64 {
	result := 1.0
	for i := uint8(0); i < decimals; i++ {
		result *= 10
	}
	return result
}
