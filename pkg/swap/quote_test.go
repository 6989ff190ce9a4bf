package swap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erebus/pkg/types"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func TestGetQuoteFromUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, solMint, q.Get("inputMint"))
		assert.Equal(t, usdcMint, q.Get("outputMint"))
		assert.Equal(t, "1000000000", q.Get("amount"))
		assert.Equal(t, "100", q.Get("slippageBps"))
		w.Write([]byte(`{
			"inputMint": "` + solMint + `",
			"outputMint": "` + usdcMint + `",
			"inAmount": "1000000000",
			"outAmount": "178500000",
			"otherAmountThreshold": "176715000",
			"swapMode": "ExactIn",
			"slippageBps": 100,
			"priceImpactPct": "0.02"
		}`))
	}))
	defer upstream.Close()

	c := NewClient(upstream.URL)

	quote, err := c.GetQuote(context.Background(), &types.SwapQuoteRequest{
		InputMint:   solMint,
		OutputMint:  usdcMint,
		Amount:      1_000_000_000,
		SlippageBps: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "178500000", quote.OutAmount)
	assert.Equal(t, "ExactIn", quote.SwapMode)
	assert.False(t, quote.Fallback)
}

func TestGetQuoteAppliesDefaultSlippage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("slippageBps"))
		w.Write([]byte(`{"outAmount": "1"}`))
	}))
	defer upstream.Close()

	c := NewClient(upstream.URL)
	_, err := c.GetQuote(context.Background(), &types.SwapQuoteRequest{
		InputMint:  solMint,
		OutputMint: usdcMint,
		Amount:     1000,
	})
	require.NoError(t, err)
}

func TestGetQuoteRejectsZeroAmount(t *testing.T) {
	c := NewClient("http://localhost:0")

	_, err := c.GetQuote(context.Background(), &types.SwapQuoteRequest{
		InputMint:  solMint,
		OutputMint: usdcMint,
		Amount:     0,
	})
	assert.Error(t, err)
}

func TestGetQuoteFallsBackWhenUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	c := NewClient(upstream.URL)

	// 1 SOL at $180 into USDC at $1, 50 bps slippage
	quote, err := c.GetQuote(context.Background(), &types.SwapQuoteRequest{
		InputMint:  solMint,
		OutputMint: usdcMint,
		Amount:     1_000_000_000,
	})
	require.NoError(t, err)

	assert.True(t, quote.Fallback)
	assert.Equal(t, "1000000000", quote.InAmount)
	assert.Equal(t, "179100000", quote.OutAmount)
	assert.Equal(t, "ExactIn", quote.SwapMode)
	assert.Equal(t, DefaultSlippageBps, quote.SlippageBps)
}

func TestFallbackQuoteUnknownMint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	c := NewClient(upstream.URL)

	_, err := c.GetQuote(context.Background(), &types.SwapQuoteRequest{
		InputMint:  "UnknownMint111111111111111111111111111111111",
		OutputMint: usdcMint,
		Amount:     1000,
	})
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestFallbackQuoteSlippageScaling(t *testing.T) {
	c := NewClient("")

	// 1 USDC into USDT at parity: out = 1e6 scaled by (1 - bps/10000)
	quote, err := c.fallbackQuote(&types.SwapQuoteRequest{
		InputMint:   usdcMint,
		OutputMint:  "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
		Amount:      1_000_000,
		SlippageBps: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "990000", quote.OutAmount)
	assert.Equal(t, "980100", quote.OtherAmountThreshold)
}
