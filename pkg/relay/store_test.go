package relay

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutAndGet(t *testing.T) {
	store := NewStore(5*time.Minute, time.Hour)

	q := &Quote{ID: "t-1", Asset: NativeAsset}
	store.Put(q)

	got, err := store.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, QuotePending, got.Status)
	assert.Equal(t, q.CreatedAt.Add(5*time.Minute), got.ExpiresAt)
}

func TestStoreUnknownID(t *testing.T) {
	store := NewStore(5*time.Minute, time.Hour)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrQuoteNotFound)
}

func TestStoreExpiresPendingQuotes(t *testing.T) {
	now := time.Now()
	store := NewStore(5*time.Minute, time.Hour)
	store.now = func() time.Time { return now }

	store.Put(&Quote{ID: "t-1", Asset: NativeAsset})

	now = now.Add(5*time.Minute + time.Second)
	_, err := store.Get("t-1")
	assert.ErrorIs(t, err, ErrQuoteNotFound)
	assert.Equal(t, 0, store.Count())
}

func TestStoreKeepsPaidQuotesPastTTL(t *testing.T) {
	now := time.Now()
	store := NewStore(5*time.Minute, time.Hour)
	store.now = func() time.Time { return now }

	q := &Quote{ID: "t-1", Asset: NativeAsset}
	store.Put(q)
	store.MarkForwarding(q, "pay-sig")

	now = now.Add(24 * time.Hour)
	got, err := store.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, QuoteForwarding, got.Status)
	assert.Equal(t, "pay-sig", got.PaymentSignature)
}

func TestStoreDropsCompletedQuotesAfterRetention(t *testing.T) {
	now := time.Now()
	store := NewStore(5*time.Minute, time.Hour)
	store.now = func() time.Time { return now }

	var evicted []string
	store.OnEvict(func(id string) { evicted = append(evicted, id) })

	q := &Quote{ID: "t-1", Asset: NativeAsset}
	store.Put(q)
	store.MarkForwarding(q, "pay-sig")
	store.Complete(q, nil)

	now = now.Add(30 * time.Minute)
	_, err := store.Get("t-1")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = store.Get("t-1")
	assert.ErrorIs(t, err, ErrQuoteNotFound)
	assert.Equal(t, 0, store.Count())
	assert.Equal(t, []string{"t-1"}, evicted)
}

// a quote that holds a verified payment but failed to forward must stay
// retryable indefinitely
func TestStoreKeepsForwardFailedQuotes(t *testing.T) {
	now := time.Now()
	store := NewStore(5*time.Minute, time.Hour)
	store.now = func() time.Time { return now }

	q := &Quote{ID: "t-1", Asset: NativeAsset}
	store.Put(q)
	store.MarkForwarding(q, "pay-sig")
	store.MarkForwardFailed(q)

	now = now.Add(48 * time.Hour)
	got, err := store.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, QuoteForwardFailed, got.Status)
}

func TestStoreSweepsOnPut(t *testing.T) {
	now := time.Now()
	store := NewStore(5*time.Minute, time.Hour)
	store.now = func() time.Time { return now }

	store.Put(&Quote{ID: "old", Asset: NativeAsset})
	now = now.Add(10 * time.Minute)
	store.Put(&Quote{ID: "new", Asset: NativeAsset})

	assert.Equal(t, 1, store.Count())
}

func TestComputeAmountsFee(t *testing.T) {
	feeRate := decimal.RequireFromString("0.005")

	amountRaw, feeRaw, totalRaw, err := computeAmounts(decimal.NewFromFloat(1.0), 9, feeRate, 5000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), amountRaw)
	assert.Equal(t, uint64(5_000_000), feeRaw)
	assert.Equal(t, uint64(1_005_005_000), totalRaw)
}

func TestComputeAmountsRoundsFee(t *testing.T) {
	feeRate := decimal.RequireFromString("0.005")

	// 0.0000001 SOL = 100 lamports, fee 0.5 lamport rounds to 1
	_, feeRaw, totalRaw, err := computeAmounts(decimal.RequireFromString("0.0000001"), 9, feeRate, 5000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), feeRaw)
	assert.Equal(t, uint64(100+1+5000), totalRaw)
}

func TestComputeAmountsTokenDecimals(t *testing.T) {
	feeRate := decimal.RequireFromString("0.005")

	amountRaw, feeRaw, totalRaw, err := computeAmounts(decimal.NewFromFloat(25), 6, feeRate, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(25_000_000), amountRaw)
	assert.Equal(t, uint64(125_000), feeRaw)
	assert.Equal(t, uint64(25_125_000), totalRaw)
}

func TestComputeAmountsRejectsBadAmounts(t *testing.T) {
	feeRate := decimal.RequireFromString("0.005")

	for _, amount := range []string{"0", "-1", "-0.5"} {
		_, _, _, err := computeAmounts(decimal.RequireFromString(amount), 9, feeRate, 5000)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
	}

	// above the raw amount ceiling
	_, _, _, err := computeAmounts(decimal.New(1, 10), 9, feeRate, 5000)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestComputeAmountsRejectsSubBaseUnitAmounts(t *testing.T) {
	feeRate := decimal.RequireFromString("0.005")

	// 0.0000000001 SOL is a tenth of a lamport
	_, _, _, err := computeAmounts(decimal.RequireFromString("0.0000000001"), 9, feeRate, 5000)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// 2.5 base units of a 6-decimal token
	_, _, _, err = computeAmounts(decimal.RequireFromString("0.0000025"), 6, feeRate, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// exactly one base unit still passes
	amountRaw, _, _, err := computeAmounts(decimal.RequireFromString("0.000000001"), 9, feeRate, 5000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), amountRaw)
}

func TestPrepareResponseBreakdown(t *testing.T) {
	q := &Quote{
		ID:              "t-1",
		Asset:           NativeAsset,
		AmountRaw:       1_000_000_000,
		FeeRaw:          5_000_000,
		NetworkFeeRaw:   5000,
		TotalRaw:        1_005_005_000,
		TreasuryAddress: "treasury",
	}

	resp := q.PrepareResponse()
	assert.Equal(t, "t-1", resp.TransferID)
	assert.Equal(t, 1.0, resp.Amount)
	assert.Equal(t, 0.005, resp.FeeAmount)
	assert.Equal(t, 1.005005, resp.TotalToPay)
	assert.Equal(t, resp.TotalToPay, resp.Breakdown.Total)
	assert.InDelta(t, resp.Breakdown.TransferAmount+resp.Breakdown.PrivacyFee+resp.Breakdown.EstimatedNetworkFee, resp.Breakdown.Total, 1e-12)
}
