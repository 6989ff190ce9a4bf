package relay

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"erebus/pkg/types"
)

// QuoteStatus is the server-side state of a prepared transfer
type QuoteStatus string

const (
	// QuotePending means the quote is issued and awaiting payment
	QuotePending QuoteStatus = "pending"
	// QuoteForwarding means the payment verified and the treasury leg is in flight
	QuoteForwarding QuoteStatus = "forwarding"
	// QuoteCompleted means both legs confirmed; the quote is consumed
	QuoteCompleted QuoteStatus = "completed"
	// QuoteForwardFailed means the payment verified but forwarding exhausted
	// its retries. The obligation remains and execute may be retried.
	QuoteForwardFailed QuoteStatus = "forward_failed"
)

// Asset identifies what a transfer moves: native SOL when Mint is empty,
// otherwise the SPL token with the given mint and decimals
type Asset struct {
	Mint     string
	Decimals uint8
}

// Native returns true for a plain SOL transfer
func (a Asset) Native() bool {
	return a.Mint == ""
}

// NativeAsset is the SOL asset descriptor
var NativeAsset = Asset{Decimals: 9}

// Quote is the server-owned record of a prepared transfer. It is created
// by prepare, consumed exactly once by execute, and never leaves the
// relay; clients only carry the opaque ID.
type Quote struct {
	ID          string
	FromAddress string
	ToAddress   string
	Asset       Asset

	// All amounts in the asset's smallest unit
	AmountRaw     uint64
	FeeRaw        uint64
	NetworkFeeRaw uint64
	TotalRaw      uint64

	TreasuryAddress string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	SettledAt       time.Time

	Status           QuoteStatus
	PaymentSignature string
	// Result caches the successful execute response so repeated execute
	// calls are idempotent
	Result *types.TransferExecuteResponse
}

// Expired reports whether an unpaid quote has passed its TTL. Quotes
// that progressed past pending never expire: once a payment exists the
// obligation must not vanish.
func (q *Quote) Expired(now time.Time) bool {
	return q.Status == QuotePending && now.After(q.ExpiresAt)
}

// uiAmount converts raw base units back to a display amount
func (q *Quote) uiAmount(raw uint64) float64 {
	f, _ := decimal.New(int64(raw), -int32(q.Asset.Decimals)).Float64()
	return f
}

// PrepareResponse renders the quote in the wire shape prepare returns
func (q *Quote) PrepareResponse() *types.TransferPrepareResponse {
	return &types.TransferPrepareResponse{
		TransferID:      q.ID,
		Amount:          q.uiAmount(q.AmountRaw),
		FeeAmount:       q.uiAmount(q.FeeRaw),
		TotalToPay:      q.uiAmount(q.TotalRaw),
		TreasuryAddress: q.TreasuryAddress,
		Breakdown: types.FeeBreakdown{
			TransferAmount:      q.uiAmount(q.AmountRaw),
			PrivacyFee:          q.uiAmount(q.FeeRaw),
			EstimatedNetworkFee: q.uiAmount(q.NetworkFeeRaw),
			Total:               q.uiAmount(q.TotalRaw),
		},
	}
}

// computeAmounts turns a display amount into exact base-unit figures.
// Amounts finer than the asset's smallest unit are rejected rather
// than rounded; the fee is amount * feeRate rounded to the nearest
// base unit.
func computeAmounts(amount decimal.Decimal, decimals uint8, feeRate decimal.Decimal, networkFee uint64) (amountRaw, feeRaw, totalRaw uint64, err error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, 0, 0, ErrInvalidAmount
	}

	scale := decimal.New(1, int32(decimals))
	raw := amount.Mul(scale)
	if !raw.IsInteger() {
		return 0, 0, 0, fmt.Errorf("%w: amount is finer than the asset's smallest unit", ErrInvalidAmount)
	}
	if raw.Cmp(decimal.New(1, 18)) >= 0 {
		return 0, 0, 0, fmt.Errorf("%w: amount too large", ErrInvalidAmount)
	}

	fee := raw.Mul(feeRate).Round(0)

	amountRaw = uint64(raw.IntPart())
	feeRaw = uint64(fee.IntPart())
	totalRaw = amountRaw + feeRaw + networkFee
	return amountRaw, feeRaw, totalRaw, nil
}
