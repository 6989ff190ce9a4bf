package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"erebus/pkg/types"
)

// MockChain is a mock implementation of ChainClient for testing
type MockChain struct {
	mock.Mock
}

func (m *MockChain) SendNative(ctx context.Context, signer solana.PrivateKey, to string, lamports uint64) (string, error) {
	args := m.Called(ctx, signer, to, lamports)
	return args.String(0), args.Error(1)
}

func (m *MockChain) SendToken(ctx context.Context, signer solana.PrivateKey, to, mint string, amount uint64) (string, error) {
	args := m.Called(ctx, signer, to, mint, amount)
	return args.String(0), args.Error(1)
}

func (m *MockChain) Confirm(ctx context.Context, signature string, timeout time.Duration) error {
	args := m.Called(ctx, signature, timeout)
	return args.Error(0)
}

func (m *MockChain) VerifyPayment(ctx context.Context, signature, from, to, mint string, minAmount uint64) error {
	args := m.Called(ctx, signature, from, to, mint, minAmount)
	return args.Error(0)
}

// MockRecorder is a mock implementation of Recorder for testing
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Save(ctx context.Context, record types.TransferRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type testRig struct {
	svc      *Service
	chain    *MockChain
	recorder *MockRecorder
	treasury string
	from     string
	to       string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	chain := new(MockChain)
	recorder := new(MockRecorder)
	treasury := solana.NewWallet().PrivateKey

	svc := NewService(Options{
		Chain:               chain,
		History:             recorder,
		Treasury:            treasury,
		FeeRate:             decimal.RequireFromString("0.005"),
		EstimatedNetworkFee: 5000,
		QuoteTTL:            5 * time.Minute,
		ConfirmTimeout:      time.Second,
		ForwardAttempts:     2,
		RetryBaseDelay:      time.Millisecond,
	})
	t.Cleanup(svc.Close)

	return &testRig{
		svc:      svc,
		chain:    chain,
		recorder: recorder,
		treasury: treasury.PublicKey().String(),
		from:     solana.NewWallet().PublicKey().String(),
		to:       solana.NewWallet().PublicKey().String(),
	}
}

func TestPrepareQuotesFee(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.svc.Prepare(&types.TransferPrepareRequest{
		FromAddress: rig.from,
		ToAddress:   rig.to,
		Amount:      1.0,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.TransferID)
	assert.Equal(t, 1.0, resp.Amount)
	assert.Equal(t, 0.005, resp.FeeAmount)
	assert.Equal(t, 1.005005, resp.TotalToPay)
	assert.Equal(t, rig.treasury, resp.TreasuryAddress)

	q, err := rig.svc.QuoteStore().Get(resp.TransferID)
	require.NoError(t, err)
	assert.Equal(t, QuotePending, q.Status)
}

func TestPrepareDistinctQuotesPerCall(t *testing.T) {
	rig := newTestRig(t)
	req := &types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 0.5}

	a, err := rig.svc.Prepare(req)
	require.NoError(t, err)
	b, err := rig.svc.Prepare(req)
	require.NoError(t, err)

	assert.NotEqual(t, a.TransferID, b.TransferID)
	assert.Equal(t, 2, rig.svc.QuoteStore().Count())
}

func TestPrepareRejectsInvalidInput(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: "not-base58", ToAddress: rig.to, Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: "0x1234", Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: -3})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPrepareTokenSkipsNetworkFee(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.svc.PrepareToken(&types.TokenTransferPrepareRequest{
		FromAddress: rig.from,
		ToAddress:   rig.to,
		TokenMint:   usdcMint,
		Amount:      25,
		Decimals:    6,
	})
	require.NoError(t, err)

	assert.Equal(t, 25.0, resp.Amount)
	assert.Equal(t, 0.125, resp.FeeAmount)
	assert.Equal(t, 25.125, resp.TotalToPay)
	assert.Equal(t, 0.0, resp.Breakdown.EstimatedNetworkFee)
}

func TestPrepareTokenRejectsBadMint(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.svc.PrepareToken(&types.TokenTransferPrepareRequest{
		FromAddress: rig.from,
		ToAddress:   rig.to,
		TokenMint:   "definitely-not-a-mint",
		Amount:      1,
	})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestExecuteUnknownTransfer(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.svc.Execute(context.Background(), &types.TransferExecuteRequest{
		TransferID:       "missing",
		PaymentSignature: "sig",
		FromAddress:      rig.from,
	})
	assert.ErrorIs(t, err, ErrQuoteNotFound)
	rig.chain.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteExpiredQuote(t *testing.T) {
	rig := newTestRig(t)

	now := time.Now()
	rig.svc.QuoteStore().now = func() time.Time { return now }

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	_, err = rig.svc.Execute(context.Background(), &types.TransferExecuteRequest{
		TransferID:       quote.TransferID,
		PaymentSignature: "pay-sig",
		FromAddress:      rig.from,
	})
	assert.ErrorIs(t, err, ErrQuoteNotFound)
	rig.chain.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteForwardsAndRecords(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	rig.chain.On("VerifyPayment", mock.Anything, "pay-sig", rig.from, rig.treasury, "", uint64(1_005_005_000)).Return(nil).Once()
	rig.chain.On("SendNative", mock.Anything, mock.Anything, rig.to, uint64(1_000_000_000)).Return("fwd-sig", nil).Once()
	rig.chain.On("Confirm", mock.Anything, "fwd-sig", mock.Anything).Return(nil).Once()
	rig.recorder.On("Save", mock.Anything, mock.MatchedBy(func(r types.TransferRecord) bool {
		return r.ID == quote.TransferID && r.Status == types.StatusConfirmed &&
			r.TxType == types.TxTypeTransferSOL && r.DestinationSignature == "fwd-sig"
	})).Return(nil).Once()

	resp, err := rig.svc.Execute(context.Background(), &types.TransferExecuteRequest{
		TransferID:       quote.TransferID,
		PaymentSignature: "pay-sig",
		FromAddress:      rig.from,
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "pay-sig", resp.PaymentSignature)
	assert.Equal(t, "fwd-sig", resp.DestinationSignature)
	assert.Equal(t, 1.0, resp.Amount)
	assert.Equal(t, rig.to, resp.Destination)
	assert.Contains(t, resp.PaymentExplorer, "pay-sig")
	assert.Contains(t, resp.DestinationExplorer, "fwd-sig")

	rig.chain.AssertExpectations(t)
	rig.recorder.AssertExpectations(t)
}

func TestExecuteIsIdempotent(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	rig.chain.On("VerifyPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fwd-sig", nil).Once()
	rig.chain.On("Confirm", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.recorder.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	req := &types.TransferExecuteRequest{TransferID: quote.TransferID, PaymentSignature: "pay-sig", FromAddress: rig.from}

	first, err := rig.svc.Execute(context.Background(), req)
	require.NoError(t, err)
	second, err := rig.svc.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Same(t, first, second)
	rig.chain.AssertExpectations(t)
}

func TestExecuteConcurrentCallsForwardOnce(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	rig.chain.On("VerifyPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fwd-sig", nil).Once()
	rig.chain.On("Confirm", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.recorder.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	req := &types.TransferExecuteRequest{TransferID: quote.TransferID, PaymentSignature: "pay-sig", FromAddress: rig.from}

	var wg sync.WaitGroup
	results := make([]*types.TransferExecuteResponse, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := rig.svc.Execute(context.Background(), req)
			assert.NoError(t, err)
			results[i] = resp
		}(i)
	}
	wg.Wait()

	for _, resp := range results {
		assert.Same(t, results[0], resp)
	}
	rig.chain.AssertExpectations(t)
}

// Prepare keeps running while an execute settles its quote; the store
// serializes the sweep against the status transitions, so this must be
// clean under the race detector.
func TestPrepareDuringExecute(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	rig.chain.On("VerifyPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fwd-sig", nil)
	rig.chain.On("Confirm", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	rig.recorder.On("Save", mock.Anything, mock.Anything).Return(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 0.25})
			assert.NoError(t, err)
		}
	}()

	resp, err := rig.svc.Execute(context.Background(), &types.TransferExecuteRequest{
		TransferID:       quote.TransferID,
		PaymentSignature: "pay-sig",
		FromAddress:      rig.from,
	})
	<-done
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 51, rig.svc.QuoteStore().Count())
}

func TestCompletedQuoteAgesOutWithItsLock(t *testing.T) {
	rig := newTestRig(t)

	now := time.Now()
	rig.svc.QuoteStore().now = func() time.Time { return now }

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	rig.chain.On("VerifyPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fwd-sig", nil).Once()
	rig.chain.On("Confirm", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.recorder.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	req := &types.TransferExecuteRequest{TransferID: quote.TransferID, PaymentSignature: "pay-sig", FromAddress: rig.from}
	_, err = rig.svc.Execute(context.Background(), req)
	require.NoError(t, err)

	// still cached within the retention window
	now = now.Add(30 * time.Minute)
	_, err = rig.svc.Execute(context.Background(), req)
	require.NoError(t, err)

	// aged out: quote and its per-transfer lock are both gone
	now = now.Add(2 * time.Hour)
	_, err = rig.svc.QuoteStore().Get(quote.TransferID)
	assert.ErrorIs(t, err, ErrQuoteNotFound)
	assert.Equal(t, 0, rig.svc.QuoteStore().Count())

	rig.svc.lockMu.Lock()
	_, held := rig.svc.locks[quote.TransferID]
	rig.svc.lockMu.Unlock()
	assert.False(t, held)

	_, err = rig.svc.Execute(context.Background(), req)
	assert.ErrorIs(t, err, ErrQuoteNotFound)
}

func TestExecuteRejectsWrongSender(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	_, err = rig.svc.Execute(context.Background(), &types.TransferExecuteRequest{
		TransferID:       quote.TransferID,
		PaymentSignature: "pay-sig",
		FromAddress:      solana.NewWallet().PublicKey().String(),
	})
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)
	rig.chain.AssertNotCalled(t, "SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteFailedVerificationLeavesQuotePending(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	rig.chain.On("VerifyPayment", mock.Anything, "bad-sig", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError).Once()

	req := &types.TransferExecuteRequest{TransferID: quote.TransferID, PaymentSignature: "bad-sig", FromAddress: rig.from}
	_, err = rig.svc.Execute(context.Background(), req)
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)
	rig.chain.AssertNotCalled(t, "SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// the quote survives and a corrected payment goes through
	rig.chain.On("VerifyPayment", mock.Anything, "good-sig", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fwd-sig", nil).Once()
	rig.chain.On("Confirm", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.recorder.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	req.PaymentSignature = "good-sig"
	resp, err := rig.svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestExecuteRetriesForwarding(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	rig.chain.On("VerifyPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError).Once()
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fwd-sig", nil).Once()
	rig.chain.On("Confirm", mock.Anything, "fwd-sig", mock.Anything).Return(nil).Once()
	rig.recorder.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	resp, err := rig.svc.Execute(context.Background(), &types.TransferExecuteRequest{
		TransferID:       quote.TransferID,
		PaymentSignature: "pay-sig",
		FromAddress:      rig.from,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	rig.chain.AssertExpectations(t)
}

func TestExecuteForwardFailureIsRetryable(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.Prepare(&types.TransferPrepareRequest{FromAddress: rig.from, ToAddress: rig.to, Amount: 1.0})
	require.NoError(t, err)

	rig.chain.On("VerifyPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError).Twice()
	rig.recorder.On("Save", mock.Anything, mock.MatchedBy(func(r types.TransferRecord) bool {
		return r.Status == types.StatusFailed
	})).Return(nil).Once()

	req := &types.TransferExecuteRequest{TransferID: quote.TransferID, PaymentSignature: "pay-sig", FromAddress: rig.from}
	_, err = rig.svc.Execute(context.Background(), req)
	assert.ErrorIs(t, err, ErrForwardingFailed)

	q, err := rig.svc.QuoteStore().Get(quote.TransferID)
	require.NoError(t, err)
	assert.Equal(t, QuoteForwardFailed, q.Status)

	// a later retry skips re-verification and forwards the custodied payment
	rig.chain.On("SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fwd-sig", nil).Once()
	rig.chain.On("Confirm", mock.Anything, "fwd-sig", mock.Anything).Return(nil).Once()
	rig.recorder.On("Save", mock.Anything, mock.MatchedBy(func(r types.TransferRecord) bool {
		return r.Status == types.StatusConfirmed
	})).Return(nil).Once()

	resp, err := rig.svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	rig.chain.AssertNumberOfCalls(t, "VerifyPayment", 1)
}

func TestExecuteTokenForwardsToken(t *testing.T) {
	rig := newTestRig(t)

	quote, err := rig.svc.PrepareToken(&types.TokenTransferPrepareRequest{
		FromAddress: rig.from,
		ToAddress:   rig.to,
		TokenMint:   usdcMint,
		Amount:      25,
		Decimals:    6,
	})
	require.NoError(t, err)

	// verification must carry the mint and the token-denominated total,
	// never a lamport figure
	rig.chain.On("VerifyPayment", mock.Anything, "pay-sig", rig.from, rig.treasury, usdcMint, uint64(25_125_000)).Return(nil).Once()
	rig.chain.On("SendToken", mock.Anything, mock.Anything, rig.to, usdcMint, uint64(25_000_000)).Return("fwd-sig", nil).Once()
	rig.chain.On("Confirm", mock.Anything, "fwd-sig", mock.Anything).Return(nil).Once()
	rig.recorder.On("Save", mock.Anything, mock.MatchedBy(func(r types.TransferRecord) bool {
		return r.TxType == types.TxTypeTransferToken && r.Token == usdcMint[:8]+"..."
	})).Return(nil).Once()

	resp, err := rig.svc.Execute(context.Background(), &types.TransferExecuteRequest{
		TransferID:       quote.TransferID,
		PaymentSignature: "pay-sig",
		FromAddress:      rig.from,
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, resp.Amount)
	rig.chain.AssertExpectations(t)
	rig.chain.AssertNotCalled(t, "SendNative", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
