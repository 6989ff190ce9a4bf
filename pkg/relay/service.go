package relay

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"erebus/pkg/types"
)

const (
	// DefaultConfirmTimeout bounds how long a forwarding leg waits for
	// chain confirmation
	DefaultConfirmTimeout = 60 * time.Second
	// DefaultForwardAttempts is how many times a verified payment is
	// forwarded before the quote parks in forward_failed
	DefaultForwardAttempts = 5
	// DefaultRetryBaseDelay is the first backoff step between attempts
	DefaultRetryBaseDelay = 2 * time.Second
	// DefaultResultRetention is how long a completed quote keeps serving
	// its cached execute result before the store drops it
	DefaultResultRetention = time.Hour

	explorerBase = "https://solscan.io/tx/"
)

// ChainClient is the chain collaborator the relay drives. Implemented by
// pkg/chain; mocked in tests.
type ChainClient interface {
	SendNative(ctx context.Context, signer solana.PrivateKey, to string, lamports uint64) (string, error)
	SendToken(ctx context.Context, signer solana.PrivateKey, to, mint string, amount uint64) (string, error)
	Confirm(ctx context.Context, signature string, timeout time.Duration) error
	VerifyPayment(ctx context.Context, signature, from, to, mint string, minAmount uint64) error
}

// Recorder persists terminal transfer records for the history API
type Recorder interface {
	Save(ctx context.Context, record types.TransferRecord) error
}

// Options configures a relay Service
type Options struct {
	Chain               ChainClient
	History             Recorder
	Treasury            solana.PrivateKey
	FeeRate             decimal.Decimal
	EstimatedNetworkFee uint64 // lamports
	QuoteTTL            time.Duration

	// Overridable in tests; zero values take the defaults above
	ConfirmTimeout  time.Duration
	ForwardAttempts int
	RetryBaseDelay  time.Duration
	ResultRetention time.Duration
}

// Service runs the two-phase treasury-relay protocol: prepare issues a
// single-use quote, execute verifies the treasury payment on-chain and
// forwards the amount to the destination. Forwarding transactions are
// serialized through one worker so the treasury signer never races
// itself on blockhash ordering.
type Service struct {
	chain    ChainClient
	history  Recorder
	treasury solana.PrivateKey
	store    *Store

	feeRate    decimal.Decimal
	networkFee uint64

	confirmTimeout  time.Duration
	forwardAttempts int
	retryBaseDelay  time.Duration

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	forwardCh chan *forwardJob
	stopCh    chan struct{}
	stopOnce  sync.Once
}

type forwardJob struct {
	quote *Quote
	done  chan forwardResult
}

type forwardResult struct {
	signature string
	err       error
}

// NewService creates a relay service and starts its forwarding worker
func NewService(opts Options) *Service {
	retention := opts.ResultRetention
	if retention == 0 {
		retention = DefaultResultRetention
	}

	s := &Service{
		chain:           opts.Chain,
		history:         opts.History,
		treasury:        opts.Treasury,
		store:           NewStore(opts.QuoteTTL, retention),
		feeRate:         opts.FeeRate,
		networkFee:      opts.EstimatedNetworkFee,
		confirmTimeout:  opts.ConfirmTimeout,
		forwardAttempts: opts.ForwardAttempts,
		retryBaseDelay:  opts.RetryBaseDelay,
		locks:           make(map[string]*sync.Mutex),
		forwardCh:       make(chan *forwardJob),
		stopCh:          make(chan struct{}),
	}
	if s.confirmTimeout == 0 {
		s.confirmTimeout = DefaultConfirmTimeout
	}
	if s.forwardAttempts == 0 {
		s.forwardAttempts = DefaultForwardAttempts
	}
	if s.retryBaseDelay == 0 {
		s.retryBaseDelay = DefaultRetryBaseDelay
	}
	s.store.OnEvict(s.releaseLock)

	go s.forwardWorker()

	return s
}

// Close stops the forwarding worker
func (s *Service) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// TreasuryAddress returns the treasury public key
func (s *Service) TreasuryAddress() string {
	return s.treasury.PublicKey().String()
}

// QuoteStore exposes the store for inspection (tests, metrics)
func (s *Service) QuoteStore() *Store {
	return s.store
}

// Prepare quotes a native SOL transfer and stores the pending quote
func (s *Service) Prepare(req *types.TransferPrepareRequest) (*types.TransferPrepareResponse, error) {
	return s.prepare(req.FromAddress, req.ToAddress, req.Amount, NativeAsset)
}

// PrepareToken quotes an SPL token transfer. The estimated network fee
// is not folded into a token total: network fees are paid in SOL by the
// payer's wallet, not in the transferred token.
func (s *Service) PrepareToken(req *types.TokenTransferPrepareRequest) (*types.TransferPrepareResponse, error) {
	if _, err := solana.PublicKeyFromBase58(req.TokenMint); err != nil {
		return nil, fmt.Errorf("%w: bad token mint %q", ErrInvalidAddress, req.TokenMint)
	}
	decimals := req.Decimals
	if decimals == 0 {
		decimals = 9
	}
	return s.prepare(req.FromAddress, req.ToAddress, req.Amount, Asset{Mint: req.TokenMint, Decimals: decimals})
}

func (s *Service) prepare(from, to string, amount float64, asset Asset) (*types.TransferPrepareResponse, error) {
	if _, err := solana.PublicKeyFromBase58(from); err != nil {
		return nil, fmt.Errorf("%w: bad from address %q", ErrInvalidAddress, from)
	}
	if _, err := solana.PublicKeyFromBase58(to); err != nil {
		return nil, fmt.Errorf("%w: bad to address %q", ErrInvalidAddress, to)
	}

	networkFee := s.networkFee
	if !asset.Native() {
		networkFee = 0
	}

	amountRaw, feeRaw, totalRaw, err := computeAmounts(decimal.NewFromFloat(amount), asset.Decimals, s.feeRate, networkFee)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		ID:              uuid.NewString(),
		FromAddress:     from,
		ToAddress:       to,
		Asset:           asset,
		AmountRaw:       amountRaw,
		FeeRaw:          feeRaw,
		NetworkFeeRaw:   networkFee,
		TotalRaw:        totalRaw,
		TreasuryAddress: s.TreasuryAddress(),
	}
	s.store.Put(q)

	return q.PrepareResponse(), nil
}

// Execute redeems a quote: it verifies the payment transaction on-chain,
// then forwards the amount from the treasury to the destination. A
// repeated call for an already-completed transfer returns the cached
// result without a second forward.
func (s *Service) Execute(ctx context.Context, req *types.TransferExecuteRequest) (*types.TransferExecuteResponse, error) {
	lock := s.transferLock(req.TransferID)
	lock.Lock()
	defer lock.Unlock()

	q, err := s.store.Get(req.TransferID)
	if err != nil {
		return nil, err
	}

	if q.Status == QuoteCompleted {
		return q.Result, nil
	}

	if q.FromAddress != req.FromAddress {
		return nil, fmt.Errorf("%w: from address does not match the prepared transfer %s", ErrPaymentVerificationFailed, q.ID)
	}

	if q.Status == QuotePending {
		if err := s.chain.VerifyPayment(ctx, req.PaymentSignature, q.FromAddress, q.TreasuryAddress, q.Asset.Mint, q.TotalRaw); err != nil {
			return nil, fmt.Errorf("%w for transfer %s: %s", ErrPaymentVerificationFailed, q.ID, err)
		}
		s.store.MarkForwarding(q, req.PaymentSignature)
	}

	// Reached with status forwarding, or forward_failed on a retry.
	// The job is handed to the serialized worker and awaited to the end
	// even if the caller's context dies: once a payment is verified the
	// protocol drives to completion.
	job := &forwardJob{quote: q, done: make(chan forwardResult, 1)}
	select {
	case s.forwardCh <- job:
	case <-s.stopCh:
		return nil, fmt.Errorf("%w for transfer %s: relay shutting down", ErrForwardingFailed, q.ID)
	}
	res := <-job.done

	if res.err != nil {
		s.store.MarkForwardFailed(q)
		s.record(q, "", types.StatusFailed)
		return nil, fmt.Errorf("%w for transfer %s after %d attempts: %s", ErrForwardingFailed, q.ID, s.forwardAttempts, res.err)
	}

	resp := &types.TransferExecuteResponse{
		Success:              true,
		TransferID:           q.ID,
		PaymentSignature:     q.PaymentSignature,
		DestinationSignature: res.signature,
		Amount:               q.uiAmount(q.AmountRaw),
		Destination:          q.ToAddress,
		PaymentExplorer:      explorerBase + q.PaymentSignature,
		DestinationExplorer:  explorerBase + res.signature,
	}
	s.store.Complete(q, resp)
	s.record(q, res.signature, types.StatusConfirmed)

	return resp, nil
}

// transferLock returns the per-transfer mutex, creating it on first use.
// Concurrent execute calls with the same transfer id serialize here so
// exactly one forwarding transaction is ever submitted.
func (s *Service) transferLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// releaseLock drops the per-transfer mutex when the store evicts its
// quote, so the locks map does not grow with every transfer ever made
func (s *Service) releaseLock(id string) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	delete(s.locks, id)
}

func (s *Service) record(q *Quote, destinationSig, status string) {
	txType := types.TxTypeTransferSOL
	token := "SOL"
	if !q.Asset.Native() {
		txType = types.TxTypeTransferToken
		token = q.Asset.Mint[:8] + "..."
	}

	rec := types.TransferRecord{
		ID:                   q.ID,
		WalletAddress:        q.FromAddress,
		TxType:               txType,
		Amount:               q.uiAmount(q.AmountRaw),
		Token:                token,
		Destination:          q.ToAddress,
		PaymentSignature:     q.PaymentSignature,
		DestinationSignature: destinationSig,
		Status:               status,
		Timestamp:            time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.history.Save(ctx, rec); err != nil {
		log.Printf("relay: failed to record transfer %s: %v", q.ID, err)
	}
}

func (s *Service) forwardWorker() {
	for {
		select {
		case <-s.stopCh:
			return
		case job := <-s.forwardCh:
			sig, err := s.forwardWithRetry(job.quote)
			job.done <- forwardResult{signature: sig, err: err}
		}
	}
}

// forwardWithRetry submits the treasury-to-destination leg with bounded
// exponential backoff. The payment is already custodied, so every
// failure is logged and retried rather than dropped.
func (s *Service) forwardWithRetry(q *Quote) (string, error) {
	delay := s.retryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= s.forwardAttempts; attempt++ {
		sig, err := s.forwardOnce(q)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		log.Printf("relay: forwarding attempt %d/%d for transfer %s failed: %v", attempt, s.forwardAttempts, q.ID, err)

		if attempt < s.forwardAttempts {
			select {
			case <-s.stopCh:
				return "", lastErr
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return "", lastErr
}

func (s *Service) forwardOnce(q *Quote) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.confirmTimeout+30*time.Second)
	defer cancel()

	var sig string
	var err error
	if q.Asset.Native() {
		sig, err = s.chain.SendNative(ctx, s.treasury, q.ToAddress, q.AmountRaw)
	} else {
		sig, err = s.chain.SendToken(ctx, s.treasury, q.ToAddress, q.Asset.Mint, q.AmountRaw)
	}
	if err != nil {
		return "", err
	}

	if err := s.chain.Confirm(ctx, sig, s.confirmTimeout); err != nil {
		return "", err
	}

	return sig, nil
}
