package relay

import (
	"sync"
	"time"

	"erebus/pkg/types"
)

// Store holds pending and settled quotes keyed by transfer id, and owns
// every quote mutation after Put: status transitions go through the
// store so they are serialized against the lazy sweep. Expired pending
// quotes and completed quotes past their retention window are swept on
// access.
type Store struct {
	mu        sync.RWMutex
	quotes    map[string]*Quote
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
	onEvict   func(id string)
}

// NewStore creates a store whose pending quotes expire after ttl and
// whose completed quotes are dropped retention after settling
func NewStore(ttl, retention time.Duration) *Store {
	return &Store{
		quotes:    make(map[string]*Quote),
		ttl:       ttl,
		retention: retention,
		now:       time.Now,
	}
}

// OnEvict registers a hook called (under the store lock) with the id of
// every quote the sweep drops
func (s *Store) OnEvict(fn func(id string)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

// Put registers a freshly prepared quote and stamps its expiry
func (s *Store) Put(q *Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.CreatedAt = s.now()
	q.ExpiresAt = q.CreatedAt.Add(s.ttl)
	q.Status = QuotePending
	s.quotes[q.ID] = q
	s.sweepLocked()
}

// Get returns the quote for a transfer id, or ErrQuoteNotFound when the
// id is unknown, the quote expired unpaid, or its completed result aged
// out of retention
func (s *Store) Get(id string) (*Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[id]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	if s.sweepableLocked(q, s.now()) {
		s.evictLocked(id)
		return nil, ErrQuoteNotFound
	}
	return q, nil
}

// MarkForwarding records the verified payment signature and moves the
// quote out of pending
func (s *Store) MarkForwarding(q *Quote, paymentSignature string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.PaymentSignature = paymentSignature
	q.Status = QuoteForwarding
}

// Complete caches the successful execute response and settles the quote
func (s *Store) Complete(q *Quote, result *types.TransferExecuteResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.Result = result
	q.Status = QuoteCompleted
	q.SettledAt = s.now()
}

// MarkForwardFailed parks a verified-but-unforwarded quote so a later
// execute can retry it
func (s *Store) MarkForwardFailed(q *Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.Status = QuoteForwardFailed
}

// Count returns the number of live quotes
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}

// sweepLocked drops expired pending quotes and aged-out completed
// quotes. Caller holds the write lock.
func (s *Store) sweepLocked() {
	now := s.now()
	for id, q := range s.quotes {
		if s.sweepableLocked(q, now) {
			s.evictLocked(id)
		}
	}
}

// sweepableLocked reports whether a quote can be dropped: pending past
// its TTL, or completed past the retention window (the result survives
// in the history store). Quotes in forwarding or forward_failed are
// never dropped; they carry a custodied payment.
func (s *Store) sweepableLocked(q *Quote, now time.Time) bool {
	if q.Expired(now) {
		return true
	}
	return q.Status == QuoteCompleted && s.retention > 0 && now.After(q.SettledAt.Add(s.retention))
}

func (s *Store) evictLocked(id string) {
	delete(s.quotes, id)
	if s.onEvict != nil {
		s.onEvict(id)
	}
}
