package relay

import "errors"

// Failure classes surfaced by the relay protocol. The HTTP layer maps
// these to status codes; everything else wraps one of them.
var (
	// ErrInvalidAddress means an address failed base58 format validation
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidAmount means the requested amount is zero or negative
	ErrInvalidAmount = errors.New("amount must be greater than 0")

	// ErrQuoteNotFound means the transfer id is unknown or the quote expired
	ErrQuoteNotFound = errors.New("transfer quote not found or expired")

	// ErrPaymentVerificationFailed means the treasury payment could not be
	// verified on-chain. No forwarding happens in this case.
	ErrPaymentVerificationFailed = errors.New("payment verification failed")

	// ErrForwardingFailed means the payment was verified but the
	// treasury-to-destination transfer did not complete. Funds are held by
	// the treasury; the transfer can be retried with the same transfer id.
	ErrForwardingFailed = errors.New("forwarding to destination failed")
)
