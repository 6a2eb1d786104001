package domain

import "errors"

// Sentinel errors for issuance facts. Stores and infrastructure layers return
// these (optionally wrapped) so services and handlers can translate them into
// transport responses without string matching.
//
// Request-level errors are rejected at the boundary and never reach the state
// machine. AlreadyMember is success-equivalent for idempotent retries.
var (
	// Request-level: the forward request itself is unusable.
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrNonceReplay      = errors.New("nonce already consumed")
	ErrRequestExpired   = errors.New("request expired")

	// Issuance-level: terminal outcomes of a mint attempt.
	ErrAlreadyMember        = errors.New("identity already holds a membership")
	ErrInsufficientTreasury = errors.New("treasury balance below payout amount")
	ErrTransferFailed       = errors.New("payout transfer failed")
	ErrNonTransferable      = errors.New("membership tokens are non-transferable")

	// Relay-level: recoverable until the retry budget is spent.
	ErrRelayTimeout      = errors.New("relay confirmation timed out")
	ErrRelayRejected     = errors.New("relay rejected submission")
	ErrFallbackExhausted = errors.New("direct submission fallback failed")
)
