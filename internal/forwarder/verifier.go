// Package forwarder validates signed forward requests before anything else
// touches them, decoupling who pays gas (the relay) from who acts (the
// signer). Verification happens strictly before any state mutation.
package forwarder

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"mintgate/internal/domain"
)

// NonceStore marks nonces consumed. Consume must be atomic: it returns true
// exactly once per (from, nonce) pair across all callers.
type NonceStore interface {
	Consume(ctx context.Context, from domain.Address, nonce uint64) (bool, error)
}

// Verifier checks forward requests against the identity they claim.
type Verifier struct {
	nonces NonceStore
	now    func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock fixes the expiry clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New creates a Verifier backed by the given nonce store.
func New(nonces NonceStore, opts ...Option) *Verifier {
	v := &Verifier{nonces: nonces, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the signature and expiry of a request and returns the
// effective sender. It has no side effects; call Accept to consume the nonce
// once the request is actually going to execute.
func (v *Verifier) Verify(req domain.ForwardRequest) (domain.Address, error) {
	pub, err := req.From.PublicKey()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}
	if len(req.Signature) != ed25519.SignatureSize || !ed25519.Verify(pub, Digest(req), req.Signature) {
		return "", domain.ErrSignatureInvalid
	}
	if req.ValidUntil != 0 && v.now().Unix() > req.ValidUntil {
		return "", domain.ErrRequestExpired
	}
	return req.From, nil
}

// Accept consumes the request nonce, atomically binding acceptance to
// execution. A nonce is never released afterwards, so a verified request
// whose execution fails cannot be replayed with the same nonce.
func (v *Verifier) Accept(ctx context.Context, req domain.ForwardRequest) error {
	ok, err := v.nonces.Consume(ctx, req.From, req.Nonce)
	if err != nil {
		return fmt.Errorf("consume nonce: %w", err)
	}
	if !ok {
		return domain.ErrNonceReplay
	}
	return nil
}
