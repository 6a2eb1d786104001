package forwarder_test

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/domain"
	"mintgate/internal/forwarder"
	"mintgate/internal/forwarder/noncestore"
)

func newIdentity(t *testing.T) (domain.Address, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return domain.AddressFromPublicKey(pub), priv
}

func signedRequest(t *testing.T, priv ed25519.PrivateKey, from domain.Address, nonce uint64, validUntil int64) domain.ForwardRequest {
	t.Helper()
	return forwarder.Sign(priv, domain.ForwardRequest{
		From:       from,
		To:         "membership-contract",
		Value:      0,
		GasLimit:   100_000,
		Nonce:      nonce,
		ValidUntil: validUntil,
	})
}

func TestVerify_AcceptsValidRequest(t *testing.T) {
	from, priv := newIdentity(t)
	v := forwarder.New(noncestore.NewMemory())

	req := signedRequest(t, priv, from, 1, time.Now().Add(time.Hour).Unix())

	sender, err := v.Verify(req)
	require.NoError(t, err)
	assert.Equal(t, from, sender)
}

func TestVerify_RejectsTamperedRequest(t *testing.T) {
	from, priv := newIdentity(t)
	v := forwarder.New(noncestore.NewMemory())

	req := signedRequest(t, priv, from, 1, 0)
	req.Value = 42 // signed fields changed after signing

	_, err := v.Verify(req)
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
}

func TestVerify_RejectsSignatureFromOtherKey(t *testing.T) {
	from, _ := newIdentity(t)
	_, otherPriv := newIdentity(t)
	v := forwarder.New(noncestore.NewMemory())

	// Signed by a key that does not match the claimed From address.
	req := signedRequest(t, otherPriv, from, 1, 0)

	_, err := v.Verify(req)
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
}

func TestVerify_RejectsExpiredRequest(t *testing.T) {
	from, priv := newIdentity(t)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	v := forwarder.New(noncestore.NewMemory(), forwarder.WithClock(func() time.Time { return fixed }))

	req := signedRequest(t, priv, from, 1, fixed.Add(-time.Second).Unix())

	_, err := v.Verify(req)
	assert.ErrorIs(t, err, domain.ErrRequestExpired)
}

func TestVerify_ZeroValidUntilNeverExpires(t *testing.T) {
	from, priv := newIdentity(t)
	v := forwarder.New(noncestore.NewMemory())

	req := signedRequest(t, priv, from, 1, 0)

	_, err := v.Verify(req)
	assert.NoError(t, err)
}

func TestAccept_ConsumesNonceExactlyOnce(t *testing.T) {
	from, priv := newIdentity(t)
	v := forwarder.New(noncestore.NewMemory())
	ctx := context.Background()

	req := signedRequest(t, priv, from, 7, 0)

	require.NoError(t, v.Accept(ctx, req))
	err := v.Accept(ctx, req)
	assert.ErrorIs(t, err, domain.ErrNonceReplay)

	// A fresh nonce from the same identity is fine.
	next := signedRequest(t, priv, from, 8, 0)
	assert.NoError(t, v.Accept(ctx, next))
}

func TestDigest_DistinguishesFieldBoundaries(t *testing.T) {
	// Length prefixes must keep adjacent variable-length fields apart.
	a := domain.ForwardRequest{From: "ab", To: "c"}
	b := domain.ForwardRequest{From: "a", To: "bc"}
	assert.NotEqual(t, forwarder.Digest(a), forwarder.Digest(b))
}
