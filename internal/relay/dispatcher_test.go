package relay_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"mintgate/internal/chain"
	"mintgate/internal/domain"
	"mintgate/internal/forwarder"
	"mintgate/internal/forwarder/noncestore"
	"mintgate/internal/issuance"
	"mintgate/internal/relay"
	"mintgate/internal/relay/mocks"
	"mintgate/internal/treasury"
	"mintgate/pkg/platform/circuit"
)

// fakeRelay scripts relay behavior per submission. When a step has no error,
// the "network" executes the mint itself and returns a confirmed receipt,
// which is what a real relay does on our behalf.
type fakeRelay struct {
	mu        sync.Mutex
	svc       *issuance.Service
	steps     []error // error per submission; nil means confirm
	submits   int
	lastToken uint64
	// mintBeforeFailing simulates a lost confirmation: the mint lands on
	// chain but the step error is still returned to the dispatcher.
	mintBeforeFailing bool
}

func (f *fakeRelay) SubmitForward(ctx context.Context, req domain.ForwardRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.submits
	f.submits++
	var step error
	if i < len(f.steps) {
		step = f.steps[i]
	}
	if step != nil {
		if f.mintBeforeFailing {
			_, _ = f.svc.Mint(ctx, req.From)
		}
		return "", step
	}
	rec, err := f.svc.Mint(ctx, req.From)
	if err != nil {
		return "", domain.ErrRelayRejected
	}
	f.lastToken = rec.TokenID
	return "tx-ok", nil
}

func (f *fakeRelay) AwaitReceipt(_ context.Context, txHash string) (relay.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tokenID := f.lastToken
	return relay.Receipt{TxHash: txHash, Status: relay.ReceiptConfirmed, TokenID: &tokenID}, nil
}

type harness struct {
	dispatcher *relay.Dispatcher
	svc        *issuance.Service
	ledger     *chain.Ledger
	treasury   *treasury.Manager
	attempts   *relay.AttemptStore
	verifier   *forwarder.Verifier
}

func fastPolicy() relay.Policy {
	return relay.Policy{
		MaxRetries:   3,
		BackoffBase:  time.Millisecond,
		BackoffCap:   4 * time.Millisecond,
		RelayTimeout: 100 * time.Millisecond,
	}
}

func newHarness(t *testing.T, balance domain.Amount, client relay.Client) *harness {
	t.Helper()
	ledger := chain.New()
	tm := treasury.New(ledger, "treasury", 30_000_000, 100_000_000, slog.Default())
	if balance > 0 {
		require.NoError(t, tm.Credit(context.Background(), balance))
	}
	svc := issuance.New(ledger, tm, slog.Default())
	verifier := forwarder.New(noncestore.NewMemory())
	attempts := relay.NewAttemptStore()
	d := relay.New(verifier, client, svc, svc, attempts, slog.Default(),
		relay.WithPolicy(fastPolicy()),
		relay.WithBreaker(circuit.New("relay", circuit.WithFailureThreshold(100))),
	)
	return &harness{dispatcher: d, svc: svc, ledger: ledger, treasury: tm, attempts: attempts, verifier: verifier}
}

func newIdentity(t *testing.T) (domain.Address, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return domain.AddressFromPublicKey(pub), priv
}

func signedRequest(t *testing.T, priv ed25519.PrivateKey, from domain.Address, nonce uint64) domain.ForwardRequest {
	t.Helper()
	return forwarder.Sign(priv, domain.ForwardRequest{
		From:     from,
		To:       "membership-contract",
		GasLimit: 100_000,
		Nonce:    nonce,
	})
}

func TestDispatch_RejectsInvalidSignatureAtBoundary(t *testing.T) {
	h := newHarness(t, 300_000_000, &fakeRelay{})
	from, priv := newIdentity(t)

	req := signedRequest(t, priv, from, 1)
	req.GasLimit = 999 // tamper after signing

	_, err := h.dispatcher.Dispatch(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)

	// Boundary rejections never create attempts or consume nonces.
	assert.Empty(t, h.attempts.ListByIdentity(context.Background(), from))
	assert.NoError(t, h.verifier.Accept(context.Background(), signedRequest(t, priv, from, 1)))
}

func TestDispatch_FallsBackAfterRelayRetriesExhausted(t *testing.T) {
	from, priv := newIdentity(t)

	// Every relay submission times out; issuance must still land via the
	// direct route with the correct token id.
	fr := &fakeRelay{steps: []error{
		domain.ErrRelayTimeout, domain.ErrRelayTimeout,
		domain.ErrRelayTimeout, domain.ErrRelayTimeout,
	}}
	h := newHarness(t, 300_000_000, fr)
	fr.svc = h.svc

	outcome, err := h.dispatcher.Dispatch(context.Background(), signedRequest(t, priv, from, 1))
	require.NoError(t, err)

	assert.Equal(t, relay.OutcomeIssued, outcome.Status)
	require.NotNil(t, outcome.TokenID)
	assert.Equal(t, uint64(0), *outcome.TokenID)
	assert.Equal(t, 4, fr.submits) // initial + 3 retries

	attempt, ok := h.attempts.Get(context.Background(), outcome.AttemptID)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptConfirmed, attempt.Status)
	assert.Equal(t, domain.RouteDirect, attempt.Route)
	assert.Equal(t, 3, attempt.RetryCount)
}

func TestDispatch_LostConfirmationShortCircuitsOnRetry(t *testing.T) {
	from, priv := newIdentity(t)

	// First submission executes the mint on chain but the confirmation is
	// lost; the pre-retry idempotence check must detect the landed mint.
	fr := &fakeRelay{steps: []error{domain.ErrRelayTimeout}, mintBeforeFailing: true}
	h := newHarness(t, 300_000_000, fr)
	fr.svc = h.svc

	outcome, err := h.dispatcher.Dispatch(context.Background(), signedRequest(t, priv, from, 1))
	require.NoError(t, err)

	assert.Equal(t, relay.OutcomeIssued, outcome.Status)
	require.NotNil(t, outcome.TokenID)
	assert.Equal(t, uint64(0), *outcome.TokenID)
	assert.Equal(t, 1, fr.submits)
	assert.Equal(t, uint64(1), h.ledger.NextTokenID()) // exactly one mint
}

func TestDispatch_ResubmissionReportsAlreadyIssued(t *testing.T) {
	from, priv := newIdentity(t)
	fr := &fakeRelay{steps: []error{domain.ErrRelayTimeout, domain.ErrRelayTimeout, domain.ErrRelayTimeout, domain.ErrRelayTimeout}}
	h := newHarness(t, 300_000_000, fr)
	fr.svc = h.svc

	first, err := h.dispatcher.Dispatch(context.Background(), signedRequest(t, priv, from, 1))
	require.NoError(t, err)
	require.Equal(t, relay.OutcomeIssued, first.Status)
	balance := h.treasury.Balance()
	events := len(h.ledger.RecentEvents(0))

	// Same identity, fresh nonce, after confirmation.
	second, err := h.dispatcher.Dispatch(context.Background(), signedRequest(t, priv, from, 2))
	require.NoError(t, err)

	assert.Equal(t, relay.OutcomeAlreadyIssued, second.Status)
	require.NotNil(t, second.TokenID)
	assert.Equal(t, *first.TokenID, *second.TokenID)
	assert.Equal(t, balance, h.treasury.Balance())
	assert.Equal(t, events, len(h.ledger.RecentEvents(0)))
}

func TestDispatch_NonceReplayFailsWhenNotMember(t *testing.T) {
	from, priv := newIdentity(t)
	fr := &fakeRelay{steps: []error{domain.ErrRelayTimeout, domain.ErrRelayTimeout, domain.ErrRelayTimeout, domain.ErrRelayTimeout}}
	h := newHarness(t, 10_000_000, fr) // below payout: fallback fails too
	fr.svc = h.svc

	req := signedRequest(t, priv, from, 1)
	first, err := h.dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, relay.OutcomeFailed, first.Status)

	// The nonce was consumed at acceptance and is not replayable even
	// though execution failed.
	second, err := h.dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeFailed, second.Status)
	assert.ErrorIs(t, second.Err, domain.ErrNonceReplay)
}

func TestDispatch_InsufficientTreasuryIsTerminal(t *testing.T) {
	from, priv := newIdentity(t)
	fr := &fakeRelay{steps: []error{domain.ErrRelayRejected, domain.ErrRelayRejected, domain.ErrRelayRejected, domain.ErrRelayRejected}}
	h := newHarness(t, 10_000_000, fr)
	fr.svc = h.svc

	outcome, err := h.dispatcher.Dispatch(context.Background(), signedRequest(t, priv, from, 1))
	require.NoError(t, err)

	assert.Equal(t, relay.OutcomeFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, domain.ErrInsufficientTreasury)
	assert.Equal(t, domain.Amount(10_000_000), h.treasury.Balance())
	assert.Equal(t, uint64(0), h.ledger.NextTokenID())
}

func TestDispatch_OpenBreakerGoesStraightToFallback(t *testing.T) {
	from, priv := newIdentity(t)
	fr := &fakeRelay{}
	h := newHarness(t, 300_000_000, fr)
	fr.svc = h.svc

	breaker := circuit.New("relay", circuit.WithFailureThreshold(1))
	breaker.RecordFailure() // open

	d := relay.New(h.verifier, fr, h.svc, h.svc, h.attempts, slog.Default(),
		relay.WithPolicy(fastPolicy()),
		relay.WithBreaker(breaker),
	)

	outcome, err := d.Dispatch(context.Background(), signedRequest(t, priv, from, 1))
	require.NoError(t, err)

	assert.Equal(t, relay.OutcomeIssued, outcome.Status)
	assert.Equal(t, 0, fr.submits)

	attempt, ok := h.attempts.Get(context.Background(), outcome.AttemptID)
	require.True(t, ok)
	assert.Equal(t, domain.RouteDirect, attempt.Route)
}

func TestDispatch_RelayRetriedAfterBreakerCooldown(t *testing.T) {
	from, priv := newIdentity(t)
	fr := &fakeRelay{}
	h := newHarness(t, 300_000_000, fr)
	fr.svc = h.svc

	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("relay",
		circuit.WithFailureThreshold(1),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return clock }),
	)
	breaker.RecordFailure() // open

	d := relay.New(h.verifier, fr, h.svc, h.svc, h.attempts, slog.Default(),
		relay.WithPolicy(fastPolicy()),
		relay.WithBreaker(breaker),
	)

	// A healthy relay must be tried again once the cooldown elapses, not
	// bypassed for the rest of the process lifetime.
	clock = clock.Add(2 * time.Minute)

	outcome, err := d.Dispatch(context.Background(), signedRequest(t, priv, from, 1))
	require.NoError(t, err)

	assert.Equal(t, relay.OutcomeIssued, outcome.Status)
	assert.Equal(t, 1, fr.submits)
	assert.False(t, breaker.IsOpen())

	attempt, ok := h.attempts.Get(context.Background(), outcome.AttemptID)
	require.True(t, ok)
	assert.Equal(t, domain.RouteRelay, attempt.Route)
}

type failingExecutor struct{ err error }

func (e failingExecutor) Mint(context.Context, domain.Address) (domain.MembershipRecord, error) {
	return domain.MembershipRecord{}, e.err
}

func TestDispatch_OpenBreakerFallbackErrorOmitsNilRelayError(t *testing.T) {
	from, priv := newIdentity(t)
	fr := &fakeRelay{}
	h := newHarness(t, 300_000_000, fr)
	fr.svc = h.svc

	breaker := circuit.New("relay", circuit.WithFailureThreshold(1))
	breaker.RecordFailure() // open, relay never tried

	d := relay.New(h.verifier, fr, failingExecutor{err: errors.New("chain unavailable")}, h.svc, h.attempts, slog.Default(),
		relay.WithPolicy(fastPolicy()),
		relay.WithBreaker(breaker),
	)

	outcome, err := d.Dispatch(context.Background(), signedRequest(t, priv, from, 1))
	require.NoError(t, err)

	assert.Equal(t, relay.OutcomeFailed, outcome.Status)
	require.ErrorIs(t, outcome.Err, domain.ErrFallbackExhausted)
	assert.Contains(t, outcome.Err.Error(), "chain unavailable")
	assert.NotContains(t, outcome.Err.Error(), "<nil>")
}

func TestDispatch_ConcurrentSameIdentityCoalesces(t *testing.T) {
	from, priv := newIdentity(t)
	fr := &fakeRelay{steps: []error{domain.ErrRelayTimeout, domain.ErrRelayTimeout, domain.ErrRelayTimeout, domain.ErrRelayTimeout}}
	h := newHarness(t, 300_000_000, fr)
	fr.svc = h.svc

	req := signedRequest(t, priv, from, 1)

	const callers = 8
	outcomes := make(chan relay.Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.dispatcher.Dispatch(context.Background(), req)
			require.NoError(t, err)
			outcomes <- out
		}()
	}
	wg.Wait()
	close(outcomes)

	for out := range outcomes {
		assert.Contains(t, []relay.OutcomeStatus{relay.OutcomeIssued, relay.OutcomeAlreadyIssued}, out.Status)
	}
	assert.Equal(t, uint64(1), h.ledger.NextTokenID())
}

func TestDispatch_SubmitCalledOncePerTry(t *testing.T) {
	from, priv := newIdentity(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().
		SubmitForward(gomock.Any(), gomock.Any()).
		Return("", domain.ErrRelayTimeout).
		Times(4) // initial + 3 retries; receipts never fetched

	h := newHarness(t, 300_000_000, client)

	outcome, err := h.dispatcher.Dispatch(context.Background(), signedRequest(t, priv, from, 1))
	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeIssued, outcome.Status) // via fallback
}
