// Package relay drives verified forward requests to a terminal outcome:
// relay submission with bounded retries and exponential backoff, then direct
// operator-paid submission when the relay network is unavailable.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"mintgate/internal/domain"
	"mintgate/pkg/platform/circuit"
)

var (
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_relay_retries_total",
		Help: "Relay submissions retried after a timeout or rejection",
	})
	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_relay_fallbacks_total",
		Help: "Dispatches that fell back to direct submission",
	})
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintgate_dispatch_outcomes_total",
		Help: "Terminal dispatch outcomes by status",
	}, []string{"status"})
	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mintgate_dispatch_duration_seconds",
		Help:    "Wall time from acceptance to terminal outcome",
		Buckets: prometheus.DefBuckets,
	})
)

// RequestVerifier is the forwarder boundary: pure verification plus atomic
// nonce acceptance.
type RequestVerifier interface {
	Verify(req domain.ForwardRequest) (domain.Address, error)
	Accept(ctx context.Context, req domain.ForwardRequest) error
}

// MembershipReader answers the mandatory pre-retry idempotence check.
type MembershipReader interface {
	Member(ctx context.Context, identity domain.Address) (domain.MembershipRecord, bool)
}

// Executor is the direct-submission path: the mint executed on chain paid by
// the operator identity, with the original signer as effective sender.
type Executor interface {
	Mint(ctx context.Context, identity domain.Address) (domain.MembershipRecord, error)
}

// Policy bounds the retry behavior.
type Policy struct {
	MaxRetries   int           // relay resubmissions after the first try
	BackoffBase  time.Duration // first retry delay; doubles per retry
	BackoffCap   time.Duration
	RelayTimeout time.Duration // per-submission confirmation budget
}

// DefaultPolicy matches the production dispatch policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		BackoffBase:  200 * time.Millisecond,
		BackoffCap:   5 * time.Second,
		RelayTimeout: 15 * time.Second,
	}
}

// OutcomeStatus is the user-visible terminal status of a dispatch. There is
// never a silently-stuck pending state.
type OutcomeStatus string

const (
	OutcomeIssued        OutcomeStatus = "issued"
	OutcomeAlreadyIssued OutcomeStatus = "already_issued"
	OutcomeFailed        OutcomeStatus = "failed"
)

// Outcome is what the caller gets back once dispatch reaches a terminal
// state.
type Outcome struct {
	AttemptID string
	Status    OutcomeStatus
	TokenID   *uint64
	Err       error
}

// Dispatcher serializes dispatch per identity while letting different
// identities proceed fully in parallel.
type Dispatcher struct {
	verifier RequestVerifier
	client   Client
	executor Executor
	members  MembershipReader
	attempts *AttemptStore
	breaker  *circuit.Breaker
	policy   Policy
	logger   *slog.Logger
	tracer   trace.Tracer
	group    singleflight.Group
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy overrides the default retry policy.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithBreaker swaps the relay circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(d *Dispatcher) { d.breaker = b }
}

// New creates a Dispatcher.
func New(verifier RequestVerifier, client Client, executor Executor, members MembershipReader, attempts *AttemptStore, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		verifier: verifier,
		client:   client,
		executor: executor,
		members:  members,
		attempts: attempts,
		breaker:  circuit.New("relay"),
		policy:   DefaultPolicy(),
		logger:   logger,
		tracer:   otel.Tracer("mintgate/relay"),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dispatch verifies the request at the boundary, then drives it to a
// terminal outcome. Concurrent submissions for the same identity coalesce
// into a single in-flight dispatch and share its result.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.ForwardRequest) (Outcome, error) {
	if _, err := d.verifier.Verify(req); err != nil {
		return Outcome{}, err
	}

	v, err, _ := d.group.Do(string(req.From), func() (any, error) {
		return d.dispatch(ctx, req), nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return v.(Outcome), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req domain.ForwardRequest) Outcome {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "relay.dispatch",
		trace.WithAttributes(
			attribute.String("identity", string(req.From)),
			attribute.Int64("nonce", int64(req.Nonce)),
		))
	defer span.End()

	attempt := d.attempts.Create(ctx, req.From, req.Nonce)
	span.SetAttributes(attribute.String("attempt_id", attempt.ID))

	outcome := d.run(ctx, attempt.ID, req)
	outcome.AttemptID = attempt.ID

	outcomesTotal.WithLabelValues(string(outcome.Status)).Inc()
	dispatchDuration.Observe(time.Since(start).Seconds())
	d.logger.Info("dispatch finished",
		"attempt_id", attempt.ID,
		"identity", req.From,
		"status", outcome.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return outcome
}

func (d *Dispatcher) run(ctx context.Context, attemptID string, req domain.ForwardRequest) Outcome {
	// An earlier attempt may already have landed; resubmitting the same
	// request is success-equivalent, never a duplicate mint.
	if rec, ok := d.members.Member(ctx, req.From); ok {
		d.finish(ctx, attemptID, domain.AttemptConfirmed, "", &rec.TokenID, domain.ErrAlreadyMember)
		return Outcome{Status: OutcomeAlreadyIssued, TokenID: &rec.TokenID}
	}

	if err := d.verifier.Accept(ctx, req); err != nil {
		d.finish(ctx, attemptID, domain.AttemptFailed, "", nil, err)
		return Outcome{Status: OutcomeFailed, Err: err}
	}

	var lastErr error
	for try := 0; try <= d.policy.MaxRetries; try++ {
		if try > 0 {
			// Mandatory idempotence check before every retry: if the earlier
			// submission actually succeeded on chain and we lost the
			// confirmation, short-circuit instead of minting twice.
			if rec, ok := d.members.Member(ctx, req.From); ok {
				d.finish(ctx, attemptID, domain.AttemptConfirmed, domain.RouteRelay, &rec.TokenID, nil)
				return Outcome{Status: OutcomeIssued, TokenID: &rec.TokenID}
			}
			retriesTotal.Inc()
			d.attempts.Update(ctx, attemptID, func(a *domain.TransactionAttempt) {
				a.RetryCount = try
			})
			if err := d.sleep(ctx, backoffDelay(d.policy.BackoffBase, d.policy.BackoffCap, try-1)); err != nil {
				lastErr = err
				break
			}
		}

		// An open breaker skips the relay until its cooldown elapses, at
		// which point submissions probe the relay again and close it on
		// success.
		if !d.breaker.Allow() {
			break
		}

		receipt, err := d.submitOnce(ctx, req)
		if err == nil {
			d.breaker.RecordSuccess()
			d.finish(ctx, attemptID, domain.AttemptConfirmed, domain.RouteRelay, receipt.TokenID, nil)
			return Outcome{Status: OutcomeIssued, TokenID: receipt.TokenID}
		}
		lastErr = err
		d.breaker.RecordFailure()
		d.attempts.Update(ctx, attemptID, func(a *domain.TransactionAttempt) {
			a.LastError = err.Error()
		})
		d.logger.Warn("relay submission failed",
			"attempt_id", attemptID,
			"identity", req.From,
			"try", try,
			"error", err,
		)
	}

	return d.fallback(ctx, attemptID, req, lastErr)
}

func (d *Dispatcher) submitOnce(ctx context.Context, req domain.ForwardRequest) (Receipt, error) {
	subCtx, cancel := context.WithTimeout(ctx, d.policy.RelayTimeout)
	defer cancel()

	txHash, err := d.client.SubmitForward(subCtx, req)
	if err != nil {
		return Receipt{}, err
	}
	return d.client.AwaitReceipt(subCtx, txHash)
}

// fallback submits directly, paid by the operator identity, after the relay
// retry budget is spent. The effective sender is still the original signer.
func (d *Dispatcher) fallback(ctx context.Context, attemptID string, req domain.ForwardRequest, relayErr error) Outcome {
	if rec, ok := d.members.Member(ctx, req.From); ok {
		d.finish(ctx, attemptID, domain.AttemptConfirmed, domain.RouteRelay, &rec.TokenID, nil)
		return Outcome{Status: OutcomeIssued, TokenID: &rec.TokenID}
	}

	fallbacksTotal.Inc()
	d.logger.Info("falling back to direct submission",
		"attempt_id", attemptID,
		"identity", req.From,
		"relay_error", relayErr,
	)

	rec, err := d.executor.Mint(ctx, req.From)
	switch {
	case err == nil:
		d.finish(ctx, attemptID, domain.AttemptConfirmed, domain.RouteDirect, &rec.TokenID, nil)
		return Outcome{Status: OutcomeIssued, TokenID: &rec.TokenID}
	case errors.Is(err, domain.ErrAlreadyMember):
		existing, _ := d.members.Member(ctx, req.From)
		d.finish(ctx, attemptID, domain.AttemptConfirmed, domain.RouteDirect, &existing.TokenID, err)
		return Outcome{Status: OutcomeAlreadyIssued, TokenID: &existing.TokenID}
	case errors.Is(err, domain.ErrInsufficientTreasury), errors.Is(err, domain.ErrTransferFailed):
		// Terminal, user/operator actionable; not a relay problem.
		d.finish(ctx, attemptID, domain.AttemptFailed, domain.RouteDirect, nil, err)
		return Outcome{Status: OutcomeFailed, Err: err}
	default:
		// relayErr is nil when the breaker refused every relay try.
		wrapped := fmt.Errorf("%w: %v", domain.ErrFallbackExhausted, err)
		if relayErr != nil {
			wrapped = fmt.Errorf("%w: %v (relay: %v)", domain.ErrFallbackExhausted, err, relayErr)
		}
		d.finish(ctx, attemptID, domain.AttemptFailed, domain.RouteDirect, nil, wrapped)
		return Outcome{Status: OutcomeFailed, Err: wrapped}
	}
}

func (d *Dispatcher) finish(ctx context.Context, attemptID string, status domain.AttemptStatus, route domain.AttemptRoute, tokenID *uint64, err error) {
	d.attempts.Update(ctx, attemptID, func(a *domain.TransactionAttempt) {
		a.Status = status
		a.Route = route
		a.TokenID = tokenID
		if err != nil {
			a.LastError = err.Error()
		}
	})
}
