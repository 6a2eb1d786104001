// Package issuance is the membership state machine. Each identity moves
// NotMember -> Minted exactly once; the mint and its treasury payout commit
// atomically or not at all.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mintgate/internal/chain"
	"mintgate/internal/domain"
	"mintgate/internal/treasury"
)

var (
	mintsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_mints_total",
		Help: "Total number of successful membership mints",
	})
	mintFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintgate_mint_failures_total",
		Help: "Mint attempts that ended in a terminal failure, by reason",
	}, []string{"reason"})
)

// EventPublisher delivers issuance events to off-chain consumers. Delivery is
// at-least-once and may fail independently of the mint; the registry backfill
// reconciles gaps, so a publish failure never unwinds a committed mint.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.IssuanceEvent) error
}

// Service owns the contract state reachable through the ledger: membership
// records and the monotonic token counter. All reads and writes pass through
// its methods rather than ambient access.
type Service struct {
	ledger    *chain.Ledger
	treasury  *treasury.Manager
	publisher EventPublisher
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher attaches an issuance event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New creates the issuance service.
func New(ledger *chain.Ledger, treasury *treasury.Manager, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{ledger: ledger, treasury: treasury, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mint issues the membership credential and the accompanying payout for an
// identity. Fails with AlreadyMember or InsufficientTreasury before touching
// state; a payout transfer failure rolls back the whole issuance, including
// the record and the counter. On success exactly one MembershipMinted and one
// InitialFundSent event are committed together.
func (s *Service) Mint(ctx context.Context, identity domain.Address) (domain.MembershipRecord, error) {
	if identity.IsZero() {
		return domain.MembershipRecord{}, fmt.Errorf("mint: identity must not be zero")
	}

	payout := s.treasury.PayoutAmount()
	var rec domain.MembershipRecord
	err := s.ledger.Execute(ctx, func(tx *chain.Tx) error {
		if _, ok := tx.Record(identity); ok {
			return domain.ErrAlreadyMember
		}
		if !s.treasury.Reserve(tx, payout) {
			return domain.ErrInsufficientTreasury
		}
		tokenID := tx.AllocateTokenID()
		rec = domain.MembershipRecord{TokenID: tokenID, Owner: identity, MintedAt: tx.Now()}
		tx.PutRecord(rec)
		if err := tx.Credit(identity, payout); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
		tx.Emit(chain.Event{Type: chain.EventMembershipMinted, Identity: identity, TokenID: tokenID})
		tx.Emit(chain.Event{Type: chain.EventInitialFundSent, Identity: identity, Amount: payout})
		return nil
	})
	if err != nil {
		mintFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		return domain.MembershipRecord{}, err
	}

	mintsTotal.Inc()
	s.treasury.Observe()
	s.logger.Info("membership minted",
		"identity", identity,
		"token_id", rec.TokenID,
		"payout", payout.String(),
	)

	if s.publisher != nil {
		ev := domain.IssuanceEvent{
			Identity:     identity,
			TokenID:      rec.TokenID,
			PayoutAmount: payout,
			MintedAt:     rec.MintedAt,
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			// The mint is committed; the backfill will mirror it.
			s.logger.Warn("issuance event publish failed",
				"identity", identity,
				"token_id", rec.TokenID,
				"error", err,
			)
		}
	}
	return rec, nil
}

// Member reports the committed membership record for an identity. The relay
// dispatcher uses this for its mandatory pre-retry idempotence check.
func (s *Service) Member(_ context.Context, identity domain.Address) (domain.MembershipRecord, bool) {
	return s.ledger.Record(identity)
}

// Transfer rejects any movement of an existing credential. Ownership is
// permanent; the only zero-source transfer is the mint itself, which happens
// inside Mint and nowhere else.
func (s *Service) Transfer(_ context.Context, from, to domain.Address, tokenID uint64) error {
	return domain.ErrNonTransferable
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, domain.ErrInsufficientTreasury):
		return "insufficient_treasury"
	case errors.Is(err, domain.ErrTransferFailed):
		return "transfer_failed"
	default:
		return "other"
	}
}
