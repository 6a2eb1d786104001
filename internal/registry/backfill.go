package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mintgate/internal/chain"
	"mintgate/internal/domain"
	"mintgate/internal/registry/store"
)

var (
	backfillRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_registry_backfill_runs_total",
		Help: "Completed backfill reconciliation passes",
	})
	backfillCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_registry_backfill_corrections_total",
		Help: "Registry entries repaired from the chain event log",
	})
)

// EventSource reads the recent chain event log. The in-process ledger
// satisfies it directly; the sync worker reaches it over HTTP.
type EventSource interface {
	RecentEvents(ctx context.Context, window int) ([]chain.Event, error)
}

// LedgerSource adapts an in-process ledger to the EventSource interface.
type LedgerSource struct {
	Ledger *chain.Ledger
}

func (s LedgerSource) RecentEvents(_ context.Context, window int) ([]chain.Event, error) {
	return s.Ledger.RecentEvents(window), nil
}

// Backfiller periodically re-reads a recent window of chain events and
// repairs registry rows the event stream missed or that drifted. The chain
// log wins every disagreement.
type Backfiller struct {
	source   EventSource
	store    store.MemberStore
	window   int
	interval time.Duration
	logger   *slog.Logger
}

// NewBackfiller builds the reconciliation loop.
func NewBackfiller(source EventSource, members store.MemberStore, window int, interval time.Duration, logger *slog.Logger) *Backfiller {
	return &Backfiller{
		source:   source,
		store:    members,
		window:   window,
		interval: interval,
		logger:   logger,
	}
}

// Run reconciles on the configured interval until the context is cancelled.
// Individual pass failures are logged and retried next tick.
func (b *Backfiller) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := b.ReconcileOnce(ctx); err != nil {
				b.logger.Error("backfill pass failed", "error", err)
			}
		}
	}
}

// ReconcileOnce runs one reconciliation pass and returns the number of
// corrections applied.
func (b *Backfiller) ReconcileOnce(ctx context.Context) (int, error) {
	chainEvents, err := b.source.RecentEvents(ctx, b.window)
	if err != nil {
		return 0, fmt.Errorf("read chain events: %w", err)
	}

	corrections := 0
	for _, ev := range chainEvents {
		if ev.Type != chain.EventMembershipMinted {
			continue
		}
		expected := domain.RegistryEntry{
			TokenID:  ev.TokenID,
			Owner:    ev.Identity,
			MintedAt: ev.At,
			IsActive: true,
		}
		current, err := b.store.FindByToken(ctx, ev.TokenID)
		if err == nil && !drifted(current, expected) {
			continue
		}
		if err != nil && err != store.ErrNotFound {
			return corrections, fmt.Errorf("read registry entry %d: %w", ev.TokenID, err)
		}
		if err := b.store.Upsert(ctx, expected); err != nil {
			return corrections, fmt.Errorf("repair registry entry %d: %w", ev.TokenID, err)
		}
		corrections++
		backfillCorrections.Inc()
		b.logger.Warn("registry entry repaired from chain log",
			"tokenId", ev.TokenID,
			"identity", ev.Identity.String(),
		)
	}

	backfillRuns.Inc()
	return corrections, nil
}

// drifted reports whether a stored entry disagrees with chain state on the
// fields the chain owns. Metadata is registry-local and never compared.
func drifted(current, expected domain.RegistryEntry) bool {
	return current.Owner != expected.Owner ||
		!current.MintedAt.Equal(expected.MintedAt) ||
		!current.IsActive
}
