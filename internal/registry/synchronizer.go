package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mintgate/internal/domain"
	"mintgate/internal/events"
	"mintgate/internal/registry/store"
)

var (
	eventsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_registry_events_applied_total",
		Help: "Issuance events applied to the registry, replays included",
	})
	eventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_registry_events_rejected_total",
		Help: "Issuance events that could not be decoded or stored",
	})
)

// Synchronizer projects issuance events into the registry store. It is an
// events.Handler; upserts are keyed by token id so redelivered events are
// harmless.
type Synchronizer struct {
	store  store.MemberStore
	logger *slog.Logger
}

// NewSynchronizer builds the event-stream projection.
func NewSynchronizer(members store.MemberStore, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: members, logger: logger}
}

// Handle applies one issuance event. Decode failures are terminal for the
// record (redelivering a malformed payload cannot help); store failures are
// returned so the offset stays uncommitted.
func (s *Synchronizer) Handle(ctx context.Context, msg events.Message) error {
	ev, err := events.DecodeIssuance(msg.Value)
	if err != nil {
		eventsRejected.Inc()
		s.logger.Error("drop undecodable issuance event",
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if err := s.Apply(ctx, ev); err != nil {
		eventsRejected.Inc()
		return err
	}
	return nil
}

// Apply upserts the registry entry for an issuance event.
func (s *Synchronizer) Apply(ctx context.Context, ev domain.IssuanceEvent) error {
	entry := domain.RegistryEntry{
		TokenID:  ev.TokenID,
		Owner:    ev.Identity,
		MintedAt: ev.MintedAt,
		IsActive: true,
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("apply issuance event: %w", err)
	}
	eventsApplied.Inc()
	s.logger.Info("registry entry synced",
		"identity", ev.Identity.String(),
		"tokenId", ev.TokenID,
	)
	return nil
}
