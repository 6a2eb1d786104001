// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and translate errors; no business logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mintgate/internal/chain"
	"mintgate/internal/domain"
	"mintgate/internal/relay"
	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/platform/middleware/operator"
)

// Dispatcher drives a forward request to a terminal outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.ForwardRequest) (relay.Outcome, error)
}

// AttemptReader serves dispatch progress queries.
type AttemptReader interface {
	Get(ctx context.Context, id string) (domain.TransactionAttempt, bool)
	ListByIdentity(ctx context.Context, from domain.Address) []domain.TransactionAttempt
}

// RegistryReader answers membership queries from the off-chain mirror.
type RegistryReader interface {
	GetMembership(ctx context.Context, owner domain.Address) (domain.RegistryEntry, error)
	List(ctx context.Context) ([]domain.RegistryEntry, error)
}

// TreasuryService exposes the operator-facing treasury actions.
type TreasuryService interface {
	Credit(ctx context.Context, amount domain.Amount) error
	Balance() domain.Amount
	PayoutAmount() domain.Amount
	IsBelowThreshold() bool
}

// ChainReader serves the event log the sync worker reconciles against.
type ChainReader interface {
	RecentEvents(window int) []chain.Event
}

// Handler holds the services the HTTP surface fronts.
type Handler struct {
	dispatcher Dispatcher
	attempts   AttemptReader
	registry   RegistryReader
	treasury   TreasuryService
	chain      ChainReader
	logger     *slog.Logger
}

// NewHandler wires the HTTP layer.
func NewHandler(dispatcher Dispatcher, attempts AttemptReader, registry RegistryReader, treasury TreasuryService, chainReader ChainReader, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		attempts:   attempts,
		registry:   registry,
		treasury:   treasury,
		chain:      chainReader,
		logger:     logger,
	}
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler, operatorSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Post("/relay/forward", h.handleForward)
	r.Get("/relay/attempts/{id}", h.handleGetAttempt)
	r.Get("/relay/attempts", h.handleListAttempts)

	r.Get("/registry/members", h.handleListMembers)
	r.Get("/registry/members/{address}", h.handleGetMember)

	r.Get("/treasury/status", h.handleTreasuryStatus)
	r.Group(func(r chi.Router) {
		r.Use(operator.RequireOperator(operatorSecret, h.logger))
		r.Post("/treasury/credit", h.handleTreasuryCredit)
	})

	r.Get("/chain/events", h.handleChainEvents)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
