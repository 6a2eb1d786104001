// Package treasury gates issuance on available funding. The balance lives in
// a ledger account; every debit goes through the atomic reserve path inside
// the issuance transaction, never a read-then-write sequence.
package treasury

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mintgate/internal/chain"
	"mintgate/internal/domain"
)

var (
	creditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_treasury_credits_total",
		Help: "Total number of treasury replenishments",
	})
	balanceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mintgate_treasury_balance_units",
		Help: "Treasury balance in base units",
	})
	belowThresholdGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mintgate_treasury_below_threshold",
		Help: "1 when the treasury balance is below the low-balance threshold",
	})
)

// Manager owns the treasury account. Insufficient funds is a terminal,
// user-visible failure for an attempt; there are no retries here.
type Manager struct {
	ledger    *chain.Ledger
	account   domain.Address
	payout    domain.Amount
	threshold domain.Amount
	logger    *slog.Logger
}

// New creates a Manager for the given treasury account.
func New(ledger *chain.Ledger, account domain.Address, payout, threshold domain.Amount, logger *slog.Logger) *Manager {
	m := &Manager{
		ledger:    ledger,
		account:   account,
		payout:    payout,
		threshold: threshold,
		logger:    logger,
	}
	m.Observe()
	return m
}

// Observe refreshes the balance gauges. Callers that debit the treasury as
// part of their own transaction (the issuance state machine) call this after
// commit; threshold crossings are surfaced through the gauge and a warning
// log, nothing more.
func (m *Manager) Observe() {
	balance := m.Balance()
	balanceGauge.Set(float64(balance))
	if balance < m.threshold {
		belowThresholdGauge.Set(1)
		m.logger.Warn("treasury balance below threshold",
			"balance", balance.String(),
			"threshold", m.threshold.String(),
		)
	} else {
		belowThresholdGauge.Set(0)
	}
}

// Account is the treasury's ledger address.
func (m *Manager) Account() domain.Address { return m.account }

// PayoutAmount is the grant attached to each issuance.
func (m *Manager) PayoutAmount() domain.Amount { return m.payout }

// Reserve checks and reduces the available balance inside the issuance
// transaction. Returning false means the attempt must fail with
// InsufficientTreasury; nothing is applied unless the transaction commits.
func (m *Manager) Reserve(tx *chain.Tx, amount domain.Amount) bool {
	return tx.Debit(m.account, amount)
}

// Credit replenishes the treasury. This is the external replenishment action;
// it is the only credit path besides genesis funding.
func (m *Manager) Credit(ctx context.Context, amount domain.Amount) error {
	err := m.ledger.Execute(ctx, func(tx *chain.Tx) error {
		return tx.Credit(m.account, amount)
	})
	if err != nil {
		return fmt.Errorf("credit treasury: %w", err)
	}
	creditsTotal.Inc()
	m.Observe()
	m.logger.Info("treasury credited",
		"amount", amount.String(),
		"balance", m.Balance().String(),
	)
	return nil
}

// Balance is the committed treasury balance.
func (m *Manager) Balance() domain.Amount {
	return m.ledger.Balance(m.account)
}

// IsBelowThreshold is the read-only alert signal for external monitoring.
// The core takes no action on it.
func (m *Manager) IsBelowThreshold() bool {
	return m.Balance() < m.threshold
}
