package domain

import "time"

// AttemptStatus is the lifecycle of a dispatched forward request. Terminal
// states are confirmed and failed.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptConfirmed AttemptStatus = "confirmed"
	AttemptFailed    AttemptStatus = "failed"
)

// AttemptRoute records which path carried the request to the chain.
type AttemptRoute string

const (
	RouteRelay  AttemptRoute = "relay"
	RouteDirect AttemptRoute = "direct"
)

// TransactionAttempt tracks one forward request from submission to a terminal
// outcome. Transitions are owned by the relay dispatcher.
type TransactionAttempt struct {
	ID         string        `json:"id"`
	From       Address       `json:"from"`
	Nonce      uint64        `json:"nonce"`
	Status     AttemptStatus `json:"status"`
	Route      AttemptRoute  `json:"route,omitempty"`
	RetryCount int           `json:"retryCount"`
	TokenID    *uint64       `json:"tokenId,omitempty"`
	LastError  string        `json:"lastError,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}
