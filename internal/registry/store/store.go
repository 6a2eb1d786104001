// Package store persists the off-chain membership registry. Stores are pure
// I/O behind a small interface so the synchronizer and read service can run
// against memory in tests and postgres in production.
package store

import (
	"context"
	"errors"

	"mintgate/internal/domain"
)

// ErrNotFound is returned when no registry entry exists for the key.
var ErrNotFound = errors.New("registry entry not found")

// MemberStore holds registry entries keyed by token id. Upsert must be
// idempotent: the synchronizer redelivers events at-least-once.
type MemberStore interface {
	Upsert(ctx context.Context, entry domain.RegistryEntry) error
	FindByOwner(ctx context.Context, owner domain.Address) (domain.RegistryEntry, error)
	FindByToken(ctx context.Context, tokenID uint64) (domain.RegistryEntry, error)
	List(ctx context.Context) ([]domain.RegistryEntry, error)
}
