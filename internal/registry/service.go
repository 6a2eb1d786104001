// Package registry keeps the queryable off-chain mirror of membership state.
// The chain event log is the source of truth; the registry is an eventually
// consistent projection fed by the issuance event stream and repaired by a
// periodic backfill.
package registry

import (
	"context"
	"fmt"

	"mintgate/internal/domain"
	"mintgate/internal/registry/store"
)

// Service answers membership queries from the off-chain registry.
type Service struct {
	store store.MemberStore
}

// NewService wraps a member store.
func NewService(members store.MemberStore) *Service {
	return &Service{store: members}
}

// IsMember reports whether the registry holds an active entry for the owner.
func (s *Service) IsMember(ctx context.Context, owner domain.Address) (bool, error) {
	entry, err := s.store.FindByOwner(ctx, owner)
	if err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("registry lookup: %w", err)
	}
	return entry.IsActive, nil
}

// GetMembership returns the registry entry for an owner.
func (s *Service) GetMembership(ctx context.Context, owner domain.Address) (domain.RegistryEntry, error) {
	return s.store.FindByOwner(ctx, owner)
}

// List returns all registry entries in token order.
func (s *Service) List(ctx context.Context) ([]domain.RegistryEntry, error) {
	return s.store.List(ctx)
}
