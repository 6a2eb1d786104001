package store

import (
	"context"
	"sort"
	"sync"

	"mintgate/internal/domain"
)

// MemoryStore is the in-memory MemberStore used by tests and the loopback
// deployment mode.
type MemoryStore struct {
	mu      sync.RWMutex
	byToken map[uint64]domain.RegistryEntry
	byOwner map[domain.Address]uint64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byToken: make(map[uint64]domain.RegistryEntry),
		byOwner: make(map[domain.Address]uint64),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, entry domain.RegistryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A reconciliation can reassign a token's owner; the old owner must not
	// keep resolving to the token.
	if prev, ok := s.byToken[entry.TokenID]; ok && prev.Owner != entry.Owner {
		delete(s.byOwner, prev.Owner)
	}
	s.byToken[entry.TokenID] = entry
	s.byOwner[entry.Owner] = entry.TokenID
	return nil
}

func (s *MemoryStore) FindByOwner(_ context.Context, owner domain.Address) (domain.RegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokenID, ok := s.byOwner[owner]
	if !ok {
		return domain.RegistryEntry{}, ErrNotFound
	}
	return s.byToken[tokenID], nil
}

func (s *MemoryStore) FindByToken(_ context.Context, tokenID uint64) (domain.RegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byToken[tokenID]
	if !ok {
		return domain.RegistryEntry{}, ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.RegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.RegistryEntry, 0, len(s.byToken))
	for _, entry := range s.byToken {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TokenID < entries[j].TokenID })
	return entries, nil
}
