// Package noncestore tracks consumed forward-request nonces. The in-memory
// store serves single-instance deployments and tests; the Redis store shares
// consumption state across instances.
package noncestore

import (
	"context"
	"sync"

	"mintgate/internal/domain"
)

type nonceKey struct {
	from  domain.Address
	nonce uint64
}

// MemoryStore keeps consumed nonces in a map. It intentionally favors
// clarity over eviction; nonces are single-use and small.
type MemoryStore struct {
	mu       sync.Mutex
	consumed map[nonceKey]struct{}
}

func NewMemory() *MemoryStore {
	return &MemoryStore{consumed: make(map[nonceKey]struct{})}
}

// Consume returns true exactly once per (from, nonce) pair.
func (s *MemoryStore) Consume(_ context.Context, from domain.Address, nonce uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nonceKey{from: from, nonce: nonce}
	if _, ok := s.consumed[key]; ok {
		return false, nil
	}
	s.consumed[key] = struct{}{}
	return true, nil
}
