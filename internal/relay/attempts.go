package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mintgate/internal/domain"
)

// AttemptStore keeps TransactionAttempt records in memory so dashboard
// collaborators can poll dispatch progress. It intentionally favors clarity
// over persistence; attempts are operational telemetry, not ledger state.
type AttemptStore struct {
	mu     sync.RWMutex
	byID   map[string]domain.TransactionAttempt
	byFrom map[domain.Address][]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		byID:   make(map[string]domain.TransactionAttempt),
		byFrom: make(map[domain.Address][]string),
	}
}

// Create registers a pending attempt for a forward request.
func (s *AttemptStore) Create(_ context.Context, from domain.Address, nonce uint64) domain.TransactionAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	attempt := domain.TransactionAttempt{
		ID:        uuid.NewString(),
		From:      from,
		Nonce:     nonce,
		Status:    domain.AttemptPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[attempt.ID] = attempt
	s.byFrom[from] = append(s.byFrom[from], attempt.ID)
	return attempt
}

// Update applies fn to the attempt under the store lock.
func (s *AttemptStore) Update(_ context.Context, id string, fn func(*domain.TransactionAttempt)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.byID[id]
	if !ok {
		return
	}
	fn(&attempt)
	attempt.UpdatedAt = time.Now()
	s.byID[id] = attempt
}

// Get returns an attempt by id.
func (s *AttemptStore) Get(_ context.Context, id string) (domain.TransactionAttempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.byID[id]
	return attempt, ok
}

// ListByIdentity returns all attempts for an identity, oldest first.
func (s *AttemptStore) ListByIdentity(_ context.Context, from domain.Address) []domain.TransactionAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byFrom[from]
	out := make([]domain.TransactionAttempt, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}
