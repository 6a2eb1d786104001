package noncestore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mintgate/internal/domain"
)

const consumedNonceKeyPrefix = "fwd:nonce:"

// RedisStore is the production implementation for deployments where multiple
// gateway instances must agree on nonce consumption. SET NX gives the
// required consume-once atomicity.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL bounds marker retention. Requests also expire via validUntil, so a
// TTL comfortably beyond the longest request lifetime is safe.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedis constructs a Redis-backed consumed-nonce store.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: 30 * 24 * time.Hour}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(from domain.Address, nonce uint64) string {
	return fmt.Sprintf("%s%s:%d", consumedNonceKeyPrefix, from, nonce)
}

// Consume marks the nonce consumed. The marker value is irrelevant; key
// existence is what matters.
func (s *RedisStore) Consume(ctx context.Context, from domain.Address, nonce uint64) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(from, nonce), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx consumed nonce: %w", err)
	}
	return ok, nil
}
