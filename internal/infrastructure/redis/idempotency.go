package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idem:create_order:"

// commands is the subset of *redis.Client the store uses.
type commands interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyStore remembers client supplied idempotency keys for a TTL so a
// retried create request is not placed twice.
type IdempotencyStore struct {
	rdb commands
	ttl time.Duration
}

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewIdempotencyStore(rdb commands, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Seen claims key and reports whether it had already been claimed.
func (s *IdempotencyStore) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, keyPrefix+key, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim idempotency key: %w", err)
	}
	return !ok, nil
}

// Release forgets key so the request can be retried; used when nothing was committed.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis: release idempotency key: %w", err)
	}
	return nil
}
