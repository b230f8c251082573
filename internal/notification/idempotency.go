package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore records which message IDs have been claimed for
// delivery. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	// Reserve claims id. It returns false when id was already claimed.
	Reserve(ctx context.Context, id string) (bool, error)
	// Release gives up a claim so a later message with the same id may be sent.
	Release(ctx context.Context, id string) error
}

const redisKeyPrefix = "notification:sent:"

// RedisIdempotencyStore claims IDs with SETNX so that several service
// instances share one view of what was sent.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a store whose claims expire after ttl.
func NewRedisIdempotencyStore(client redis.UniversalClient, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

// Reserve claims id with SET NX and the store TTL.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+id, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve message %s: %w", id, err)
	}
	return ok, nil
}

// Release deletes the claim on id.
func (s *RedisIdempotencyStore) Release(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("release message %s: %w", id, err)
	}
	return nil
}

// MemoryIdempotencyStore is an in-process IdempotencyStore for development
// and single-instance deployments. Expired entries are dropped lazily.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryIdempotencyStore creates an in-memory store with the given TTL.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Reserve claims id unless an unexpired claim exists.
func (s *MemoryIdempotencyStore) Reserve(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if ts, ok := s.entries[id]; ok && now.Sub(ts) < s.ttl {
		return false, nil
	}
	s.entries[id] = now
	return true, nil
}

// Release removes the claim on id.
func (s *MemoryIdempotencyStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries, including expired ones not yet dropped.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
