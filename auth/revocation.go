package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers revoked token IDs until their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocationStore keeps revocations in process. They are lost on
// restart and not shared between instances.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, id)
		}
	}
	if until.After(now) {
		s.entries[jti] = until
	}
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[jti]
	return ok && exp.After(s.now()), nil
}

const redisKeyPrefix = "blogdesk:revoked:"

// RedisRevocationStore shares revocations between instances. Keys expire
// with the token.
type RedisRevocationStore struct {
	client redis.UniversalClient
}

func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, redisKeyPrefix+jti, 1, ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
