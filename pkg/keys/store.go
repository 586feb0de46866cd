package keys

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyCurrent holds the label of the key in use.
const RedisKeyCurrent = "isbndb:keys:current"

// CursorStore remembers which key label is current.
type CursorStore interface {
	// Current returns the current label and whether one is set.
	Current(ctx context.Context) (string, bool, error)

	// SetCurrent records label as current.
	SetCurrent(ctx context.Context, label string) error
}

// MemoryStore keeps the cursor in process memory, so every run starts
// again at the first key.
type MemoryStore struct {
	mu    sync.Mutex
	label string
	set   bool
}

// NewMemoryStore returns an empty in-memory cursor.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Current implements CursorStore.
func (m *MemoryStore) Current(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.label, m.set, nil
}

// SetCurrent implements CursorStore.
func (m *MemoryStore) SetCurrent(_ context.Context, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = label
	m.set = true
	return nil
}

// RedisStore keeps the cursor in Redis so later runs resume at the key
// the previous run was using.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis cursor. A positive ttl expires the cursor,
// which restarts rotation at the first key once quotas have reset. Zero
// keeps it forever.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient, ttl: ttl}
}

// Current implements CursorStore.
func (s *RedisStore) Current(ctx context.Context) (string, bool, error) {
	label, err := s.redis.Get(ctx, RedisKeyCurrent).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get current key: %w", err)
	}
	return label, true, nil
}

// SetCurrent implements CursorStore.
func (s *RedisStore) SetCurrent(ctx context.Context, label string) error {
	if err := s.redis.Set(ctx, RedisKeyCurrent, label, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set current key: %w", err)
	}
	return nil
}
