package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// FiredKeys remembers which reminder keys already fired. A key moves from
// unfired to fired once; only Forget (used when delivery failed) or a new
// store resets it.
type FiredKeys interface {
	// MarkIfNew records key and reports whether it was not fired before.
	MarkIfNew(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// MemoryFiredKeys is the session-local store. Two sessions of the same user
// do not see each other's keys.
type MemoryFiredKeys struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryFiredKeys() *MemoryFiredKeys {
	return &MemoryFiredKeys{keys: make(map[string]struct{})}
}

func (m *MemoryFiredKeys) MarkIfNew(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *MemoryFiredKeys) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.keys, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryFiredKeys) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// RedisFiredKeys shares fired keys between sessions and devices through Redis.
// Keys expire after ttl since they embed the occurrence date.
type RedisFiredKeys struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisFiredKeys(client *redis.Client, prefix string, ttl time.Duration) *RedisFiredKeys {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisFiredKeys{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisFiredKeys) MarkIfNew(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark fired key: %w", err)
	}
	return ok, nil
}

func (r *RedisFiredKeys) Forget(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("forget fired key: %w", err)
	}
	return nil
}
