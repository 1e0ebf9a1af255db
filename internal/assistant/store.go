package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// OverrideStore persists the edited configuration. Load returns nil, nil when
// nothing has been saved yet.
type OverrideStore interface {
	Load(ctx context.Context) (*Config, error)
	Save(ctx context.Context, cfg Config) error
}

// MemoryStore keeps the override in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil, nil
	}
	cp := s.cfg.Clone()
	return &cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, cfg Config) error {
	cp := cfg.Clone()
	s.mu.Lock()
	s.cfg = &cp
	s.mu.Unlock()
	return nil
}

const overrideKey = "assistant:config:override"

// RedisStore keeps the override as a JSON document in Redis.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a Redis-backed override store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("assistant: redis client required")
	}
	return &RedisStore{redis: client, key: overrideKey}
}

func (s *RedisStore) Load(ctx context.Context) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("assistant: get override: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("assistant: unmarshal override: %w", err)
	}
	return &cfg, nil
}

func (s *RedisStore) Save(ctx context.Context, cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("assistant: marshal override: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("assistant: set override: %w", err)
	}
	return nil
}
