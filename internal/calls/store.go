package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Repository is the storage port for call sessions.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, filter Filter) ([]*Session, error)
}

// MemoryRepository keeps sessions in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*Session)}
}

func (r *MemoryRepository) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrCallIDRequired
	}
	cp := *s
	r.mu.Lock()
	r.sessions[s.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*Session, error) {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if filter.matches(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(sessions []*Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
}

const (
	sessionKeyPrefix = "call:session:"
	sessionIndexKey  = "call:sessions"
	sessionTTL       = 30 * 24 * time.Hour
)

// RedisRepository stores each session as JSON with a TTL and keeps a sorted
// index of ids by start time.
type RedisRepository struct {
	rdb    *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisRepository creates a Redis-backed call session store.
func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	if rdb == nil {
		panic("calls: redis client required")
	}
	return &RedisRepository{
		rdb:    rdb,
		ttl:    sessionTTL,
		tracer: otel.Tracer("receptionist.internal.calls.store"),
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *RedisRepository) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrCallIDRequired
	}
	ctx, span := r.tracer.Start(ctx, "calls.save_session")
	defer span.End()

	data, err := json.Marshal(s)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("calls: marshal: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(s.ID), data, r.ttl)
	pipe.ZAdd(ctx, sessionIndexKey, redis.Z{Score: float64(s.StartTime.UnixMilli()), Member: s.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("calls: save: %w", err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := r.tracer.Start(ctx, "calls.load_session")
	defer span.End()

	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calls: get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("calls: unmarshal: %w", err)
	}
	return &s, nil
}

func (r *RedisRepository) List(ctx context.Context, filter Filter) ([]*Session, error) {
	if filter.ID != "" {
		s, err := r.Get(ctx, filter.ID)
		if errors.Is(err, ErrNotFound) {
			return []*Session{}, nil
		}
		if err != nil {
			return nil, err
		}
		if !filter.matches(s) {
			return []*Session{}, nil
		}
		return []*Session{s}, nil
	}

	ctx, span := r.tracer.Start(ctx, "calls.list_sessions")
	defer span.End()

	ids, err := r.rdb.ZRevRange(ctx, sessionIndexKey, 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calls: list index: %w", err)
	}
	out := make([]*Session, 0, len(ids))
	var expired []any
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			expired = append(expired, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.matches(s) {
			out = append(out, s)
		}
	}
	if len(expired) > 0 {
		_ = r.rdb.ZRem(ctx, sessionIndexKey, expired...).Err()
	}
	return out, nil
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*RedisRepository)(nil)
)
