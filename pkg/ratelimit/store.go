package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// stateRetention bounds how long Redis keeps state after the cooldown ends,
// so the hit counter survives short gaps between rate-limit responses.
const stateRetention = 10 * time.Minute

// Store persists the cooldown state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
	Reset(ctx context.Context) error
}

// MemoryStore keeps the state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStore) Save(ctx context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
	return nil
}

// RedisStore shares the state between processes through Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) (*RedisStore, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{redis: redisClient}, nil
}

// Load retrieves the state. Missing keys yield the zero state.
func (r *RedisStore) Load(ctx context.Context) (State, error) {
	var state State

	until, err := r.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return state, fmt.Errorf("get cooldown: %w", err)
	}
	if until > 0 {
		state.CooldownUntil = time.UnixMilli(until)
	}

	hits, err := r.redis.Get(ctx, RedisKeyHits).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return state, fmt.Errorf("get hits: %w", err)
	}
	state.Hits = hits

	lastUpdate, err := r.redis.Get(ctx, RedisKeyLastUpdate).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return state, fmt.Errorf("get last update: %w", err)
	}
	if len(lastUpdate) > 0 {
		if err := json.Unmarshal(lastUpdate, &state.LastUpdate); err != nil {
			return state, fmt.Errorf("parse last update: %w", err)
		}
	}

	return state, nil
}

// Save stores the state atomically with a TTL covering the cooldown.
func (r *RedisStore) Save(ctx context.Context, state State) error {
	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	ttl := state.TimeUntilReset() + stateRetention

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyCooldownUntil, state.CooldownUntil.UnixMilli(), ttl)
	pipe.Set(ctx, RedisKeyHits, state.Hits, ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// Reset deletes the state.
func (r *RedisStore) Reset(ctx context.Context) error {
	if err := r.redis.Del(ctx, RedisKeyCooldownUntil, RedisKeyHits, RedisKeyLastUpdate).Err(); err != nil {
		return fmt.Errorf("reset rate limit state: %w", err)
	}
	return nil
}
