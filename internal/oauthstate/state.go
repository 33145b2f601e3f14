// Package oauthstate issues and verifies one-time OAuth state values.
package oauthstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a consent screen may stay open.
const DefaultTTL = 10 * time.Minute

// Store issues a state value for the consent redirect and consumes it on callback.
// Consume reports false for unknown, expired or already used values.
type Store interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) (bool, error)
}

// Redis keeps state values as keys with a TTL so multiple instances share them.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: "oauthstate:"}
}

func (r *Redis) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := r.rdb.Set(ctx, r.prefix+state, "1", r.ttl).Err(); err != nil {
		return "", err
	}
	return state, nil
}

func (r *Redis) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	err := r.rdb.GetDel(ctx, r.prefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Memory is a single-process Store.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, pending: map[string]time.Time{}}
}

func (m *Memory) Issue(context.Context) (string, error) {
	state := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.pending {
		if now.After(exp) {
			delete(m.pending, k)
		}
	}
	m.pending[state] = now.Add(m.ttl)
	return state, nil
}

func (m *Memory) Consume(_ context.Context, state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.pending[state]
	if !ok {
		return false, nil
	}
	delete(m.pending, state)
	return !m.now().After(exp), nil
}
