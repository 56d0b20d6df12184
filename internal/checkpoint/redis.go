package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each state as a JSON string under its key.
// The layout matches what the Python ETL wrote, so existing watermarks are picked up.
type RedisStore struct {
	url string

	mu     sync.RWMutex
	client *redis.Client
	health
}

// NewRedisStore creates a store for url. No connection is made until Reconnect.
func NewRedisStore(url string) *RedisStore {
	return &RedisStore{url: url}
}

// Healthy implements resilience.Connection.
func (s *RedisStore) Healthy(_ context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil && !s.broken.Load()
}

// Reconnect implements resilience.Connection.
func (s *RedisStore) Reconnect(ctx context.Context) error {
	opts, err := redis.ParseURL(s.url)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	s.mu.Lock()
	old := s.client
	s.client = client
	s.broken.Store(false)
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (s *RedisStore) conn() (*redis.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotConnected
	}
	return s.client, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	c, err := s.conn()
	if err != nil {
		return false, err
	}
	n, err := c.Exists(ctx, key).Result()
	if err != nil {
		return false, s.observe(fmt.Errorf("redis exists %s: %w", key, err))
	}
	return n > 0, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*State, error) {
	c, err := s.conn()
	if err != nil {
		return nil, err
	}
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, s.observe(fmt.Errorf("redis get %s: %w", key, err))
	}
	state, err := ParseState(data)
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return &state, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, st State) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, data, 0).Err(); err != nil {
		return s.observe(fmt.Errorf("redis set %s: %w", key, err))
	}
	return nil
}

func (s *RedisStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
