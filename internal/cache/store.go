package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a backend for rendered images.
type Store interface {
	Name() string
	// Get reports found=false with a nil error on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Stats() Stats
	Close() error
}

// MemoryStore keeps images in an in-process LRU.
type MemoryStore struct {
	lru *LRU
}

// NewMemoryStore creates a memory store.
func NewMemoryStore(maxItems int, maxSizeBytes int64, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: NewLRU(maxItems, maxSizeBytes, ttl)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.lru.Put(key, value)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Stats() Stats { return s.lru.Stats() }

func (s *MemoryStore) Close() error {
	s.lru.Clear()
	return nil
}

// RedisStore shares images between instances through Redis. Keys are
// prefixed and expire after ttl.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	s := &RedisStore{client: client, prefix: opts.Prefix, ttl: opts.TTL}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		s.misses.Add(1)
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	s.hits.Add(1)
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Stats reports hits and misses seen by this process. Item counts live in
// Redis and are not tracked.
func (s *RedisStore) Stats() Stats {
	hits, misses := s.hits.Load(), s.misses.Load()
	return Stats{Hits: hits, Misses: misses, HitRate: hitRate(hits, misses)}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
