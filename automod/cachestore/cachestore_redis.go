package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type RedisCacheConfig struct {
	// How long entries live in redis.
	TTL time.Duration
	// Entries kept in the per-process TinyLFU tier in front of redis. Zero disables the tier.
	LocalSize int
	// Purges on one instance do not reach the local tier of another, so this bounds how stale a read can be.
	LocalTTL time.Duration
}

func DefaultRedisCacheConfig() RedisCacheConfig {
	return RedisCacheConfig{
		TTL:       30 * time.Minute,
		LocalSize: 1_000,
		LocalTTL:  time.Minute,
	}
}

// Shared cache backed by redis, with an optional in-process tier.
type RedisCacheStore struct {
	data *cache.Cache
	ttl  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

// The client is shared with the caller, who stays responsible for closing it.
func NewRedisCacheStore(rdb *redis.Client, cfg RedisCacheConfig) *RedisCacheStore {
	opts := &cache.Options{Redis: rdb}
	if cfg.LocalSize > 0 {
		opts.LocalCache = cache.NewTinyLFU(cfg.LocalSize, cfg.LocalTTL)
	}
	return &RedisCacheStore{
		data: cache.New(opts),
		ttl:  cfg.TTL,
	}
}

func redisCacheKey(name, key string) string {
	return "yuno/cache/" + name + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	var raw []byte
	err := s.data.Get(ctx, redisCacheKey(name, key), &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(name, key),
		Value: []byte(val),
		TTL:   s.ttl,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.data.Delete(ctx, redisCacheKey(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
