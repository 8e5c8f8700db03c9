package metadata

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const defaultTrailerCacheSize = 2048

// KeyStore is an optional shared cache tier behind the in-process trailer LRU.
type KeyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// TrailerCache remembers resolved trailer keys per movie for the cache staleness window.
type TrailerCache struct {
	local  *expirable.LRU[int64, string]
	shared KeyStore
	ttl    time.Duration
}

func NewTrailerCache(size int, ttl time.Duration, shared KeyStore) *TrailerCache {
	if size <= 0 {
		size = defaultTrailerCacheSize
	}
	return &TrailerCache{
		local:  expirable.NewLRU[int64, string](size, nil, ttl),
		shared: shared,
		ttl:    ttl,
	}
}

func trailerKey(tmdbID int64) string {
	return "cinelist:trailer:" + strconv.FormatInt(tmdbID, 10)
}

func (c *TrailerCache) Get(ctx context.Context, tmdbID int64) (string, bool) {
	if key, ok := c.local.Get(tmdbID); ok {
		return key, true
	}
	if c.shared == nil {
		return "", false
	}
	key, ok, err := c.shared.Get(ctx, trailerKey(tmdbID))
	if err != nil {
		log.Printf("[metadata] shared trailer cache read failed for tmdb=%d: %v", tmdbID, err)
		return "", false
	}
	if !ok {
		return "", false
	}
	c.local.Add(tmdbID, key)
	return key, true
}

func (c *TrailerCache) Add(ctx context.Context, tmdbID int64, key string) {
	c.local.Add(tmdbID, key)
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, trailerKey(tmdbID), key, c.ttl); err != nil {
		log.Printf("[metadata] shared trailer cache write failed for tmdb=%d: %v", tmdbID, err)
	}
}

// RedisKeyStore adapts a go-redis client to KeyStore.
type RedisKeyStore struct {
	Client *redis.Client
}

func NewRedisKeyStore(opt *redis.Options) *RedisKeyStore {
	return &RedisKeyStore{Client: redis.NewClient(opt)}
}

func (s *RedisKeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisKeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.Client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisKeyStore) Close() error {
	return s.Client.Close()
}
