// Package memory holds the in-process backends: the profile cache used when
// cache.backend is "memory" and a job store for running without postgres.
// Cached values are stored JSON-encoded so callers see the same copy
// semantics as the redis cache.
package memory

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/clauselens/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeCacheMiss, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "cache serialization failed")
)

// Cache wraps go-cache with the same method set as the redis cache.
type Cache struct {
	store *gocache.Cache
	group singleflight.Group
}

// NewCache creates a cache whose entries live for defaultTTL unless Set
// is given its own ttl. Expired entries are purged every cleanupInterval.
func NewCache(defaultTTL, cleanupInterval time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &Cache{store: gocache.New(defaultTTL, cleanupInterval)}
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.DefaultExpiration
	}
	return ttl
}

func (c *Cache) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := c.store.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(v.([]byte), dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *Cache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	c.store.Set(key, data, ttlOrDefault(ttl))
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.store.Delete(k)
	}
	return nil
}

func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.store.Get(key)
	return ok, nil
}

func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		val, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(val)
		if err != nil {
			return nil, ErrSerializationFailed.WithCause(err)
		}
		c.store.Set(key, data, ttlOrDefault(ttl))
		return data, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v.([]byte), dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *Cache) Ping(context.Context) error { return nil }

// Len reports the number of live entries.
func (c *Cache) Len() int { return c.store.ItemCount() }
