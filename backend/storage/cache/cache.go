package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrKeyNotFound is returned by Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("key does not exist")

// DefaultTTL is how long entries live unless the caller asks otherwise.
const DefaultTTL = 72 * time.Hour

// CacheInterface defines the set of methods that need to be implemented to
// be used as a cache storage.
type CacheInterface interface {
	Connect(url string) error
	Disconnect() error
	Set(ctx context.Context, key string, value interface{}) error
	// SetIfAbsent stores value only when key is not present and reports whether it did.
	SetIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (interface{}, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// NewCache creates a new CacheInterface. A Redis backend is used when url is set,
// otherwise the cache lives in process memory.
// It returns the connected cache instance or an error if the connection failed.
func NewCache(url string) (CacheInterface, error) {
	var cache CacheInterface
	if url == "" {
		cache = NewMemoryCache()
	} else {
		cache = NewRedisCache()
	}
	if err := cache.Connect(url); err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return cache, nil
}
