package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the single-process stand-in for RedisCache. Values go through
// JSON just like in Redis so both backends hand back the same shapes.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, now: time.Now}
}

// Connect is a no-op; the cache lives in process.
func (m *MemoryCache) Connect(string) error { return nil }
func (m *MemoryCache) Disconnect() error    { return nil }

// Set stores value under key for DefaultTTL.
func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: raw, expiresAt: m.now().Add(DefaultTTL)}
	return nil
}

// SetIfAbsent stores value only when key is missing or expired, and reports whether it did.
func (m *MemoryCache) SetIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: raw, expiresAt: now.Add(ttl)}
	return true, nil
}

// Get returns the value under key, or ErrKeyNotFound when it is missing or expired.
func (m *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	var result interface{}
	if err := json.Unmarshal(e.value, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes key.
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Clear removes every key.
func (m *MemoryCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]memoryEntry{}
	return nil
}
