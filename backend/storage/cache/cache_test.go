package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain loads the repository .env so the broker and database suites can find
// their URLs. Without one those suites are skipped.
func TestMain(m *testing.M) {
	_ = godotenv.Load("../../../.env")
	os.Exit(m.Run())
}

func TestMemoryCache(t *testing.T) {
	c, err := NewCache("")
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	runCacheSuite(t, c)
}

// TestRedisCache needs a live server and is skipped unless REDIS_URL is set.
func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewCache(url)
	require.NoError(t, err)
	defer c.Disconnect()
	runCacheSuite(t, c)
}

func TestNewCacheRejectsBadURL(t *testing.T) {
	_, err := NewCache("not a url")
	assert.Error(t, err)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := c.SetIfAbsent(ctx, "event", true, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "event")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	ok, err = c.SetIfAbsent(ctx, "event", true, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func runCacheSuite(t *testing.T, c CacheInterface) {
	ctx := context.Background()
	require.NoError(t, c.Clear(ctx))

	require.NoError(t, c.Set(ctx, "greeting", map[string]string{"title": "Great job!"}))
	got, err := c.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"title": "Great job!"}, got)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	ok, err := c.SetIfAbsent(ctx, "event-1", true, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.SetIfAbsent(ctx, "event-1", true, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "event-1"))
	ok, err = c.SetIfAbsent(ctx, "event-1", true, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Clear(ctx))
	_, err = c.Get(ctx, "greeting")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
