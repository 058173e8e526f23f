package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/newsdesk/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headline struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "test:", nil), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	var missing []headline
	found, err := store.Get(ctx, KeyBreakingNews, &missing)
	require.NoError(t, err)
	assert.False(t, found)

	value := []headline{{Title: "Storm warning", URL: "https://example.com/storm"}}
	require.NoError(t, store.Set(ctx, KeyBreakingNews, value, time.Minute))
	assert.True(t, mr.Exists("test:"+KeyBreakingNews))

	var got []headline
	found, err = store.Get(ctx, KeyBreakingNews, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, value, got)

	mr.FastForward(2 * time.Minute)
	found, err = store.Get(ctx, KeyBreakingNews, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreDelete(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyDashboard, map[string]int{"posts": 3}, time.Minute))
	require.NoError(t, store.Set(ctx, KeyBreakingNews, []headline{}, time.Minute))
	require.NoError(t, store.Delete(ctx, KeyDashboard, KeyBreakingNews))

	assert.False(t, mr.Exists("test:"+KeyDashboard))
	assert.False(t, mr.Exists("test:"+KeyBreakingNews))
	require.NoError(t, store.Delete(ctx))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore("mem:")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyDashboard, map[string]int64{"views": 10}, time.Minute))

	var got map[string]int64
	found, err := store.Get(ctx, KeyDashboard, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(10), got["views"])

	now = now.Add(61 * time.Second)
	found, err = store.Get(ctx, KeyDashboard, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, KeyBreakingNews, []headline{{Title: "a"}}, 0))
	assert.Len(t, store.entries, 1, "expired dashboard entry should be pruned on write")
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore("")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	var got string
	found, err := store.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewSelectsImplementation(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.RedisConfig{}, config.CacheConfig{KeyPrefix: "x:"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err = New(ctx, config.RedisConfig{Addr: mr.Addr()}, config.CacheConfig{KeyPrefix: "x:"}, nil)
	require.NoError(t, err)
	redisStore, ok := store.(*RedisStore)
	require.True(t, ok)
	_ = redisStore.Close()
}
