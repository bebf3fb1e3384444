package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))

	m := c.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRequests)
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, 0.5, m.HitRatio)
}

func newCachedRepo(t *testing.T) (*CachedTerrainRepo, *MemoryCache, *storage.MemoryTerrainRepo) {
	t.Helper()
	inner := storage.NewMemoryTerrainRepo()
	mc := NewMemoryCache(time.Minute)
	return NewCachedTerrainRepo(inner, mc, 0), mc, inner
}

func TestCachedRepoServesFromCache(t *testing.T) {
	ctx := context.Background()
	repo, mc, _ := newCachedRepo(t)

	grid, err := heightmap.FromValues(2, 2, []float64{0.1, 0.2, 0.3, 0.4})
	require.NoError(t, err)
	rec := &storage.Record{Width: 2, Height: 2}
	require.NoError(t, repo.Save(ctx, rec, grid))

	ok, err := mc.Exists(ctx, gridKeyPrefix+rec.ID)
	require.NoError(t, err)
	assert.True(t, ok, "Save прогревает кеш")

	loaded, err := repo.LoadGrid(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, grid.Equal(loaded))
	assert.Equal(t, int64(1), repo.Metrics().CacheHits)

	require.NoError(t, repo.Delete(ctx, rec.ID))
	ok, _ = mc.Exists(ctx, gridKeyPrefix+rec.ID)
	assert.False(t, ok)
	_, err = repo.LoadGrid(ctx, rec.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCachedRepoFillsOnMiss(t *testing.T) {
	ctx := context.Background()
	repo, mc, inner := newCachedRepo(t)

	grid, err := heightmap.FromValues(1, 1, []float64{0.7})
	require.NoError(t, err)
	rec := &storage.Record{Width: 1, Height: 1}
	// Сохраняем в обход кеша
	require.NoError(t, inner.Save(ctx, rec, grid))

	loaded, err := repo.LoadGrid(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.7, loaded.At(0, 0))

	ok, _ := mc.Exists(ctx, gridKeyPrefix+rec.ID)
	assert.True(t, ok)
}

func TestCachedRepoIgnoresCorruptEntry(t *testing.T) {
	ctx := context.Background()
	repo, mc, _ := newCachedRepo(t)

	grid, err := heightmap.FromValues(1, 1, []float64{0.3})
	require.NoError(t, err)
	rec := &storage.Record{Width: 1, Height: 1}
	require.NoError(t, repo.Save(ctx, rec, grid))
	require.NoError(t, mc.Set(ctx, gridKeyPrefix+rec.ID, []byte{1, 2, 3}, 0))

	loaded, err := repo.LoadGrid(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.3, loaded.At(0, 0))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TERRAGEN_TEST_REDIS")
	if addr == "" {
		t.Skip("TERRAGEN_TEST_REDIS не задан")
	}

	ctx := context.Background()
	c, err := NewRedisCache(&CacheConfig{RedisURL: addr})
	require.NoError(t, err)
	defer c.Close()

	key := "terragen:test:" + storage.NewID()
	_, err = c.Get(ctx, key)
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, c.Set(ctx, key, []byte("grid"), time.Minute))
	val, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("grid"), val)

	require.NoError(t, c.Delete(ctx, key))
	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int64(1), c.GetMetrics().CacheHits)

	c.config.MaxValueBytes = 2
	assert.ErrorIs(t, c.Set(ctx, key, []byte("grid"), 0), ErrValueTooLarge)
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(&CacheConfig{RedisURL: "localhost:6379", RedisDB: 2, MaxConnections: 5})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 5, opts.PoolSize)

	opts, err = redisOptions(&CacheConfig{RedisURL: "redis://:secret@cache:6380/3", RedisDB: 7})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB, "номер базы из URL важнее конфигурации")

	opts, err = redisOptions(&CacheConfig{RedisURL: "redis://cache:6380", RedisPassword: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", opts.Password)

	_, err = redisOptions(&CacheConfig{RedisURL: "redis://cache:6380/notanumber"})
	assert.Error(t, err)
}
