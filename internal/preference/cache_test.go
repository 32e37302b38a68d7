package preference

import (
	"context"
	"testing"
	"time"

	"PeerMatch/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCached(t *testing.T) (*CachedRepository, Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := NewMemoryRepository()
	c := NewCachedRepository(inner, rdb, time.Minute)
	c.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	return c, inner, mr
}

func TestCachedRepository_ReadThrough(t *testing.T) {
	c, inner, mr := newCached(t)
	ctx := context.Background()
	p := samplePref(t, "alice")
	require.NoError(t, inner.Save(ctx, p))

	got, err := c.FindByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.True(t, mr.Exists(cacheKey("alice")))
	assert.Equal(t, time.Minute, mr.TTL(cacheKey("alice")))

	// served from redis even though the inner copy is gone
	require.NoError(t, inner.DeleteByID(ctx, "alice"))
	got, err = c.FindByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.Metrics.CacheMisses))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.Metrics.CacheHits))
}

func TestCachedRepository_MissIsNotCached(t *testing.T) {
	c, _, mr := newCached(t)
	_, err := c.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrPreferenceNotFound)
	assert.False(t, mr.Exists(cacheKey("ghost")))
}

func TestCachedRepository_WritesInvalidate(t *testing.T) {
	c, _, mr := newCached(t)
	ctx := context.Background()
	p := samplePref(t, "alice")
	require.NoError(t, c.Save(ctx, p))

	_, err := c.FindByID(ctx, "alice")
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKey("alice")))

	p.MaxTime = 60
	require.NoError(t, c.Save(ctx, p))
	assert.False(t, mr.Exists(cacheKey("alice")))
	got, err := c.FindByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 60, got.MaxTime)

	ok, err := c.ExistsByID(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.DeleteByID(ctx, "alice"))
	assert.False(t, mr.Exists(cacheKey("alice")))
	_, err = c.FindByID(ctx, "alice")
	assert.ErrorIs(t, err, ErrPreferenceNotFound)
	ok, err = c.ExistsByID(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedRepository_CorruptEntryFallsThrough(t *testing.T) {
	c, inner, mr := newCached(t)
	ctx := context.Background()
	p := samplePref(t, "alice")
	require.NoError(t, inner.Save(ctx, p))
	require.NoError(t, mr.Set(cacheKey("alice"), "{not json"))

	got, err := c.FindByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestCachedRepository_RedisDown(t *testing.T) {
	c, inner, mr := newCached(t)
	ctx := context.Background()
	p := samplePref(t, "alice")
	require.NoError(t, inner.Save(ctx, p))
	mr.Close()

	got, err := c.FindByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p, got)
	require.NoError(t, c.Save(ctx, p))
}
