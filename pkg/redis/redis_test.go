package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb), mr
}

func TestNew_Disabled(t *testing.T) {
	client, err := New(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Ping(context.Background()))
}

func TestNew_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{Redis: config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mr.Port()}}

	client, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.True(t, client.Enabled())
}

func TestCache_RoundTrip(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, "cuaca")
	ctx := context.Background()

	type point struct {
		Day   string  `json:"day"`
		Value float64 `json:"value"`
	}
	key := HistoryKey(-6.6, 106.8, "temperature_2m_mean", "daily", "2024-01-01", "2024-03-01")

	var got []point
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, key, []point{{"2024-01-01", 26.4}}, TTLHistory))
	assert.True(t, mr.Exists("cuaca:cache:"+key))

	found, err = cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []point{{"2024-01-01", 26.4}}, got)

	mr.FastForward(TTLHistory + time.Second)
	found, err = cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "x", 1, time.Minute))
	require.NoError(t, cache.Delete(ctx, "x"))
	assert.False(t, mr.Exists("cuaca:cache:x"))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(&Client{}, "cuaca")

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Set(context.Background(), "key", "v", time.Minute))
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client, "cuaca")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	cfg := APIRateLimit("203.0.113.7", 3)
	ctx := context.Background()

	// 같은 시각의 요청도 각각 집계됨
	for i := 2; i >= 0; i-- {
		allowed, remaining, err := limiter.Allow(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, remaining)
	}
	allowed, _, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, allowed)

	now = now.Add(time.Minute + time.Millisecond)
	allowed, _, err = limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(&Client{}, "cuaca")
	allowed, remaining, err := limiter.Allow(context.Background(), APIRateLimit("x", 10))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 10, remaining)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "geocode:bogor", GeocodeKey("  Bogor "))
	assert.Equal(t, "history:hourly:temperature_2m:-6.6000:106.8000:2024-01-01:2024-01-31",
		HistoryKey(-6.6, 106.8, "temperature_2m", "hourly", "2024-01-01", "2024-01-31"))
	assert.Equal(t, "outlook:precipitation_sum:-6.6000:106.8000:7", OutlookKey(-6.6, 106.8, "precipitation_sum", 7))
}
