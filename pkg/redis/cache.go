package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value. A missing key is reported as (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// Predefined TTLs
const (
	TTLGeocode = 24 * time.Hour // 지명 검색
	TTLHistory = 6 * time.Hour  // 과거 관측 (archive 는 지연 반영)
	TTLOutlook = 1 * time.Hour  // 공식 예보
)

// HistoryKey identifies an archive request
func HistoryKey(lat, lon float64, variable, granularity, start, end string) string {
	return fmt.Sprintf("history:%s:%s:%.4f:%.4f:%s:%s", granularity, variable, lat, lon, start, end)
}

// OutlookKey identifies an upstream daily forecast request
func OutlookKey(lat, lon float64, variable string, days int) string {
	return fmt.Sprintf("outlook:%s:%.4f:%.4f:%d", variable, lat, lon, days)
}

// GeocodeKey identifies a place-name search
func GeocodeKey(name string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(name))
}
