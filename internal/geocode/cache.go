package geocode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/example/carona/internal/models"
)

// Cache is the key→coordinate store used by the geocoder. Entries are
// immutable once written and deterministic per input text, so concurrent
// writers racing on the same key are harmless (last write wins).
type Cache interface {
	Get(ctx context.Context, key string) (models.Coord, bool)
	Set(ctx context.Context, key string, c models.Coord)
}

// MemoryCache is a process-local TTL cache for single-instance deployments.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (models.Coord, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return models.Coord{}, false
	}
	coord, ok := v.(models.Coord)
	return coord, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, coord models.Coord) {
	m.c.SetDefault(key, coord)
}

// RedisCache shares geocode results across instances. Values are stored as
// "lat,lon" strings with a TTL enforced by Redis itself.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		ttl:    ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) (models.Coord, bool) {
	v, err := r.client.Get(ctx, redisKey(key)).Result()
	if err != nil {
		return models.Coord{}, false
	}
	parts := strings.SplitN(v, ",", 2)
	if len(parts) != 2 {
		return models.Coord{}, false
	}
	lat, err1 := strconv.ParseFloat(parts[0], 64)
	lon, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return models.Coord{}, false
	}
	return models.Coord{Lat: lat, Lon: lon}, true
}

func (r *RedisCache) Set(ctx context.Context, key string, coord models.Coord) {
	_ = r.client.Set(ctx, redisKey(key), fmt.Sprintf("%.7f,%.7f", coord.Lat, coord.Lon), r.ttl).Err()
}

func redisKey(key string) string { return "geo:" + key }
