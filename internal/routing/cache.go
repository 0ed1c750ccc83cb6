package routing

import (
	"time"

	"github.com/mmcloughlin/geohash"
	gocache "github.com/patrickmn/go-cache"

	"github.com/example/carona/internal/models"
)

// keyPrecision 7 gives ~76 m cells, tight enough that two cached endpoints
// in the same cell share a route without meaningfully changing it.
const keyPrecision = 7

// Cache memoizes generated routes keyed by geohashed endpoint pairs, so
// repeated trip edits between the same addresses skip the provider call.
type Cache struct {
	c *gocache.Cache
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{c: gocache.New(ttl, 2*ttl)}
}

func cacheKey(origin, destination models.Coord) string {
	return geohash.EncodeWithPrecision(origin.Lat, origin.Lon, keyPrecision) +
		":" + geohash.EncodeWithPrecision(destination.Lat, destination.Lon, keyPrecision)
}

func (rc *Cache) get(origin, destination models.Coord) (Result, bool) {
	v, ok := rc.c.Get(cacheKey(origin, destination))
	if !ok {
		return Result{}, false
	}
	res, ok := v.(Result)
	return res, ok
}

func (rc *Cache) set(origin, destination models.Coord, res Result) {
	rc.c.SetDefault(cacheKey(origin, destination), res)
}
