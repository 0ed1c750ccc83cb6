package routing

import (
	"context"
	"log/slog"

	"github.com/example/carona/internal/geo"
	"github.com/example/carona/internal/models"
	"github.com/example/carona/internal/observability"
)

// provider is the piece both upstream clients share.
type provider interface {
	Route(ctx context.Context, origin, destination models.Coord) (models.Route, float64, error)
}

// Service generates routes with graceful degradation: ORS when a key is
// configured, then OSRM, then a synthetic straight line. It never returns an
// empty polyline.
type Service struct {
	ORS    provider // nil when no API key is configured
	OSRM   provider
	Cache  *Cache // optional
	Logger *slog.Logger
}

func (s *Service) Generate(ctx context.Context, origin, destination *models.Coord) (Result, error) {
	if origin == nil || destination == nil {
		return Result{}, ErrMissingCoordinates
	}

	if s.Cache != nil {
		if res, ok := s.Cache.get(*origin, *destination); ok {
			observability.RouteCacheHits.Inc()
			return res, nil
		}
	}

	for _, p := range []provider{s.ORS, s.OSRM} {
		if p == nil {
			continue
		}
		route, dist, err := p.Route(ctx, *origin, *destination)
		if err != nil {
			s.Logger.Warn("route provider failed", "error", err)
			continue
		}
		res := Result{Points: route, DistanceM: dist, PointCount: len(route)}
		if s.Cache != nil {
			s.Cache.set(*origin, *destination, res)
		}
		return res, nil
	}

	// Straight-line fallback: 2-point polyline with great-circle distance.
	observability.RouteFallbacks.Inc()
	s.Logger.Warn("all route providers failed, using straight-line fallback",
		"origem_lat", origin.Lat, "origem_lon", origin.Lon)
	res := Result{
		Points:     models.Route{*origin, *destination},
		DistanceM:  geo.Haversine(origin.Lat, origin.Lon, destination.Lat, destination.Lon),
		PointCount: 2,
		Fallback:   true,
	}
	return res, nil
}
