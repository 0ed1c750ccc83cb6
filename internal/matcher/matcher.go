package matcher

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/example/carona/internal/geo"
	"github.com/example/carona/internal/models"
	"github.com/example/carona/internal/observability"
)

// ErrInvalidQueryPoint rejects a search before any trip is scanned.
var ErrInvalidQueryPoint = errors.New("matcher: invalid query point")

// Store is the slice of persistence the matcher needs.
type Store interface {
	ListActive(ctx context.Context) ([]*models.Trip, error)
}

// Outcome reports the matches plus how degraded the scan was, so callers can
// tell "no trips nearby" apart from "trips dropped for bad geometry".
type Outcome struct {
	Matches []models.Match
	Scanned int
	Skipped int
}

type Service struct {
	Store  Store
	Logger *slog.Logger
}

// FindNear returns active trips whose route passes within toleranceM meters
// of the query point, sorted by ascending distance.
//
// Two phases: a cheap bounding-box pass decides evaluation order (trips whose
// stored bbox overlaps the tolerance-expanded query box go first, everything
// else follows so incompletely indexed trips are never lost), then an exact
// nearest-vertex haversine pass filters and ranks. A candidate with unusable
// geometry is skipped, never fatal.
func (s *Service) FindNear(ctx context.Context, lat, lon, toleranceM float64) (Outcome, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return Outcome{}, ErrInvalidQueryPoint
	}
	start := time.Now()
	observability.SearchesTotal.Inc()
	defer func() { observability.SearchLatency.Observe(time.Since(start).Seconds()) }()

	active, err := s.Store.ListActive(ctx)
	if err != nil {
		return Outcome{}, err
	}

	// ~1 degree of latitude is 111 km. The margin over-admits near the poles
	// but never under-admits at the latitudes we serve, which is what the
	// coarse phase needs.
	marginDeg := math.Max(0.002, toleranceM/111000.0)
	query := models.BoundingBox{
		MinLat: lat - marginDeg, MaxLat: lat + marginDeg,
		MinLon: lon - marginDeg, MaxLon: lon + marginDeg,
		Valid: true,
	}

	candidates := make([]*models.Trip, 0, len(active))
	var rest []*models.Trip
	for _, t := range active {
		if geo.Overlaps(t.BBox, query) {
			candidates = append(candidates, t)
		} else {
			rest = append(rest, t)
		}
	}
	candidates = append(candidates, rest...)

	out := Outcome{Scanned: len(candidates)}
	for _, t := range candidates {
		d, ok := s.distanceTo(t, lat, lon)
		if !ok {
			out.Skipped++
			observability.CandidatesSkipped.Inc()
			continue
		}
		observability.CandidatesScanned.Inc()
		if d <= toleranceM {
			out.Matches = append(out.Matches, models.Match{Trip: t, DistanceM: math.Round(d*10) / 10})
		}
	}

	sort.SliceStable(out.Matches, func(i, j int) bool {
		return out.Matches[i].DistanceM < out.Matches[j].DistanceM
	})
	return out, nil
}

// distanceTo computes the exact distance from the query point to the trip:
// nearest route vertex when a route exists, else the closer of the explicit
// endpoints. ok=false means the trip is unrankable.
func (s *Service) distanceTo(t *models.Trip, lat, lon float64) (d float64, ok bool) {
	// stored geometry is external input; a corrupt record must not take the
	// whole search down with it
	defer func() {
		if rec := recover(); rec != nil {
			s.Logger.Warn("distance computation panicked", "corrida_id", t.ID, "error", rec)
			d, ok = 0, false
		}
	}()

	if len(t.Rota) > 0 {
		if d := geo.NearestOnRoute(lat, lon, t.Rota); !math.IsNaN(d) && !math.IsInf(d, 0) {
			return d, true
		}
		s.Logger.Debug("route distance unusable, trying endpoints", "corrida_id", t.ID)
	}

	best := math.Inf(1)
	if t.OrigemLat != nil && t.OrigemLon != nil {
		best = math.Min(best, geo.Haversine(lat, lon, *t.OrigemLat, *t.OrigemLon))
	}
	if t.DestinoLat != nil && t.DestinoLon != nil {
		best = math.Min(best, geo.Haversine(lat, lon, *t.DestinoLat, *t.DestinoLon))
	}
	if math.IsInf(best, 0) || math.IsNaN(best) {
		return 0, false
	}
	return best, true
}
