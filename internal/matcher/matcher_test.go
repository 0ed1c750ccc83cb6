package matcher

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/example/carona/internal/models"
)

type fakeStore struct{ trips []*models.Trip }

func (f *fakeStore) ListActive(ctx context.Context) ([]*models.Trip, error) {
	var out []*models.Trip
	for _, t := range f.trips {
		if t.Matchable() {
			out = append(out, t)
		}
	}
	return out, nil
}

func newService(trips ...*models.Trip) *Service {
	return &Service{Store: &fakeStore{trips: trips}, Logger: slog.Default()}
}

func ptr(v float64) *float64 { return &v }

func routedTrip(id string, points ...models.Coord) *models.Trip {
	t := &models.Trip{ID: id, Status: models.TripActive, Rota: points}
	if len(points) > 0 {
		t.BBox = bboxOf(points)
	}
	return t
}

func bboxOf(points []models.Coord) models.BoundingBox {
	b := models.BoundingBox{MinLat: points[0].Lat, MaxLat: points[0].Lat, MinLon: points[0].Lon, MaxLon: points[0].Lon, Valid: true}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

func TestFindNearMatchesTripWithinTolerance(t *testing.T) {
	trip := routedTrip("c1",
		models.Coord{Lat: -23.5505, Lon: -46.6333},
		models.Coord{Lat: -23.5600, Lon: -46.6500},
	)
	s := newService(trip)
	out, err := s.FindNear(context.Background(), -23.5550, -46.6400, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Matches) != 1 || out.Matches[0].Trip.ID != "c1" {
		t.Fatalf("expected c1 matched, got %+v", out.Matches)
	}
	if out.Matches[0].DistanceM <= 0 || out.Matches[0].DistanceM >= 2000 {
		t.Fatalf("unexpected distance %f", out.Matches[0].DistanceM)
	}
}

func TestFindNearEndpointFallbackExactPoint(t *testing.T) {
	// empty route, only origin coordinates: query at the origin matches with
	// distance 0 for any tolerance
	trip := &models.Trip{
		ID: "c2", Status: models.TripActive,
		OrigemLat: ptr(-23.55), OrigemLon: ptr(-46.63),
	}
	s := newService(trip)
	out, err := s.FindNear(context.Background(), -23.55, -46.63, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Matches) != 1 {
		t.Fatalf("expected match, got %d", len(out.Matches))
	}
	if out.Matches[0].DistanceM != 0 {
		t.Fatalf("expected distance 0, got %f", out.Matches[0].DistanceM)
	}
}

func TestFindNearDropsUnrankableTrip(t *testing.T) {
	// no route, no endpoint coordinates: cannot be ranked, must be skipped
	// without aborting the search
	bad := &models.Trip{ID: "bad", Status: models.TripActive}
	good := routedTrip("good", models.Coord{Lat: 0, Lon: 0}, models.Coord{Lat: 0.01, Lon: 0.01})
	s := newService(bad, good)
	out, err := s.FindNear(context.Background(), 0, 0, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Matches) != 1 || out.Matches[0].Trip.ID != "good" {
		t.Fatalf("expected only good matched, got %+v", out.Matches)
	}
	if out.Skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", out.Skipped)
	}
}

func TestFindNearExcludesInactiveTrips(t *testing.T) {
	cancelled := routedTrip("x", models.Coord{Lat: 0, Lon: 0})
	cancelled.Status = models.TripCancelled
	s := newService(cancelled)
	out, err := s.FindNear(context.Background(), 0, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Matches) != 0 {
		t.Fatalf("cancelled trip must not match")
	}
}

func TestFindNearSortedAscending(t *testing.T) {
	far := routedTrip("far", models.Coord{Lat: 0.05, Lon: 0})
	near := routedTrip("near", models.Coord{Lat: 0.01, Lon: 0})
	mid := routedTrip("mid", models.Coord{Lat: 0.03, Lon: 0})
	s := newService(far, near, mid)
	out, err := s.FindNear(context.Background(), 0, 0, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(out.Matches))
	}
	for i := 1; i < len(out.Matches); i++ {
		if out.Matches[i].DistanceM < out.Matches[i-1].DistanceM {
			t.Fatalf("results not sorted ascending: %+v", out.Matches)
		}
	}
	if out.Matches[0].Trip.ID != "near" || out.Matches[2].Trip.ID != "far" {
		t.Fatalf("unexpected order: %s..%s", out.Matches[0].Trip.ID, out.Matches[2].Trip.ID)
	}
}

func TestFindNearToleranceMonotonic(t *testing.T) {
	trips := []*models.Trip{
		routedTrip("a", models.Coord{Lat: 0.005, Lon: 0}),
		routedTrip("b", models.Coord{Lat: 0.02, Lon: 0}),
		routedTrip("c", models.Coord{Lat: 0.08, Lon: 0}),
	}
	s := newService(trips...)
	var prev map[string]bool
	for _, tol := range []float64{500, 2500, 5000, 10000, 50000} {
		out, err := s.FindNear(context.Background(), 0, 0, tol)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids := make(map[string]bool, len(out.Matches))
		for _, m := range out.Matches {
			ids[m.Trip.ID] = true
		}
		for id := range prev {
			if !ids[id] {
				t.Fatalf("tolerance %f lost trip %s matched at a smaller radius", tol, id)
			}
		}
		prev = ids
	}
}

func TestFindNearBBoxPrefilterNeverExcludes(t *testing.T) {
	// a trip whose bbox is far from the query box but whose stored bbox is
	// missing must still be evaluated in phase 2
	noBBox := &models.Trip{
		ID: "nb", Status: models.TripActive,
		Rota: models.Route{{Lat: 0.001, Lon: 0.001}},
	}
	s := newService(noBBox)
	out, err := s.FindNear(context.Background(), 0, 0, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Matches) != 1 {
		t.Fatalf("trip without bbox must not be excluded by phase 1")
	}
}

func TestFindNearInvalidQueryPoint(t *testing.T) {
	s := newService()
	if _, err := s.FindNear(context.Background(), math.NaN(), 0, 1000); err == nil {
		t.Fatalf("expected error for NaN query point")
	}
}

func TestToleranceForQuery(t *testing.T) {
	cases := []struct {
		query string
		want  float64
	}{
		{"avenida paulista sao paulo", ToleranceCityM},
		{"centro rj", ToleranceStateM},
		{"brasilia df", ToleranceCountryM},
	}
	for _, c := range cases {
		if got := ToleranceForQuery(c.query); got != c.want {
			t.Fatalf("query %q: expected %f, got %f", c.query, c.want, got)
		}
	}
}

func TestClampTolerance(t *testing.T) {
	if got := ClampTolerance(50); got != ToleranceMinM {
		t.Fatalf("expected clamp to %d, got %f", ToleranceMinM, got)
	}
	if got := ClampTolerance(1e9); got != ToleranceMaxM {
		t.Fatalf("expected clamp to %d, got %f", ToleranceMaxM, got)
	}
	if got := ClampTolerance(5000); got != 5000 {
		t.Fatalf("expected passthrough, got %f", got)
	}
}
