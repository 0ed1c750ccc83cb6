package routing

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/carona/internal/geo"
	"github.com/example/carona/internal/models"
)

type failingProvider struct{ calls int }

func (f *failingProvider) Route(ctx context.Context, o, d models.Coord) (models.Route, float64, error) {
	f.calls++
	return nil, 0, errors.New("provider down")
}

type staticProvider struct {
	route models.Route
	dist  float64
	calls int
}

func (s *staticProvider) Route(ctx context.Context, o, d models.Coord) (models.Route, float64, error) {
	s.calls++
	return s.route, s.dist, nil
}

func coordPtr(lat, lon float64) *models.Coord { return &models.Coord{Lat: lat, Lon: lon} }

func TestGenerateMissingCoordinates(t *testing.T) {
	s := &Service{Logger: slog.Default()}
	if _, err := s.Generate(context.Background(), nil, coordPtr(1, 2)); !errors.Is(err, ErrMissingCoordinates) {
		t.Fatalf("expected ErrMissingCoordinates, got %v", err)
	}
	if _, err := s.Generate(context.Background(), coordPtr(1, 2), nil); !errors.Is(err, ErrMissingCoordinates) {
		t.Fatalf("expected ErrMissingCoordinates, got %v", err)
	}
}

func TestGenerateStraightLineFallback(t *testing.T) {
	fp := &failingProvider{}
	s := &Service{ORS: fp, OSRM: fp, Logger: slog.Default()}
	origin := coordPtr(-23.5505, -46.6333)
	dest := coordPtr(-23.5600, -46.6500)

	res, err := s.Generate(context.Background(), origin, dest)
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if !res.Fallback {
		t.Fatalf("expected fallback result")
	}
	if len(res.Points) != 2 || res.Points[0] != *origin || res.Points[1] != *dest {
		t.Fatalf("expected 2-point [origin destination] polyline, got %+v", res.Points)
	}
	if res.PointCount != 2 {
		t.Fatalf("point count must equal polyline length")
	}
	want := geo.Haversine(origin.Lat, origin.Lon, dest.Lat, dest.Lon)
	if math.Abs(res.DistanceM-want)/want > 1e-6 {
		t.Fatalf("expected haversine distance %f, got %f", want, res.DistanceM)
	}
	if fp.calls != 2 {
		t.Fatalf("expected both providers tried, got %d calls", fp.calls)
	}
}

func TestGeneratePrimaryBeforeSecondary(t *testing.T) {
	ors := &staticProvider{route: models.Route{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}, dist: 1234}
	osrm := &staticProvider{}
	s := &Service{ORS: ors, OSRM: osrm, Logger: slog.Default()}

	res, err := s.Generate(context.Background(), coordPtr(1, 1), coordPtr(2, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fallback || res.DistanceM != 1234 || osrm.calls != 0 {
		t.Fatalf("expected primary provider to serve the route")
	}
}

func TestGenerateUsesCache(t *testing.T) {
	p := &staticProvider{route: models.Route{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}, dist: 500}
	s := &Service{OSRM: p, Cache: NewCache(time.Minute), Logger: slog.Default()}
	o, d := coordPtr(1, 1), coordPtr(2, 2)

	if _, err := s.Generate(context.Background(), o, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Generate(context.Background(), o, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected second generate served from cache, got %d provider calls", p.calls)
	}
}

func TestOSRMClientParsesGeoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":1530.5,"geometry":{"coordinates":[[-46.6333,-23.5505],[-46.6500,-23.5600]]}}]}`))
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL, 2*time.Second)
	route, dist, err := c.Route(context.Background(), models.Coord{Lat: -23.5505, Lon: -46.6333}, models.Coord{Lat: -23.5600, Lon: -46.6500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dist != 1530.5 {
		t.Fatalf("expected distance 1530.5, got %f", dist)
	}
	// provider emits [lon, lat]; client must flip to [lat, lon]
	if route[0].Lat != -23.5505 || route[0].Lon != -46.6333 {
		t.Fatalf("coordinate order not normalized: %+v", route[0])
	}
}

func TestOSRMClientNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL, 2*time.Second)
	if _, _, err := c.Route(context.Background(), models.Coord{}, models.Coord{Lat: 1, Lon: 1}); err == nil {
		t.Fatalf("expected error for NoRoute response")
	}
}

func TestORSClientDecodesPolylineGeometry(t *testing.T) {
	// "_p~iF~ps|U_ulLnnqC" is the canonical encoded polyline for
	// (38.5,-120.2) -> (40.7,-120.95)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"routes":[{"geometry":"_p~iF~ps|U_ulLnnqC","summary":{"distance":250000}}]}`))
	}))
	defer srv.Close()

	c := NewORSClient(srv.URL, "test-key", 2*time.Second)
	route, dist, err := c.Route(context.Background(), models.Coord{Lat: 38.5, Lon: -120.2}, models.Coord{Lat: 40.7, Lon: -120.95})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dist != 250000 {
		t.Fatalf("expected summary distance, got %f", dist)
	}
	if len(route) != 2 {
		t.Fatalf("expected 2 decoded points, got %d", len(route))
	}
	if math.Abs(route[0].Lat-38.5) > 1e-9 || math.Abs(route[0].Lon+120.2) > 1e-9 {
		t.Fatalf("bad first point: %+v", route[0])
	}
	if math.Abs(route[1].Lat-40.7) > 1e-9 || math.Abs(route[1].Lon+120.95) > 1e-9 {
		t.Fatalf("bad second point: %+v", route[1])
	}
}

func TestDecodePolyline(t *testing.T) {
	route := decodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	if len(route) != 3 {
		t.Fatalf("expected 3 points, got %d", len(route))
	}
	want := models.Route{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	for i, p := range want {
		if math.Abs(route[i].Lat-p.Lat) > 1e-9 || math.Abs(route[i].Lon-p.Lon) > 1e-9 {
			t.Fatalf("point %d: expected %+v, got %+v", i, p, route[i])
		}
	}
}

func TestDecodePolylineTruncated(t *testing.T) {
	if r := decodePolyline("_p~iF"); r != nil {
		t.Fatalf("truncated input must decode to nil, got %+v", r)
	}
}
