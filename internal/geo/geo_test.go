package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/example/carona/internal/models"
)

func TestHaversineZero(t *testing.T) {
	if d := Haversine(0, 0, 0, 0); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
	if d := Haversine(-23.5505, -46.6333, -23.5505, -46.6333); d != 0 {
		t.Fatalf("expected 0 for identical points, got %f", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		lat1, lon1 := rng.Float64()*180-90, rng.Float64()*360-180
		lat2, lon2 := rng.Float64()*180-90, rng.Float64()*360-180
		a := Haversine(lat1, lon1, lat2, lon2)
		b := Haversine(lat2, lon2, lat1, lon1)
		if math.Abs(a-b) > 1e-9 {
			t.Fatalf("asymmetric: %f vs %f", a, b)
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// one degree of latitude at the equator is ~111.19 km
	d := Haversine(0, 0, 1, 0)
	if math.Abs(d-111194.9) > 100 {
		t.Fatalf("expected ~111195 m, got %f", d)
	}
}

func TestNearestOnRouteEmpty(t *testing.T) {
	if d := NearestOnRoute(0, 0, nil); !math.IsInf(d, 1) {
		t.Fatalf("expected +Inf for empty route, got %f", d)
	}
}

func TestNearestOnRoutePicksClosestVertex(t *testing.T) {
	route := models.Route{
		{Lat: -23.5505, Lon: -46.6333},
		{Lat: -23.5600, Lon: -46.6500},
	}
	d := NearestOnRoute(-23.5550, -46.6400, route)
	d1 := Haversine(-23.5550, -46.6400, -23.5505, -46.6333)
	d2 := Haversine(-23.5550, -46.6400, -23.5600, -46.6500)
	want := math.Min(d1, d2)
	if d != want {
		t.Fatalf("expected min vertex distance %f, got %f", want, d)
	}
	if d >= 2000 {
		t.Fatalf("expected point within 2 km of route, got %f", d)
	}
}

func TestComputeBBoxEmpty(t *testing.T) {
	b := ComputeBBox(nil)
	if b.Valid {
		t.Fatalf("empty polyline must yield an invalid bbox")
	}
}

func TestComputeBBoxEnclosesAllPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(40)
		route := make(models.Route, n)
		for i := range route {
			route[i] = models.Coord{Lat: rng.Float64()*20 - 30, Lon: rng.Float64()*20 - 55}
		}
		b := ComputeBBox(route)
		if !b.Valid {
			t.Fatalf("non-empty polyline must yield a valid bbox")
		}
		for _, p := range route {
			if p.Lat < b.MinLat || p.Lat > b.MaxLat || p.Lon < b.MinLon || p.Lon > b.MaxLon {
				t.Fatalf("point %+v outside bbox %+v", p, b)
			}
		}
	}
}

func TestComputeBBoxIdempotent(t *testing.T) {
	route := models.Route{{Lat: 1, Lon: 2}, {Lat: -1, Lon: 4}}
	if ComputeBBox(route) != ComputeBBox(route) {
		t.Fatalf("bbox must be deterministic for the same polyline")
	}
}

func TestOverlaps(t *testing.T) {
	a := models.BoundingBox{MinLat: 0, MaxLat: 2, MinLon: 0, MaxLon: 2, Valid: true}
	b := models.BoundingBox{MinLat: 1, MaxLat: 3, MinLon: 1, MaxLon: 3, Valid: true}
	c := models.BoundingBox{MinLat: 5, MaxLat: 6, MinLon: 5, MaxLon: 6, Valid: true}
	if !Overlaps(a, b) {
		t.Fatalf("expected overlap")
	}
	if Overlaps(a, c) {
		t.Fatalf("expected no overlap")
	}
	if Overlaps(a, models.BoundingBox{}) {
		t.Fatalf("invalid bbox must never overlap")
	}
}
