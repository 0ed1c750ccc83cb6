package geo

import "github.com/example/carona/internal/models"

// ComputeBBox derives the minimal enclosing rectangle of a polyline in a
// single min/max pass. An empty polyline yields an invalid (null) box, which
// the matcher treats as "no spatial footprint". Idempotent.
func ComputeBBox(route models.Route) models.BoundingBox {
	if len(route) == 0 {
		return models.BoundingBox{}
	}
	b := models.BoundingBox{
		MinLat: route[0].Lat, MaxLat: route[0].Lat,
		MinLon: route[0].Lon, MaxLon: route[0].Lon,
		Valid: true,
	}
	for _, p := range route[1:] {
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
		if p.Lon < b.MinLon {
			b.MinLon = p.Lon
		}
		if p.Lon > b.MaxLon {
			b.MaxLon = p.Lon
		}
	}
	return b
}

// Overlaps reports whether two boxes intersect. Invalid boxes never overlap.
func Overlaps(a, b models.BoundingBox) bool {
	if !a.Valid || !b.Valid {
		return false
	}
	return a.MinLat <= b.MaxLat && a.MaxLat >= b.MinLat &&
		a.MinLon <= b.MaxLon && a.MaxLon >= b.MinLon
}
