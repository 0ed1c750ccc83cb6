package geo

import (
	"math"

	"github.com/example/carona/internal/models"
)

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// NearestOnRoute returns the minimum distance in meters from the point to any
// vertex of the route. Vertex sampling only, no segment projection: good
// enough for the dense polylines routing providers return, and it keeps
// results consistent for the sparse 2-point fallback routes too.
// Returns +Inf for an empty route.
func NearestOnRoute(lat, lon float64, route models.Route) float64 {
	if len(route) == 0 {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for _, p := range route {
		if d := Haversine(lat, lon, p.Lat, p.Lon); d < best {
			best = d
		}
	}
	return best
}
