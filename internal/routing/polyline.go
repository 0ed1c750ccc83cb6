package routing

import "github.com/example/carona/internal/models"

// decodePolyline decodes Google's encoded polyline algorithm format
// (precision 1e-5) into an ordered list of coordinates. Returns nil for
// truncated or otherwise undecodable input.
func decodePolyline(encoded string) models.Route {
	var route models.Route
	var lat, lon int64
	i := 0
	for i < len(encoded) {
		dLat, n, ok := decodeVarint(encoded[i:])
		if !ok {
			return nil
		}
		i += n
		dLon, n, ok := decodeVarint(encoded[i:])
		if !ok {
			return nil
		}
		i += n
		lat += dLat
		lon += dLon
		route = append(route, models.Coord{Lat: float64(lat) / 1e5, Lon: float64(lon) / 1e5})
	}
	return route
}

func decodeVarint(s string) (int64, int, bool) {
	var result int64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		if b < 0 {
			return 0, 0, false
		}
		result |= (b & 0x1f) << shift
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), i + 1, true
			}
			return result >> 1, i + 1, true
		}
		shift += 5
	}
	return 0, 0, false
}
