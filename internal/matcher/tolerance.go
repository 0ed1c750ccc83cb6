package matcher

import "strings"

// Default tolerances in meters. Derived from query text when the caller does
// not supply one; a keyword heuristic, not a geocoding-precision value.
const (
	ToleranceCityM    = 5000
	ToleranceStateM   = 50000
	ToleranceCountryM = 100000
	ToleranceMinM     = 100
	ToleranceMaxM     = 200000
)

var metroMarkers = []string{"sp", "sao paulo"}
var stateMarkers = []string{"rj", "mg", "rs", "pr", "sc"}

// ToleranceForQuery picks a search radius for a normalized (lowercase,
// accent-stripped) query: metro marker → city scale, state abbreviation →
// state scale, otherwise country scale.
func ToleranceForQuery(normalized string) float64 {
	for _, m := range metroMarkers {
		if strings.Contains(normalized, m) {
			return ToleranceCityM
		}
	}
	for _, uf := range stateMarkers {
		if strings.Contains(normalized, uf) {
			return ToleranceStateM
		}
	}
	return ToleranceCountryM
}

// ClampTolerance bounds any tolerance, caller-supplied or derived, to the
// configured [min, max] window.
func ClampTolerance(m float64) float64 {
	if m < ToleranceMinM {
		return ToleranceMinM
	}
	if m > ToleranceMaxM {
		return ToleranceMaxM
	}
	return m
}
