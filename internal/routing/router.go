package routing

import (
	"context"
	"errors"

	"github.com/example/carona/internal/models"
)

// ErrMissingCoordinates rejects route generation before any network call.
var ErrMissingCoordinates = errors.New("routing: missing coordinates")

// Result is a normalized route regardless of which provider produced it.
// Points is never nil: the generator degrades to a 2-point straight line
// before it ever returns an empty polyline.
type Result struct {
	Points     models.Route `json:"rota"`
	DistanceM  float64      `json:"distancia_m"`
	PointCount int          `json:"pontos_count"`
	Fallback   bool         `json:"fallback"`
}

// Generator builds a driving route between two coordinates.
type Generator interface {
	Generate(ctx context.Context, origin, destination *models.Coord) (Result, error)
}
