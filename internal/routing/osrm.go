package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/carona/internal/models"
)

// OSRMClient requests routes from a public or self-hosted OSRM server.
type OSRMClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	return &OSRMClient{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

func (o *OSRMClient) Route(ctx context.Context, origin, destination models.Coord) (models.Route, float64, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		o.BaseURL, origin.Lon, origin.Lat, destination.Lon, destination.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := o.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("osrm status %d", resp.StatusCode)
	}

	var out struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"`
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, 0, fmt.Errorf("osrm no route: %v", out.Code)
	}

	coords := out.Routes[0].Geometry.Coordinates
	if len(coords) == 0 {
		return nil, 0, fmt.Errorf("osrm: empty geometry")
	}
	route := make(models.Route, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			return nil, 0, fmt.Errorf("osrm: malformed coordinate pair")
		}
		route = append(route, models.Coord{Lat: c[1], Lon: c[0]})
	}
	return route, orDistance(out.Routes[0].Distance, route), nil
}
