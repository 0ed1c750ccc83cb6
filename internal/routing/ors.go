package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/carona/internal/geo"
	"github.com/example/carona/internal/models"
)

// ORSClient requests driving directions from an OpenRouteService server.
type ORSClient struct {
	BaseURL string
	APIKey  string
	Profile string
	HTTP    *http.Client
}

func NewORSClient(baseURL, apiKey string, timeout time.Duration) *ORSClient {
	return &ORSClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Profile: "driving-car",
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// orsResponse covers both response shapes the directions endpoint emits:
// an encoded-polyline geometry (plain json) or a GeoJSON coordinate list.
type orsResponse struct {
	Routes []struct {
		Geometry string `json:"geometry"`
		Summary  struct {
			Distance float64 `json:"distance"`
		} `json:"summary"`
	} `json:"routes"`
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// Route requests a two-point driving route. Coordinates go out in provider
// order [lon, lat] and come back normalized to [lat, lon].
func (o *ORSClient) Route(ctx context.Context, origin, destination models.Coord) (models.Route, float64, error) {
	body, _ := json.Marshal(map[string]any{
		"coordinates":  [][]float64{{origin.Lon, origin.Lat}, {destination.Lon, destination.Lat}},
		"instructions": false,
	})
	url := fmt.Sprintf("%s/v2/directions/%s", o.BaseURL, o.Profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", o.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := o.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("ors status %d", resp.StatusCode)
	}

	var out orsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, err
	}

	if len(out.Routes) > 0 {
		route := decodePolyline(out.Routes[0].Geometry)
		if len(route) == 0 {
			return nil, 0, fmt.Errorf("ors: undecodable geometry")
		}
		return route, orDistance(out.Routes[0].Summary.Distance, route), nil
	}
	if len(out.Features) > 0 {
		coords := out.Features[0].Geometry.Coordinates
		if len(coords) == 0 {
			return nil, 0, fmt.Errorf("ors: empty geometry")
		}
		route := make(models.Route, 0, len(coords))
		for _, c := range coords {
			if len(c) < 2 {
				return nil, 0, fmt.Errorf("ors: malformed coordinate pair")
			}
			route = append(route, models.Coord{Lat: c[1], Lon: c[0]})
		}
		return route, orDistance(out.Features[0].Properties.Summary.Distance, route), nil
	}
	return nil, 0, fmt.Errorf("ors: response without routes")
}

// orDistance falls back to summing haversine legs when the provider omitted
// its distance summary, so callers always see a finite non-negative value.
func orDistance(reported float64, route models.Route) float64 {
	if reported > 0 {
		return reported
	}
	var total float64
	for i := 1; i < len(route); i++ {
		total += geo.Haversine(route[i-1].Lat, route[i-1].Lon, route[i].Lat, route[i].Lon)
	}
	return total
}
