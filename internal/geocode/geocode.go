package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/carona/internal/models"
	"github.com/example/carona/internal/observability"
)

// Taxonomy used by the search layer to decide between degraded modes.
var (
	ErrEmptyQuery          = errors.New("geocode: empty query")
	ErrProviderUnavailable = errors.New("geocode: provider unavailable")
	ErrMalformedResponse   = errors.New("geocode: malformed response")
	ErrNoResult            = errors.New("geocode: no result")
)

// Geocoder resolves free-text addresses to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coord, error)
}

// Client geocodes through the OpenRouteService search endpoint, caching
// successful lookups by normalized query text.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Cache   Cache
	Logger  *slog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, cache Cache, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
		Cache:   cache,
		Logger:  logger,
	}
}

// featureCollection is the subset of the provider response we care about:
// the first feature's geometry, [lon, lat] order.
type featureCollection struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves address text to a coordinate. Only an empty query is an
// input error; provider trouble comes back as a typed error so callers can
// fall back to text search instead of failing the request.
func (c *Client) Geocode(ctx context.Context, address string) (models.Coord, error) {
	key := Normalize(address)
	if key == "" {
		return models.Coord{}, ErrEmptyQuery
	}

	if c.Cache != nil {
		if coord, ok := c.Cache.Get(ctx, key); ok {
			observability.GeocodeCacheHits.Inc()
			return coord, nil
		}
	}

	q := url.Values{}
	q.Set("api_key", c.APIKey)
	q.Set("text", address)
	q.Set("size", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/geocode/search?"+q.Encode(), nil)
	if err != nil {
		return models.Coord{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		observability.GeocodeErrors.Inc()
		c.Logger.Warn("geocode request failed", "query", key, "error", err)
		return models.Coord{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		observability.GeocodeErrors.Inc()
		c.Logger.Warn("geocode provider status", "query", key, "status", resp.StatusCode)
		return models.Coord{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		observability.GeocodeErrors.Inc()
		return models.Coord{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(fc.Features) == 0 {
		return models.Coord{}, ErrNoResult
	}
	coords := fc.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return models.Coord{}, fmt.Errorf("%w: geometry has %d coordinates", ErrMalformedResponse, len(coords))
	}

	// provider order is [lon, lat]
	coord := models.Coord{Lat: coords[1], Lon: coords[0]}
	if c.Cache != nil {
		c.Cache.Set(ctx, key, coord)
	}
	return coord, nil
}

// Suggestion is one autocomplete candidate from the suggestion provider.
type Suggestion struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// SuggestOptions bias and bound the suggestion query.
type SuggestOptions struct {
	Limit int
	Lang  string
	Bias  *models.Coord
}

// Suggest proxies an address-autocomplete query to a Photon-style endpoint.
// Degrades to an empty list on any provider problem.
func (c *Client) Suggest(ctx context.Context, photonBase, query string, opts SuggestOptions) []Suggestion {
	if query == "" {
		return nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 6
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	if opts.Bias != nil {
		q.Set("lat", strconv.FormatFloat(opts.Bias.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(opts.Bias.Lon, 'f', -1, 64))
	}
	if opts.Lang != "" {
		q.Set("lang", opts.Lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photonBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Warn("suggest request failed", "query", query, "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var fc struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				Name   string `json:"name"`
				Street string `json:"street"`
				City   string `json:"city"`
				Label  string `json:"label"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil
	}

	out := make([]Suggestion, 0, len(fc.Features))
	for _, f := range fc.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		name := f.Properties.Name
		if name == "" {
			name = f.Properties.Street
		}
		if name == "" {
			name = f.Properties.City
		}
		if name == "" {
			name = f.Properties.Label
		}
		out = append(out, Suggestion{
			DisplayName: name,
			Lat:         f.Geometry.Coordinates[1],
			Lon:         f.Geometry.Coordinates[0],
		})
	}
	return out
}
