package geocode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  São Paulo  ":       "sao paulo",
		"AVENIDA Paulista":    "avenida paulista",
		"Brasília, DF":        "brasilia, df",
		"Conceição do Araguaia": "conceicao do araguaia",
		"":                    "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "test-key", 2*time.Second, NewMemoryCache(time.Minute), slog.Default())
	return c, srv
}

func TestGeocodeEmptyQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty query")
	})
	if _, err := c.Geocode(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestGeocodeFirstFeature(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("text"); got != "Avenida Paulista" {
			t.Errorf("unexpected query text %q", got)
		}
		w.Write([]byte(`{"features":[
			{"geometry":{"coordinates":[-46.6333,-23.5505]}},
			{"geometry":{"coordinates":[0,0]}}]}`))
	})
	coord, err := c.Geocode(context.Background(), "Avenida Paulista")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// provider order is [lon, lat]
	if coord.Lat != -23.5505 || coord.Lon != -46.6333 {
		t.Fatalf("unexpected coord %+v", coord)
	}
}

func TestGeocodeCachesByNormalizedText(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-46.63,-23.55]}}]}`))
	})
	if _, err := c.Geocode(context.Background(), "São Paulo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// same address modulo case, accents and spacing must hit the cache
	if _, err := c.Geocode(context.Background(), "  sao PAULO "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", calls)
	}
}

func TestGeocodeProviderError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.Geocode(context.Background(), "qualquer lugar")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestGeocodeNoResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	})
	if _, err := c.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestGeocodeMalformedResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[{"geometry":{"coordinates":[1]}}]}`))
	})
	if _, err := c.Geocode(context.Background(), "somewhere"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestSuggestDegradesToEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if got := c.Suggest(context.Background(), c.BaseURL, "rua", SuggestOptions{}); got != nil {
		t.Fatalf("expected nil suggestions on provider error, got %+v", got)
	}
}

func TestSuggestParsesFeatures(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("expected limit=2, got %q", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`{"features":[
			{"geometry":{"coordinates":[-46.63,-23.55]},"properties":{"name":"Avenida Paulista","city":"São Paulo"}}]}`))
	})
	got := c.Suggest(context.Background(), srv.URL, "paulista", SuggestOptions{Limit: 2})
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if got[0].DisplayName != "Avenida Paulista" || got[0].Lat != -23.55 {
		t.Fatalf("unexpected suggestion %+v", got[0])
	}
}
