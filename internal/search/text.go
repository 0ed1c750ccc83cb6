package search

import (
	"context"
	"strings"

	"github.com/example/carona/internal/geocode"
	"github.com/example/carona/internal/matcher"
	"github.com/example/carona/internal/models"
)

// TextMatcher is the degraded-mode search used when geocoding fails: a
// case- and accent-insensitive substring match of query tokens against the
// trip's address fields. No distances, no ranking.
type TextMatcher struct {
	Store matcher.Store
}

func (m *TextMatcher) FindByText(ctx context.Context, query string) ([]*models.Trip, error) {
	tokens := strings.Fields(geocode.Normalize(query))
	if len(tokens) == 0 {
		return nil, nil
	}

	active, err := m.Store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var out []*models.Trip
	for _, t := range active {
		if matchesAny(t, tokens) {
			out = append(out, t)
		}
	}
	return out, nil
}

func matchesAny(t *models.Trip, tokens []string) bool {
	fields := []string{
		t.Origem, t.BairroOrigem, t.CidadeOrigem, t.EstadoOrigem,
		t.Destino, t.BairroDestino, t.CidadeDestino, t.EstadoDestino,
	}
	for i := range fields {
		fields[i] = geocode.Normalize(fields[i])
	}
	for _, tok := range tokens {
		for _, f := range fields {
			if f != "" && strings.Contains(f, tok) {
				return true
			}
		}
	}
	return false
}
