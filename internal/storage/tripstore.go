package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/carona/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

// TripStore defines persistence operations for trips and seat requests.
type TripStore interface {
	SaveTrip(ctx context.Context, t *models.Trip) error
	UpdateTrip(ctx context.Context, t *models.Trip) error
	GetTrip(ctx context.Context, id string) (*models.Trip, error)
	ListActive(ctx context.Context) ([]*models.Trip, error)
	ListByDriver(ctx context.Context, driverID string) ([]*models.Trip, error)

	SaveRequest(ctx context.Context, r *models.SeatRequest) error
	UpdateRequest(ctx context.Context, r *models.SeatRequest) error
	GetRequest(ctx context.Context, id string) (*models.SeatRequest, error)
	HasOpenRequest(ctx context.Context, tripID, passengerID string) (bool, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	trips    map[string]*models.Trip
	requests map[string]*models.SeatRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:    make(map[string]*models.Trip),
		requests: make(map[string]*models.SeatRequest),
	}
}

func (m *MemoryStore) SaveTrip(_ context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
	return nil
}

func (m *MemoryStore) UpdateTrip(_ context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[t.ID]; !ok {
		return ErrNotFound
	}
	m.trips[t.ID] = t
	return nil
}

func (m *MemoryStore) GetTrip(_ context.Context, id string) (*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		if t.Matchable() {
			out = append(out, t)
		}
	}
	// map iteration order is random; keep listings deterministic
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListByDriver(_ context.Context, driverID string) ([]*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Trip, 0)
	for _, t := range m.trips {
		if t.DriverID == driverID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveRequest(_ context.Context, r *models.SeatRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryStore) UpdateRequest(_ context.Context, r *models.SeatRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; !ok {
		return ErrNotFound
	}
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryStore) GetRequest(_ context.Context, id string) (*models.SeatRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) HasOpenRequest(_ context.Context, tripID, passengerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.TripID == tripID && r.PassengerID == passengerID && r.Status != models.RequestCancelled {
			return true, nil
		}
	}
	return false, nil
}
