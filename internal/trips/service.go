package trips

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/carona/internal/geo"
	"github.com/example/carona/internal/models"
	"github.com/example/carona/internal/observability"
	"github.com/example/carona/internal/routing"
	"github.com/example/carona/internal/storage"
)

var (
	ErrCoordinatesRequired = errors.New("trips: origin and destination coordinates are required")
	ErrNotOwner            = errors.New("trips: not the trip owner")
	ErrNotActive           = errors.New("trips: trip is not active")
	ErrOwnTrip             = errors.New("trips: driver cannot request a seat on own trip")
	ErrDuplicateRequest    = errors.New("trips: passenger already has an open request for this trip")
	ErrNotPending          = errors.New("trips: request is not pending")
	ErrNoSeats             = errors.New("trips: no seats available")
)

// EventPublisher pushes trip lifecycle events to downstream consumers.
// Best effort: publish failures are logged, never surfaced to the driver.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.TripEvent) error
}

type Service struct {
	Store  storage.TripStore
	Routes routing.Generator
	Events EventPublisher // optional
	Logger *slog.Logger
}

type CreateTripInput struct {
	DriverID string

	Origem        string
	BairroOrigem  string
	CidadeOrigem  string
	EstadoOrigem  string
	Destino       string
	BairroDestino string
	CidadeDestino string
	EstadoDestino string

	OrigemLat  *float64
	OrigemLon  *float64
	DestinoLat *float64
	DestinoLon *float64

	Data           time.Time
	HorarioSaida   string
	HorarioChegada string
	Vagas          int
	Valor          float64
	Observacoes    string
}

func (in *CreateTripInput) coords() (*models.Coord, *models.Coord, error) {
	if in.OrigemLat == nil || in.OrigemLon == nil || in.DestinoLat == nil || in.DestinoLon == nil {
		return nil, nil, ErrCoordinatesRequired
	}
	o := &models.Coord{Lat: *in.OrigemLat, Lon: *in.OrigemLon}
	d := &models.Coord{Lat: *in.DestinoLat, Lon: *in.DestinoLon}
	return o, d, nil
}

// Create publishes a trip. Route and bounding box are computed synchronously
// before the trip is stored, so every stored trip is immediately searchable.
func (s *Service) Create(ctx context.Context, in CreateTripInput) (*models.Trip, error) {
	origin, dest, err := in.coords()
	if err != nil {
		return nil, err
	}

	res, err := s.Routes.Generate(ctx, origin, dest)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t := &models.Trip{
		ID:       uuid.NewString(),
		DriverID: in.DriverID,
		Status:   models.TripActive,

		Origem: in.Origem, BairroOrigem: in.BairroOrigem,
		CidadeOrigem: in.CidadeOrigem, EstadoOrigem: in.EstadoOrigem,
		Destino: in.Destino, BairroDestino: in.BairroDestino,
		CidadeDestino: in.CidadeDestino, EstadoDestino: in.EstadoDestino,

		OrigemLat: in.OrigemLat, OrigemLon: in.OrigemLon,
		DestinoLat: in.DestinoLat, DestinoLon: in.DestinoLon,

		Rota:        res.Points,
		DistanciaM:  res.DistanceM,
		PontosCount: res.PointCount,
		BBox:        geo.ComputeBBox(res.Points),

		Data:           in.Data,
		HorarioSaida:   in.HorarioSaida,
		HorarioChegada: in.HorarioChegada,
		Vagas:          in.Vagas,
		Valor:          in.Valor,
		Observacoes:    in.Observacoes,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Store.SaveTrip(ctx, t); err != nil {
		return nil, err
	}
	observability.TripsActive.Inc()
	s.publish(ctx, "created", t)
	return t, nil
}

// Edit updates a trip's endpoints and details. When either endpoint moved,
// route, distance and bbox are recomputed before the update is stored.
func (s *Service) Edit(ctx context.Context, tripID, driverID string, in CreateTripInput) (*models.Trip, error) {
	t, err := s.Store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != driverID {
		return nil, ErrNotOwner
	}

	origin, dest, err := in.coords()
	if err != nil {
		return nil, err
	}

	moved := !sameCoord(t.OrigemLat, t.OrigemLon, origin) || !sameCoord(t.DestinoLat, t.DestinoLon, dest)

	t.Origem, t.BairroOrigem = in.Origem, in.BairroOrigem
	t.CidadeOrigem, t.EstadoOrigem = in.CidadeOrigem, in.EstadoOrigem
	t.Destino, t.BairroDestino = in.Destino, in.BairroDestino
	t.CidadeDestino, t.EstadoDestino = in.CidadeDestino, in.EstadoDestino
	t.OrigemLat, t.OrigemLon = in.OrigemLat, in.OrigemLon
	t.DestinoLat, t.DestinoLon = in.DestinoLat, in.DestinoLon
	t.Data = in.Data
	t.HorarioSaida, t.HorarioChegada = in.HorarioSaida, in.HorarioChegada
	t.Vagas, t.Valor = in.Vagas, in.Valor
	t.Observacoes = in.Observacoes

	if moved {
		res, err := s.Routes.Generate(ctx, origin, dest)
		if err != nil {
			return nil, err
		}
		t.Rota = res.Points
		t.DistanciaM = res.DistanceM
		t.PontosCount = res.PointCount
		t.BBox = geo.ComputeBBox(res.Points)
	}

	if err := s.Store.UpdateTrip(ctx, t); err != nil {
		return nil, err
	}
	s.publish(ctx, "updated", t)
	return t, nil
}

// ToggleCancel cancels an active trip or reactivates a cancelled one.
func (s *Service) ToggleCancel(ctx context.Context, tripID, driverID string) (*models.Trip, error) {
	t, err := s.Store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != driverID {
		return nil, ErrNotOwner
	}

	evt := "cancelled"
	if t.Status == models.TripActive {
		t.Status = models.TripCancelled
		observability.TripsActive.Dec()
	} else {
		t.Status = models.TripActive
		observability.TripsActive.Inc()
		evt = "reactivated"
	}

	if err := s.Store.UpdateTrip(ctx, t); err != nil {
		return nil, err
	}
	s.publish(ctx, evt, t)
	return t, nil
}

// RequestSeat creates a pending seat request for the passenger. The trip
// must be active, not owned by the passenger, and free of any non-cancelled
// request from the same passenger.
func (s *Service) RequestSeat(ctx context.Context, tripID, passengerID string) (*models.SeatRequest, error) {
	t, err := s.Store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !t.Matchable() {
		return nil, ErrNotActive
	}
	if t.DriverID == passengerID {
		return nil, ErrOwnTrip
	}

	open, err := s.Store.HasOpenRequest(ctx, tripID, passengerID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrDuplicateRequest
	}

	now := time.Now()
	r := &models.SeatRequest{
		ID:          uuid.NewString(),
		TripID:      tripID,
		PassengerID: passengerID,
		Status:      models.RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.SaveRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RespondRequest lets the trip's driver accept or reject a pending request.
// Accepting takes a seat.
func (s *Service) RespondRequest(ctx context.Context, requestID, driverID string, accept bool) (*models.SeatRequest, error) {
	r, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RequestPending {
		return nil, ErrNotPending
	}

	t, err := s.Store.GetTrip(ctx, r.TripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != driverID {
		return nil, ErrNotOwner
	}

	if accept {
		if t.Vagas <= 0 {
			return nil, ErrNoSeats
		}
		t.Vagas--
		if err := s.Store.UpdateTrip(ctx, t); err != nil {
			return nil, err
		}
		r.Status = models.RequestAccepted
	} else {
		r.Status = models.RequestRejected
	}

	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CancelRequest lets the passenger withdraw a still-pending request.
func (s *Service) CancelRequest(ctx context.Context, requestID, passengerID string) (*models.SeatRequest, error) {
	r, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.PassengerID != passengerID {
		return nil, ErrNotOwner
	}
	if r.Status != models.RequestPending {
		return nil, ErrNotPending
	}
	r.Status = models.RequestCancelled
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) publish(ctx context.Context, evtType string, t *models.Trip) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, models.TripEvent{Type: evtType, Trip: t}); err != nil {
		s.Logger.Warn("trip event publish failed", "corrida_id", t.ID, "type", evtType, "error", err)
	}
}

func sameCoord(lat, lon *float64, c *models.Coord) bool {
	return lat != nil && lon != nil && *lat == c.Lat && *lon == c.Lon
}
