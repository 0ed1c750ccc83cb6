package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Route is an ordered polyline from origin to destination. Empty means route
// construction failed for the trip; the matcher falls back to endpoints.
// Wire format is a JSON list of [lat, lon] pairs, both in the API and in the
// rota column.
type Route []Coord

func (r Route) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, 0, len(r))
	for _, p := range r {
		pairs = append(pairs, [2]float64{p.Lat, p.Lon})
	}
	return json.Marshal(pairs)
}

func (r *Route) UnmarshalJSON(data []byte) error {
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(Route, 0, len(pairs))
	for i, p := range pairs {
		if len(p) < 2 {
			return fmt.Errorf("route point %d: want [lat, lon], got %d values", i, len(p))
		}
		out = append(out, Coord{Lat: p[0], Lon: p[1]})
	}
	*r = out
	return nil
}

// BoundingBox is the minimal rectangle enclosing a trip route. Valid=false
// means the trip has no spatial footprint (empty route).
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
	Valid  bool    `json:"valid"`
}

// Trip status values. Only active trips are matchable.
const (
	TripActive    = "ativa"
	TripCancelled = "cancelada"
	TripOngoing   = "em_andamento"
	TripFinished  = "finalizada"
)

type Trip struct {
	ID       string `json:"id"`
	DriverID string `json:"motorista_id"`
	Status   string `json:"status"`

	Origem        string `json:"origem"`
	BairroOrigem  string `json:"bairro_origem,omitempty"`
	CidadeOrigem  string `json:"cidade_origem,omitempty"`
	EstadoOrigem  string `json:"estado_origem,omitempty"`
	Destino       string `json:"destino"`
	BairroDestino string `json:"bairro_destino,omitempty"`
	CidadeDestino string `json:"cidade_destino,omitempty"`
	EstadoDestino string `json:"estado_destino,omitempty"`

	// Explicit endpoint coordinates. Pointers because legacy trips may carry
	// no geometry at all; the matcher must tolerate that.
	OrigemLat  *float64 `json:"origem_lat,omitempty"`
	OrigemLon  *float64 `json:"origem_lon,omitempty"`
	DestinoLat *float64 `json:"destino_lat,omitempty"`
	DestinoLon *float64 `json:"destino_lon,omitempty"`

	Rota        Route       `json:"rota"`
	DistanciaM  float64     `json:"distancia_m"`
	PontosCount int         `json:"pontos_count"`
	BBox        BoundingBox `json:"bbox"`

	Data           time.Time `json:"data"`
	HorarioSaida   string    `json:"horario_saida,omitempty"`
	HorarioChegada string    `json:"horario_chegada,omitempty"`
	Vagas          int       `json:"vagas_disponiveis"`
	Valor          float64   `json:"valor"`
	Observacoes    string    `json:"observacoes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matchable reports whether the trip can appear in search results.
func (t *Trip) Matchable() bool { return t.Status == TripActive }

// SeatRequest status values.
const (
	RequestPending   = "PENDENTE"
	RequestAccepted  = "ACEITA"
	RequestRejected  = "RECUSADA"
	RequestCancelled = "CANCELADA"
)

// SeatRequest is a passenger's request for a seat on a single trip. At most
// one non-cancelled request may exist per (trip, passenger) pair.
type SeatRequest struct {
	ID          string    `json:"id"`
	TripID      string    `json:"corrida_id"`
	PassengerID string    `json:"passageiro_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"data_solicitacao"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Match pairs a trip with its computed distance from the query point.
// Ephemeral: produced by the matcher, never persisted.
type Match struct {
	Trip      *Trip   `json:"corrida"`
	DistanceM float64 `json:"distancia_m"`
}

// TripEvent is the message published to Kafka on trip lifecycle changes.
type TripEvent struct {
	Type string `json:"type"` // created, updated, cancelled, reactivated
	Trip *Trip  `json:"corrida"`
}
