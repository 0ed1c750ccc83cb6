package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/example/carona/internal/config"
	"github.com/example/carona/internal/geocode"
	"github.com/example/carona/internal/matcher"
	"github.com/example/carona/internal/models"
	"github.com/example/carona/internal/observability"
	"github.com/example/carona/internal/routing"
	"github.com/example/carona/internal/search"
	"github.com/example/carona/internal/storage"
	"github.com/example/carona/internal/trips"
)

type Server struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	store    storage.TripStore
	geocoder *geocode.Client
	routes   routing.Generator
	matcher  *matcher.Service
	text     *search.TextMatcher
	trips    *trips.Service
	mux      *mux.Router
	handler  http.Handler
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger, store storage.TripStore,
	geocoder *geocode.Client, routes routing.Generator, m *matcher.Service,
	text *search.TextMatcher, tripSvc *trips.Service) *Server {

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		geocoder: geocoder,
		routes:   routes,
		matcher:  m,
		text:     text,
		trips:    tripSvc,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routesSetup()

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	})
	s.handler = c.Handler(s.mux)
	return s
}

func (s *Server) routesSetup() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/corridas/busca", s.handleSearch).Methods("GET")
	api.HandleFunc("/geocode", s.handleGeocode).Methods("GET")
	api.HandleFunc("/geocode/sugestoes", s.handleSuggest).Methods("GET")
	api.HandleFunc("/rota", s.handleRoute).Methods("GET")
	api.HandleFunc("/corridas", s.handleCreateTrip).Methods("POST")
	api.HandleFunc("/corridas", s.handleListTrips).Methods("GET")
	api.HandleFunc("/corridas/{id}", s.handleEditTrip).Methods("PUT")
	api.HandleFunc("/corridas/{id}/cancelar", s.handleToggleCancel).Methods("POST")
	api.HandleFunc("/corridas/{id}/solicitacoes", s.handleRequestSeat).Methods("POST")
	api.HandleFunc("/solicitacoes/{id}/responder", s.handleRespondRequest).Methods("POST")
	api.HandleFunc("/solicitacoes/{id}/cancelar", s.handleCancelRequest).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

// tripJSON is the API shape of a trip in search and listing responses.
type tripJSON struct {
	ID             string       `json:"id"`
	Origem         string       `json:"origem"`
	Destino        string       `json:"destino"`
	OrigemLat      float64      `json:"origem_lat"`
	OrigemLon      float64      `json:"origem_lon"`
	DestinoLat     float64      `json:"destino_lat"`
	DestinoLon     float64      `json:"destino_lon"`
	Rota           models.Route `json:"rota"`
	HorarioSaida   string       `json:"horario_saida,omitempty"`
	HorarioChegada string       `json:"horario_chegada,omitempty"`
	Valor          float64      `json:"valor"`
	Vagas          int          `json:"vagas_disponiveis"`
	DistanciaM     float64      `json:"distancia_m"`
}

// serializeTrip mirrors the matcher's leniency: endpoint coordinates missing
// on the record are backfilled from the route extremities when possible.
func serializeTrip(t *models.Trip, distanceM float64) tripJSON {
	out := tripJSON{
		ID:             t.ID,
		Origem:         t.Origem,
		Destino:        t.Destino,
		Rota:           t.Rota,
		HorarioSaida:   t.HorarioSaida,
		HorarioChegada: t.HorarioChegada,
		Valor:          t.Valor,
		Vagas:          t.Vagas,
		DistanciaM:     distanceM,
	}
	if t.OrigemLat != nil && t.OrigemLon != nil {
		out.OrigemLat, out.OrigemLon = *t.OrigemLat, *t.OrigemLon
	} else if len(t.Rota) > 0 {
		out.OrigemLat, out.OrigemLon = t.Rota[0].Lat, t.Rota[0].Lon
	}
	if t.DestinoLat != nil && t.DestinoLon != nil {
		out.DestinoLat, out.DestinoLon = *t.DestinoLat, *t.DestinoLon
	} else if len(t.Rota) > 0 {
		last := t.Rota[len(t.Rota)-1]
		out.DestinoLat, out.DestinoLon = last.Lat, last.Lon
	}
	return out
}

// handleSearch is the passenger-facing search entrypoint. Geocoding failures
// degrade to the text fallback matcher; only a missing query is an error.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	origem := r.URL.Query().Get("origem")
	if geocode.Normalize(origem) == "" {
		writeError(w, http.StatusBadRequest, `parâmetro "origem" obrigatório`)
		return
	}

	var tolerance float64
	var hasTolerance bool
	if tol := r.URL.Query().Get("tol"); tol != "" {
		if v, err := strconv.ParseFloat(tol, 64); err == nil {
			tolerance, hasTolerance = v, true
		}
	}

	coord, err := s.geocoder.Geocode(r.Context(), origem)
	if err != nil {
		// degraded mode: substring match on trip address fields
		observability.TextFallbacks.Inc()
		s.logger.Warn("geocode failed, using text fallback", "origem", origem, "error", err)
		found, terr := s.text.FindByText(r.Context(), origem)
		if terr != nil {
			writeError(w, http.StatusInternalServerError, "busca indisponível")
			return
		}
		results := make([]tripJSON, 0, len(found))
		for _, t := range found {
			results = append(results, serializeTrip(t, 0))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true, "modo": "texto", "corridas": results,
		})
		return
	}

	if !hasTolerance {
		tolerance = matcher.ToleranceForQuery(geocode.Normalize(origem))
	}
	tolerance = matcher.ClampTolerance(tolerance)

	outcome, err := s.matcher.FindNear(r.Context(), coord.Lat, coord.Lon, tolerance)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "busca indisponível")
		return
	}

	results := make([]tripJSON, 0, len(outcome.Matches))
	for _, m := range outcome.Matches {
		results = append(results, serializeTrip(m.Trip, m.DistanceM))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"modo":          "proximidade",
		"coords":        coord,
		"tolerancia_m":  tolerance,
		"corridas":      results,
		"descartadas":   outcome.Skipped,
	})
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	endereco := r.URL.Query().Get("endereco")
	if geocode.Normalize(endereco) == "" {
		writeError(w, http.StatusBadRequest, "endereço não fornecido")
		return
	}
	coord, err := s.geocoder.Geocode(r.Context(), endereco)
	if err != nil {
		writeError(w, http.StatusNotFound, "não foi possível geocodificar")
		return
	}
	writeJSON(w, http.StatusOK, coord)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}
	opts := geocode.SuggestOptions{Lang: r.URL.Query().Get("lang")}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		opts.Limit = v
	}
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat == nil && errLon == nil {
		opts.Bias = &models.Coord{Lat: lat, Lon: lon}
	}
	suggestions := s.geocoder.Suggest(r.Context(), s.cfg.PhotonBaseURL, q, opts)
	if suggestions == nil {
		suggestions = []geocode.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	origin, err1 := coordParam(r, "lat_origem", "lon_origem")
	dest, err2 := coordParam(r, "lat_destino", "lon_destino")
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "coordenadas inválidas")
		return
	}
	res, err := s.routes.Generate(r.Context(), origin, dest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rota": res.Points, "distancia_m": res.DistanceM, "fallback": res.Fallback,
	})
}

type createTripRequest struct {
	MotoristaID    string   `json:"motorista_id"`
	Origem         string   `json:"origem"`
	BairroOrigem   string   `json:"bairro_origem"`
	CidadeOrigem   string   `json:"cidade_origem"`
	EstadoOrigem   string   `json:"estado_origem"`
	Destino        string   `json:"destino"`
	BairroDestino  string   `json:"bairro_destino"`
	CidadeDestino  string   `json:"cidade_destino"`
	EstadoDestino  string   `json:"estado_destino"`
	OrigemLat      *float64 `json:"origem_lat"`
	OrigemLon      *float64 `json:"origem_lon"`
	DestinoLat     *float64 `json:"destino_lat"`
	DestinoLon     *float64 `json:"destino_lon"`
	Data           string   `json:"data"`
	HorarioSaida   string   `json:"horario_saida"`
	HorarioChegada string   `json:"horario_chegada"`
	Vagas          int      `json:"vagas_disponiveis"`
	Valor          float64  `json:"valor"`
	Observacoes    string   `json:"observacoes"`
}

func (req *createTripRequest) toInput() (trips.CreateTripInput, error) {
	in := trips.CreateTripInput{
		DriverID: req.MotoristaID,
		Origem:   req.Origem, BairroOrigem: req.BairroOrigem,
		CidadeOrigem: req.CidadeOrigem, EstadoOrigem: req.EstadoOrigem,
		Destino: req.Destino, BairroDestino: req.BairroDestino,
		CidadeDestino: req.CidadeDestino, EstadoDestino: req.EstadoDestino,
		OrigemLat: req.OrigemLat, OrigemLon: req.OrigemLon,
		DestinoLat: req.DestinoLat, DestinoLon: req.DestinoLon,
		HorarioSaida:   req.HorarioSaida,
		HorarioChegada: req.HorarioChegada,
		Vagas:          req.Vagas,
		Valor:          req.Valor,
		Observacoes:    req.Observacoes,
	}
	if req.MotoristaID == "" || req.Origem == "" || req.Destino == "" {
		return in, errors.New("motorista_id, origem e destino são obrigatórios")
	}
	if req.Data != "" {
		d, err := parseDate(req.Data)
		if err != nil {
			return in, err
		}
		in.Data = d
	}
	return in, nil
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.trips.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleEditTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.trips.Edit(r.Context(), mux.Vars(r)["id"], req.MotoristaID, in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	driverID := r.URL.Query().Get("motorista")
	var (
		list []*models.Trip
		err  error
	)
	if driverID != "" {
		list, err = s.store.ListByDriver(r.Context(), driverID)
	} else {
		list, err = s.store.ListActive(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listagem indisponível")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"corridas": list})
}

type actorRequest struct {
	MotoristaID  string `json:"motorista_id"`
	PassageiroID string `json:"passageiro_id"`
	Aceitar      bool   `json:"aceitar"`
}

func (s *Server) handleToggleCancel(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.trips.ToggleCancel(r.Context(), mux.Vars(r)["id"], req.MotoristaID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": t.Status})
}

func (s *Server) handleRequestSeat(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sr, err := s.trips.RequestSeat(r.Context(), mux.Vars(r)["id"], req.PassageiroID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok": true, "id": sr.ID, "status": sr.Status, "data_solicitacao": sr.CreatedAt,
	})
}

func (s *Server) handleRespondRequest(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sr, err := s.trips.RespondRequest(r.Context(), mux.Vars(r)["id"], req.MotoristaID, req.Aceitar)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": sr.Status})
}

func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sr, err := s.trips.CancelRequest(r.Context(), mux.Vars(r)["id"], req.PassageiroID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": sr.Status})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "registro não encontrado")
	case errors.Is(err, trips.ErrCoordinatesRequired),
		errors.Is(err, routing.ErrMissingCoordinates),
		errors.Is(err, trips.ErrOwnTrip),
		errors.Is(err, trips.ErrDuplicateRequest),
		errors.Is(err, trips.ErrNotPending),
		errors.Is(err, trips.ErrNoSeats),
		errors.Is(err, trips.ErrNotActive):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, trips.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "erro interno")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "erro": msg})
}

func coordParam(r *http.Request, latKey, lonKey string) (*models.Coord, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get(latKey), 64)
	if err != nil {
		return nil, err
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get(lonKey), 64)
	if err != nil {
		return nil, err
	}
	return &models.Coord{Lat: lat, Lon: lon}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
