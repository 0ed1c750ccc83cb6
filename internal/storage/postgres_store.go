package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/carona/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

const tripColumns = `id, motorista_id, status,
	origem, bairro_origem, cidade_origem, estado_origem,
	destino, bairro_destino, cidade_destino, estado_destino,
	origem_lat, origem_lon, destino_lat, destino_lon,
	rota, distancia_m, pontos_count,
	bbox_min_lat, bbox_max_lat, bbox_min_lon, bbox_max_lon,
	data, horario_saida, horario_chegada, vagas_disponiveis, valor, observacoes,
	created_at, updated_at`

func (p *PostgresStore) SaveTrip(ctx context.Context, t *models.Trip) error {
	rota, err := json.Marshal(t.Rota)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO corridas(`+tripColumns+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)`,
		t.ID, t.DriverID, t.Status,
		t.Origem, nullStr(t.BairroOrigem), nullStr(t.CidadeOrigem), nullStr(t.EstadoOrigem),
		t.Destino, nullStr(t.BairroDestino), nullStr(t.CidadeDestino), nullStr(t.EstadoDestino),
		t.OrigemLat, t.OrigemLon, t.DestinoLat, t.DestinoLon,
		rota, t.DistanciaM, t.PontosCount,
		bboxField(t.BBox, t.BBox.MinLat), bboxField(t.BBox, t.BBox.MaxLat),
		bboxField(t.BBox, t.BBox.MinLon), bboxField(t.BBox, t.BBox.MaxLon),
		t.Data, nullStr(t.HorarioSaida), nullStr(t.HorarioChegada), t.Vagas, t.Valor, nullStr(t.Observacoes),
		t.CreatedAt, t.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateTrip(ctx context.Context, t *models.Trip) error {
	rota, err := json.Marshal(t.Rota)
	if err != nil {
		return err
	}
	t.UpdatedAt = time.Now()
	res, err := p.db.ExecContext(ctx, `UPDATE corridas SET status=$1,
		origem=$2, bairro_origem=$3, cidade_origem=$4, estado_origem=$5,
		destino=$6, bairro_destino=$7, cidade_destino=$8, estado_destino=$9,
		origem_lat=$10, origem_lon=$11, destino_lat=$12, destino_lon=$13,
		rota=$14, distancia_m=$15, pontos_count=$16,
		bbox_min_lat=$17, bbox_max_lat=$18, bbox_min_lon=$19, bbox_max_lon=$20,
		data=$21, horario_saida=$22, horario_chegada=$23,
		vagas_disponiveis=$24, valor=$25, observacoes=$26, updated_at=$27
		WHERE id=$28`,
		t.Status,
		t.Origem, nullStr(t.BairroOrigem), nullStr(t.CidadeOrigem), nullStr(t.EstadoOrigem),
		t.Destino, nullStr(t.BairroDestino), nullStr(t.CidadeDestino), nullStr(t.EstadoDestino),
		t.OrigemLat, t.OrigemLon, t.DestinoLat, t.DestinoLon,
		rota, t.DistanciaM, t.PontosCount,
		bboxField(t.BBox, t.BBox.MinLat), bboxField(t.BBox, t.BBox.MaxLat),
		bboxField(t.BBox, t.BBox.MinLon), bboxField(t.BBox, t.BBox.MaxLon),
		t.Data, nullStr(t.HorarioSaida), nullStr(t.HorarioChegada),
		t.Vagas, t.Valor, nullStr(t.Observacoes), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM corridas WHERE id=$1`, id)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (p *PostgresStore) ListActive(ctx context.Context) ([]*models.Trip, error) {
	return p.listTrips(ctx, `SELECT `+tripColumns+` FROM corridas WHERE status=$1 ORDER BY id`, models.TripActive)
}

func (p *PostgresStore) ListByDriver(ctx context.Context, driverID string) ([]*models.Trip, error) {
	return p.listTrips(ctx, `SELECT `+tripColumns+` FROM corridas WHERE motorista_id=$1 ORDER BY data DESC, horario_saida`, driverID)
}

func (p *PostgresStore) listTrips(ctx context.Context, query string, args ...any) ([]*models.Trip, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(s scanner) (*models.Trip, error) {
	var t models.Trip
	var bairroO, cidadeO, estadoO, bairroD, cidadeD, estadoD sql.NullString
	var saida, chegada, obs sql.NullString
	var rota []byte
	var minLat, maxLat, minLon, maxLon sql.NullFloat64
	err := s.Scan(&t.ID, &t.DriverID, &t.Status,
		&t.Origem, &bairroO, &cidadeO, &estadoO,
		&t.Destino, &bairroD, &cidadeD, &estadoD,
		&t.OrigemLat, &t.OrigemLon, &t.DestinoLat, &t.DestinoLon,
		&rota, &t.DistanciaM, &t.PontosCount,
		&minLat, &maxLat, &minLon, &maxLon,
		&t.Data, &saida, &chegada, &t.Vagas, &t.Valor, &obs,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.BairroOrigem, t.CidadeOrigem, t.EstadoOrigem = bairroO.String, cidadeO.String, estadoO.String
	t.BairroDestino, t.CidadeDestino, t.EstadoDestino = bairroD.String, cidadeD.String, estadoD.String
	t.HorarioSaida, t.HorarioChegada, t.Observacoes = saida.String, chegada.String, obs.String
	if len(rota) > 0 {
		// a malformed stored route degrades to "no geometry", it must not
		// poison every search that scans this trip
		_ = json.Unmarshal(rota, &t.Rota)
	}
	if minLat.Valid && maxLat.Valid && minLon.Valid && maxLon.Valid {
		t.BBox = models.BoundingBox{
			MinLat: minLat.Float64, MaxLat: maxLat.Float64,
			MinLon: minLon.Float64, MaxLon: maxLon.Float64,
			Valid: true,
		}
	}
	return &t, nil
}

func (p *PostgresStore) SaveRequest(ctx context.Context, r *models.SeatRequest) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO solicitacoes_carona(id, corrida_id, passageiro_id, status, data_solicitacao, updated_at)
		VALUES($1,$2,$3,$4,$5,$6)`,
		r.ID, r.TripID, r.PassengerID, r.Status, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateRequest(ctx context.Context, r *models.SeatRequest) error {
	r.UpdatedAt = time.Now()
	res, err := p.db.ExecContext(ctx, `UPDATE solicitacoes_carona SET status=$1, updated_at=$2 WHERE id=$3`,
		r.Status, r.UpdatedAt, r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) GetRequest(ctx context.Context, id string) (*models.SeatRequest, error) {
	var r models.SeatRequest
	err := p.db.QueryRowContext(ctx, `SELECT id, corrida_id, passageiro_id, status, data_solicitacao, updated_at
		FROM solicitacoes_carona WHERE id=$1`, id).
		Scan(&r.ID, &r.TripID, &r.PassengerID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PostgresStore) HasOpenRequest(ctx context.Context, tripID, passengerID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(
		SELECT 1 FROM solicitacoes_carona WHERE corrida_id=$1 AND passageiro_id=$2 AND status<>$3)`,
		tripID, passengerID, models.RequestCancelled).Scan(&exists)
	return exists, err
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func bboxField(b models.BoundingBox, v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: b.Valid}
}
