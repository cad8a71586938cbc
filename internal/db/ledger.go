package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Informatica-uaint/HorariosLabInf/internal/access"
)

func ledgerTable(class access.UserClass) string {
	if class == access.ClassAssistant {
		return "registros"
	}
	return "est_registros"
}

func (s *Store) GetPresence(ctx context.Context, email string) (*access.Presence, error) {
	var p access.Presence
	row := s.Pool.QueryRow(ctx, `
		SELECT email, nombre, apellido, estado, ultima_entrada, ultima_salida, updated_at
		FROM estado_usuarios
		WHERE email = $1
	`, email)
	err := row.Scan(&p.Email, &p.Nombre, &p.Apellido, &p.Estado, &p.UltimaEntrada, &p.UltimaSalida, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RegisterTransition commits the ledger append and the presence upsert
// as one transaction.
func (s *Store) RegisterTransition(ctx context.Context, class access.UserClass, ev access.Event, p access.Presence) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO `+ledgerTable(class)+` (id, fecha, hora, dia, nombre, apellido, email, tipo, auto_generado, created_at)
			VALUES ($1, $2::date, $3::time, $4, $5, $6, $7, $8, $9, $10)
		`, ev.ID, ev.Fecha, ev.Hora, ev.Dia, ev.Nombre, ev.Apellido, ev.Email, ev.Tipo, ev.AutoGenerado, ev.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO estado_usuarios (email, nombre, apellido, estado, ultima_entrada, ultima_salida, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (email) DO UPDATE SET
				nombre = EXCLUDED.nombre,
				apellido = EXCLUDED.apellido,
				estado = EXCLUDED.estado,
				ultima_entrada = EXCLUDED.ultima_entrada,
				ultima_salida = EXCLUDED.ultima_salida,
				updated_at = EXCLUDED.updated_at
		`, p.Email, p.Nombre, p.Apellido, p.Estado, p.UltimaEntrada, p.UltimaSalida, p.UpdatedAt)
		return err
	})
}

func (s *Store) AssistantEventsForDate(ctx context.Context, fecha string) ([]access.Event, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, to_char(fecha, 'YYYY-MM-DD'), to_char(hora, 'HH24:MI:SS'), dia,
		       nombre, apellido, email, tipo, auto_generado, created_at
		FROM registros
		WHERE fecha = $1::date
		ORDER BY hora ASC
	`, fecha)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// StudentEventsBetween returns the student ledger for [desde, hasta],
// newest first, for the report endpoints.
func (s *Store) StudentEventsBetween(ctx context.Context, desde, hasta string) ([]access.Event, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, to_char(fecha, 'YYYY-MM-DD'), to_char(hora, 'HH24:MI:SS'), dia,
		       nombre, apellido, email, tipo, auto_generado, created_at
		FROM est_registros
		WHERE fecha BETWEEN $1::date AND $2::date
		ORDER BY fecha DESC, hora DESC
	`, desde, hasta)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// LastStudentEventForDate backs the qr/status endpoint.
func (s *Store) LastStudentEventForDate(ctx context.Context, email, fecha string) (*access.Event, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, to_char(fecha, 'YYYY-MM-DD'), to_char(hora, 'HH24:MI:SS'), dia,
		       nombre, apellido, email, tipo, auto_generado, created_at
		FROM est_registros
		WHERE email = $1 AND fecha = $2::date
		ORDER BY hora DESC
		LIMIT 1
	`, email, fecha)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (s *Store) ListInside(ctx context.Context) ([]access.Presence, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT email, nombre, apellido, estado, ultima_entrada, ultima_salida, updated_at
		FROM estado_usuarios
		WHERE estado = 'dentro'
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inside []access.Presence
	for rows.Next() {
		var p access.Presence
		if err := rows.Scan(&p.Email, &p.Nombre, &p.Apellido, &p.Estado, &p.UltimaEntrada, &p.UltimaSalida, &p.UpdatedAt); err != nil {
			return nil, err
		}
		inside = append(inside, p)
	}
	return inside, rows.Err()
}

func scanEvents(rows pgx.Rows) ([]access.Event, error) {
	var events []access.Event
	for rows.Next() {
		var ev access.Event
		if err := rows.Scan(&ev.ID, &ev.Fecha, &ev.Hora, &ev.Dia, &ev.Nombre, &ev.Apellido, &ev.Email, &ev.Tipo, &ev.AutoGenerado, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
