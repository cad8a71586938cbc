package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Informatica-uaint/HorariosLabInf/internal/access"
)

func (s *Store) FindAssistant(ctx context.Context, email string) (*access.Subject, error) {
	return s.findSubject(ctx, `
		SELECT nombre, apellido, email, activo
		FROM usuarios_ayudantes
		WHERE email = $1 AND activo = TRUE
	`, email, access.ClassAssistant)
}

func (s *Store) FindStudent(ctx context.Context, email string) (*access.Subject, error) {
	return s.findSubject(ctx, `
		SELECT nombre, apellido, email, activo
		FROM usuarios_estudiantes
		WHERE email = $1 AND activo = TRUE
	`, email, access.ClassStudent)
}

func (s *Store) findSubject(ctx context.Context, query, email string, class access.UserClass) (*access.Subject, error) {
	var sub access.Subject
	row := s.Pool.QueryRow(ctx, query, email)
	err := row.Scan(&sub.Nombre, &sub.Apellido, &sub.Email, &sub.Activo)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sub.Class = class
	return &sub, nil
}

// CreateStudent provisions the minimal profile for a subject first seen
// via the legacy QR path.
func (s *Store) CreateStudent(ctx context.Context, id access.Identity) (*access.Subject, error) {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO usuarios_estudiantes (nombre, apellido, email, activo)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (email) DO NOTHING
	`, id.Nombre, id.Apellido, id.Email)
	if err != nil {
		return nil, err
	}
	return &access.Subject{
		Nombre:   id.Nombre,
		Apellido: id.Apellido,
		Email:    id.Email,
		Class:    access.ClassStudent,
		Activo:   true,
	}, nil
}
