package db

import "context"

// EnsureSchema creates the tables the service owns when they do not
// exist yet. The directory tables are normally managed by the admin
// backend; they are included so a fresh deployment is self-sufficient.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usuarios_ayudantes (
			id       BIGSERIAL PRIMARY KEY,
			nombre   TEXT NOT NULL,
			apellido TEXT NOT NULL,
			email    TEXT NOT NULL UNIQUE,
			activo   BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS usuarios_estudiantes (
			id       BIGSERIAL PRIMARY KEY,
			nombre   TEXT NOT NULL,
			apellido TEXT NOT NULL,
			email    TEXT NOT NULL UNIQUE,
			activo   BOOLEAN NOT NULL DEFAULT TRUE,
			tp       TEXT NOT NULL DEFAULT 'No especificado'
		)`,
		`CREATE TABLE IF NOT EXISTS registros (
			id            UUID PRIMARY KEY,
			fecha         DATE NOT NULL,
			hora          TIME NOT NULL,
			dia           TEXT NOT NULL,
			nombre        TEXT NOT NULL,
			apellido      TEXT NOT NULL,
			email         TEXT NOT NULL,
			tipo          TEXT NOT NULL,
			auto_generado BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_registros_fecha ON registros (fecha, hora)`,
		`CREATE TABLE IF NOT EXISTS est_registros (
			id            UUID PRIMARY KEY,
			fecha         DATE NOT NULL,
			hora          TIME NOT NULL,
			dia           TEXT NOT NULL,
			nombre        TEXT NOT NULL,
			apellido      TEXT NOT NULL,
			email         TEXT NOT NULL,
			tipo          TEXT NOT NULL,
			auto_generado BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_est_registros_fecha ON est_registros (fecha, hora)`,
		`CREATE TABLE IF NOT EXISTS estado_usuarios (
			email          TEXT PRIMARY KEY,
			nombre         TEXT NOT NULL,
			apellido       TEXT NOT NULL,
			estado         TEXT NOT NULL DEFAULT 'fuera',
			ultima_entrada TIMESTAMPTZ,
			ultima_salida  TIMESTAMPTZ,
			updated_at     TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
