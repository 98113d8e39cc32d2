package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema keeps the original Spanish table and column names. The one
// deliberate addition is asientos_totales: availability can only be checked
// against capacity if capacity is stored, not conflated with the live count.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS usuarios (
		id              TEXT PRIMARY KEY,
		nombre          TEXT NOT NULL,
		email           TEXT NOT NULL UNIQUE,
		telefono        TEXT NOT NULL DEFAULT '',
		password_hash   TEXT NOT NULL,
		es_admin        BOOLEAN NOT NULL DEFAULT FALSE,
		fecha_registro  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vuelos (
		id                    TEXT PRIMARY KEY,
		origen                TEXT NOT NULL,
		destino               TEXT NOT NULL,
		aerolinea             TEXT NOT NULL DEFAULT '',
		precio                INTEGER NOT NULL CHECK (precio > 0),
		duracion              TEXT NOT NULL DEFAULT '',
		asientos_totales      INTEGER NOT NULL CHECK (asientos_totales > 0),
		asientos_disponibles  INTEGER NOT NULL CHECK (asientos_disponibles >= 0),
		activo                BOOLEAN NOT NULL DEFAULT TRUE,
		fecha_creacion        TIMESTAMPTZ NOT NULL,
		CHECK (asientos_disponibles <= asientos_totales)
	)`,
	`CREATE TABLE IF NOT EXISTS reservas (
		id             TEXT PRIMARY KEY,
		usuario_id     TEXT NOT NULL REFERENCES usuarios(id),
		vuelo_id       TEXT NOT NULL REFERENCES vuelos(id),
		num_pasajeros  INTEGER NOT NULL CHECK (num_pasajeros >= 1),
		precio_total   INTEGER NOT NULL,
		pagado         BOOLEAN NOT NULL DEFAULT FALSE,
		estado         TEXT NOT NULL,
		codigo_reserva TEXT NOT NULL UNIQUE,
		fecha_reserva  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reservas_usuario_idx ON reservas (usuario_id, fecha_reserva DESC)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id              TEXT PRIMARY KEY,
		type            TEXT NOT NULL,
		payload         JSONB NOT NULL,
		status          TEXT NOT NULL,
		attempts        INTEGER NOT NULL DEFAULT 0,
		max_attempts    INTEGER NOT NULL DEFAULT 25,
		run_at          TIMESTAMPTZ NOT NULL,
		locked_at       TIMESTAMPTZ,
		locked_by       TEXT,
		last_error      TEXT,
		idempotency_key TEXT UNIQUE,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_claim_idx ON jobs (status, run_at)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
