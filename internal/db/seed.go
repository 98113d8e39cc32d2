package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aeroreserva/flighthub/internal/config"
	"github.com/aeroreserva/flighthub/internal/domain/flight"
	"github.com/aeroreserva/flighthub/internal/domain/user"
	"github.com/aeroreserva/flighthub/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Seed creates the admin user and, on an empty vuelos table, a handful of
// sample flights. Any failure here is returned to the caller and treated as
// fatal at startup: a process that cannot seed is half-initialized and must
// not serve traffic.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureAdminUser(ctx, pool, cfg); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if err := ensureSampleFlights(ctx, pool); err != nil {
		return fmt.Errorf("seed flights: %w", err)
	}

	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM usuarios WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	u := user.User{
		ID:           uuid.NewString(),
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		IsAdmin:      true,
		RegisteredAt: time.Now().UTC(),
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO usuarios (id, nombre, email, telefono, password_hash, es_admin, fecha_registro)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.IsAdmin, u.RegisteredAt,
	)

	return err
}

func ensureSampleFlights(ctx context.Context, pool *pgxpool.Pool) error {
	var count int

	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM vuelos`).Scan(&count)

	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	samples := []flight.CreateFlightRequest{
		{Origin: "Bogotá", Destination: "Medellín", Airline: "AeroMock", Price: 120, Duration: "00:45", Capacity: 50},
		{Origin: "Bogotá", Destination: "Cali", Airline: "AeroMock", Price: 140, Duration: "01:05", Capacity: 60},
		{Origin: "Cartagena", Destination: "Bogotá", Airline: "AeroMock", Price: 160, Duration: "01:10", Capacity: 80},
	}

	for _, req := range samples {
		f := flight.NewFromCreateRequest(req)

		_, err = pool.Exec(ctx,
			`INSERT INTO vuelos (id, origen, destino, aerolinea, precio, duracion, asientos_totales, asientos_disponibles, activo, fecha_creacion)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`,
			f.ID, f.Origin, f.Destination, f.Airline, f.Price, f.Duration, f.Capacity, f.AvailableSeats, f.Active, f.CreatedAt,
		)

		if err != nil {
			return err
		}
	}

	return nil
}
