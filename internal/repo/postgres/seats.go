package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aeroreserva/flighthub/internal/domain/flight"
	"github.com/aeroreserva/flighthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeatInventory is the only code that touches asientos_disponibles. Both
// operations run inside the caller's transaction so a failed reservation
// insert rolls the seat count back with it.
type SeatInventory struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSeatInventory(pool *pgxpool.Pool, prom *observability.Prom) *SeatInventory {
	return &SeatInventory{pool: pool, prom: prom}
}

func (s *SeatInventory) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveDB(op, fn)
	}
	return fn()
}

// TryReserve decrements availability by count only if enough seats remain.
// The guard and the decrement are one UPDATE, so two concurrent callers
// racing for the last seats serialize on the row: one wins, one sees
// ErrInsufficientSeats. No intermediate state is ever visible.
func (s *SeatInventory) TryReserve(ctx context.Context, tx pgx.Tx, flightID string, count int) error {
	var tag int64

	err := s.observe("seats.try_reserve", func() error {
		t, e := tx.Exec(ctx,
			`UPDATE vuelos
			 SET asientos_disponibles = asientos_disponibles - $2
			 WHERE id = $1 AND asientos_disponibles >= $2`,
			flightID, count,
		)
		tag = t.RowsAffected()
		return e
	})

	if err != nil {
		return err
	}

	if tag > 0 {
		return nil
	}

	// zero rows: either the flight is gone or the seats are
	var dummy string

	err = s.observe("seats.try_reserve.exists", func() error {
		return tx.QueryRow(ctx, `SELECT id FROM vuelos WHERE id = $1`, flightID).Scan(&dummy)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return flight.ErrNotFound
	}

	if err != nil {
		return err
	}

	return flight.ErrInsufficientSeats
}

// Release gives count seats back. Exceeding capacity means a caller
// double-released; the schema CHECK rejects the update and the error is
// surfaced as an internal fault rather than a user-facing outcome.
func (s *SeatInventory) Release(ctx context.Context, tx pgx.Tx, flightID string, count int) error {
	var disponibles, totales int

	err := s.observe("seats.release", func() error {
		return tx.QueryRow(ctx,
			`UPDATE vuelos
			 SET asientos_disponibles = asientos_disponibles + $2
			 WHERE id = $1
			 RETURNING asientos_disponibles, asientos_totales`,
			flightID, count,
		).Scan(&disponibles, &totales)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return flight.ErrNotFound
		}
		return err
	}

	if disponibles > totales {
		return fmt.Errorf("seat release on flight %s exceeded capacity: %d > %d", flightID, disponibles, totales)
	}

	return nil
}
