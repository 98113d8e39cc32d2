package postgres

import (
	"context"
	"errors"

	"github.com/aeroreserva/flighthub/internal/domain/flight"
	"github.com/aeroreserva/flighthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewFlightsRepo(pool *pgxpool.Pool, prom *observability.Prom) *FlightsRepo {
	return &FlightsRepo{pool: pool, prom: prom}
}

func (r *FlightsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const flightColumns = `id, origen, destino, aerolinea, precio, duracion, asientos_totales, asientos_disponibles, activo, fecha_creacion`

func scanFlight(row pgx.Row) (flight.Flight, error) {
	var f flight.Flight

	err := row.Scan(
		&f.ID,
		&f.Origin,
		&f.Destination,
		&f.Airline,
		&f.Price,
		&f.Duration,
		&f.Capacity,
		&f.AvailableSeats,
		&f.Active,
		&f.CreatedAt,
	)

	return f, err
}

func (r *FlightsRepo) Create(ctx context.Context, req flight.CreateFlightRequest) (flight.Flight, error) {
	f := flight.NewFromCreateRequest(req)

	err := r.observe("flights.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO vuelos (`+flightColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			f.ID, f.Origin, f.Destination, f.Airline, f.Price, f.Duration, f.Capacity, f.AvailableSeats, f.Active, f.CreatedAt,
		)
		return e
	})

	if err != nil {
		return flight.Flight{}, err
	}

	return f, nil
}

// List returns flights, active ones only unless includeInactive is set
// (the admin view wants everything).
func (r *FlightsRepo) List(ctx context.Context, includeInactive bool) ([]flight.Flight, error) {
	q := `SELECT ` + flightColumns + ` FROM vuelos`

	if !includeInactive {
		q += ` WHERE activo`
	}

	q += ` ORDER BY fecha_creacion ASC, id ASC`

	var rows pgx.Rows
	var err error

	err = r.observe("flights.list", func() error {
		rows, err = r.pool.Query(ctx, q)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make([]flight.Flight, 0)

	for rows.Next() {
		f, e := scanFlight(rows)

		if e != nil {
			return nil, e
		}

		out = append(out, f)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

func (r *FlightsRepo) GetByID(ctx context.Context, id string) (flight.Flight, error) {
	var f flight.Flight
	var err error

	err = r.observe("flights.get_by_id", func() error {
		f, err = scanFlight(r.pool.QueryRow(ctx,
			`SELECT `+flightColumns+` FROM vuelos WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return flight.Flight{}, flight.ErrNotFound
		}
		return flight.Flight{}, err
	}

	return f, nil
}

func (r *FlightsRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id string) (flight.Flight, error) {
	var f flight.Flight
	var err error

	err = r.observe("flights.get_by_id_tx", func() error {
		f, err = scanFlight(tx.QueryRow(ctx,
			`SELECT `+flightColumns+` FROM vuelos WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return flight.Flight{}, flight.ErrNotFound
		}
		return flight.Flight{}, err
	}

	return f, nil
}

// SetActive toggles visibility without deleting the row; reservations keep
// their flight reference either way.
func (r *FlightsRepo) SetActive(ctx context.Context, id string, active bool) (flight.Flight, error) {
	var f flight.Flight
	var err error

	err = r.observe("flights.set_active", func() error {
		f, err = scanFlight(r.pool.QueryRow(ctx,
			`UPDATE vuelos SET activo = $2 WHERE id = $1 RETURNING `+flightColumns, id, active))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return flight.Flight{}, flight.ErrNotFound
		}
		return flight.Flight{}, err
	}

	return f, nil
}
