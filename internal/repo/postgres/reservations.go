package postgres

import (
	"context"
	"errors"

	"github.com/aeroreserva/flighthub/internal/domain/reservation"
	"github.com/aeroreserva/flighthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewReservationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ReservationsRepo {
	return &ReservationsRepo{pool: pool, prom: prom}
}

func (r *ReservationsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ReservationsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

const reservationColumns = `id, usuario_id, vuelo_id, num_pasajeros, precio_total, pagado, estado, codigo_reserva, fecha_reserva`

func scanReservation(row pgx.Row) (reservation.Reservation, error) {
	var res reservation.Reservation
	var estado string

	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.FlightID,
		&res.Passengers,
		&res.TotalPrice,
		&res.Paid,
		&estado,
		&res.Code,
		&res.CreatedAt,
	)

	res.Status = reservation.Status(estado)

	return res, err
}

func (r *ReservationsRepo) InsertTx(ctx context.Context, tx pgx.Tx, res reservation.Reservation) error {
	return r.observe("reservations.insert_tx", func() error {
		_, err := tx.Exec(ctx,
			`INSERT INTO reservas (`+reservationColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			res.ID, res.UserID, res.FlightID, res.Passengers, res.TotalPrice, res.Paid, string(res.Status), res.Code, res.CreatedAt,
		)
		return err
	})
}

func (r *ReservationsRepo) CodeExistsTx(ctx context.Context, tx pgx.Tx, code string) (bool, error) {
	var exists bool

	err := r.observe("reservations.code_exists_tx", func() error {
		return tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM reservas WHERE codigo_reserva = $1)`, code,
		).Scan(&exists)
	})

	return exists, err
}

// GetForUpdateTx locks the reservation row for the remainder of the
// transaction so concurrent confirm/cancel attempts serialize.
func (r *ReservationsRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (reservation.Reservation, error) {
	var res reservation.Reservation
	var err error

	err = r.observe("reservations.get_for_update_tx", func() error {
		res, err = scanReservation(tx.QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservas WHERE id = $1 FOR UPDATE`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return reservation.Reservation{}, reservation.ErrNotFound
		}
		return reservation.Reservation{}, err
	}

	return res, nil
}

func (r *ReservationsRepo) GetByID(ctx context.Context, id string) (reservation.Reservation, error) {
	var res reservation.Reservation
	var err error

	err = r.observe("reservations.get_by_id", func() error {
		res, err = scanReservation(r.pool.QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservas WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return reservation.Reservation{}, reservation.ErrNotFound
		}
		return reservation.Reservation{}, err
	}

	return res, nil
}

// SetStatusTx changes estado/pagado only. Passenger count, flight and owner
// are immutable once the row exists.
func (r *ReservationsRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status reservation.Status, paid bool) error {
	var err error
	var affected int64

	err = r.observe("reservations.set_status_tx", func() error {
		tag, e := tx.Exec(ctx,
			`UPDATE reservas SET estado = $2, pagado = $3 WHERE id = $1`,
			id, string(status), paid,
		)
		affected = tag.RowsAffected()
		return e
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return reservation.ErrNotFound
	}

	return nil
}

func (r *ReservationsRepo) ListByUser(ctx context.Context, userID string) ([]reservation.Reservation, error) {
	var rows pgx.Rows
	var err error

	err = r.observe("reservations.list_by_user", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT `+reservationColumns+`
			 FROM reservas
			 WHERE usuario_id = $1
			 ORDER BY fecha_reserva DESC, id DESC`,
			userID,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make([]reservation.Reservation, 0)

	for rows.Next() {
		res, e := scanReservation(rows)

		if e != nil {
			return nil, e
		}

		out = append(out, res)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}
