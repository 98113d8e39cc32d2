package booking

import (
	"context"
	"errors"
	"time"

	"github.com/aeroreserva/flighthub/internal/domain/flight"
	"github.com/aeroreserva/flighthub/internal/domain/job"
	"github.com/aeroreserva/flighthub/internal/domain/reservation"
	"github.com/aeroreserva/flighthub/internal/domain/user"
	"github.com/aeroreserva/flighthub/internal/jobs"
	"github.com/aeroreserva/flighthub/internal/observability"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrForbidden: authenticated, but not the reservation's owner.
	ErrForbidden = errors.New("not the reservation owner")
	// ErrAlreadyCancelled: confirm or cancel attempted on a terminal reservation.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
	// ErrCodeExhausted: could not draw an unused reservation code within the
	// bounded number of attempts. Not retriable within the same call.
	ErrCodeExhausted = errors.New("reservation code generation exhausted")
	// ErrInvalidPassengers: passenger count below one.
	ErrInvalidPassengers = errors.New("passenger count must be at least 1")
)

// codeAttempts bounds how many fresh codes Create draws before giving up.
const codeAttempts = 5

// Keep these interfaces small so tests can fake them easily.

type FlightStore interface {
	GetByIDTx(ctx context.Context, tx pgx.Tx, id string) (flight.Flight, error)
}

// SeatInventory is the sole mutator of a flight's available seats. Both
// calls happen inside the transaction the manager opened, so the seat
// movement commits or rolls back together with the reservation row.
type SeatInventory interface {
	TryReserve(ctx context.Context, tx pgx.Tx, flightID string, count int) error
	Release(ctx context.Context, tx pgx.Tx, flightID string, count int) error
}

type ReservationStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	InsertTx(ctx context.Context, tx pgx.Tx, res reservation.Reservation) error
	CodeExistsTx(ctx context.Context, tx pgx.Tx, code string) (bool, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (reservation.Reservation, error)
	GetByID(ctx context.Context, id string) (reservation.Reservation, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status reservation.Status, paid bool) error
	ListByUser(ctx context.Context, userID string) ([]reservation.Reservation, error)
}

type JobQueue interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Waker nudges the job worker after a commit; best effort only.
type Waker interface {
	Wake(ctx context.Context)
}

// Manager drives the reservation state machine. Every mutating operation is
// one transaction pairing the reservation write with exactly one seat
// inventory call, so the flight invariant
// available + sum(passengers of non-cancelled) == capacity survives any
// interleaving.
type Manager struct {
	flights      FlightStore
	inventory    SeatInventory
	reservations ReservationStore
	queue        JobQueue
	users        UserDirectory
	waker        Waker
	prom         *observability.Prom
}

func NewManager(flights FlightStore, inventory SeatInventory, reservations ReservationStore, queue JobQueue, users UserDirectory) *Manager {
	return &Manager{
		flights:      flights,
		inventory:    inventory,
		reservations: reservations,
		queue:        queue,
		users:        users,
	}
}

// WithWaker attaches a worker nudge fired after successful creates.
func (m *Manager) WithWaker(w Waker) *Manager {
	m.waker = w
	return m
}

// WithMetrics attaches reservation outcome counters.
func (m *Manager) WithMetrics(prom *observability.Prom) *Manager {
	m.prom = prom
	return m
}

func (m *Manager) outcome(op, outcome string) {
	if m.prom != nil {
		m.prom.ReservationsTotal.WithLabelValues(op, outcome).Inc()
	}
}

// Create books passengers seats on a flight: validates the flight, reserves
// seats, draws a unique code, inserts the Pending reservation and enqueues
// the confirmation notification, all in one transaction.
func (m *Manager) Create(ctx context.Context, req reservation.CreateReservationRequest) (reservation.Reservation, error) {
	if req.Passengers < 1 {
		return reservation.Reservation{}, ErrInvalidPassengers
	}

	// owner lookup happens outside the tx; the job payload wants the email
	owner, err := m.users.GetByID(ctx, req.UserID)

	if err != nil {
		return reservation.Reservation{}, err
	}

	tx, err := m.reservations.BeginTx(ctx)

	if err != nil {
		m.outcome("create", "error")
		return reservation.Reservation{}, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	f, err := m.flights.GetByIDTx(ctx, tx, req.FlightID)

	if err != nil {
		m.outcome("create", "rejected")
		return reservation.Reservation{}, err
	}

	if !f.Active {
		m.outcome("create", "rejected")
		return reservation.Reservation{}, flight.ErrInactive
	}

	err = m.inventory.TryReserve(ctx, tx, req.FlightID, req.Passengers)

	if err != nil {
		if errors.Is(err, flight.ErrInsufficientSeats) {
			m.outcome("create", "conflict")
		} else {
			m.outcome("create", "error")
		}
		return reservation.Reservation{}, err
	}

	code, err := m.drawCode(ctx, tx)

	if err != nil {
		m.outcome("create", "error")
		return reservation.Reservation{}, err
	}

	res := reservation.New(req, f.Price, code)

	err = m.reservations.InsertTx(ctx, tx, res)

	if err != nil {
		m.outcome("create", "error")
		return reservation.Reservation{}, err
	}

	err = m.enqueueConfirmation(ctx, tx, res, owner)

	if err != nil {
		m.outcome("create", "error")
		return reservation.Reservation{}, err
	}

	err = tx.Commit(ctx)

	if err != nil {
		m.outcome("create", "error")
		return reservation.Reservation{}, err
	}

	m.outcome("create", "ok")

	if m.waker != nil {
		m.waker.Wake(ctx)
	}

	return res, nil
}

func (m *Manager) drawCode(ctx context.Context, tx pgx.Tx) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := reservation.NewCode()

		if err != nil {
			return "", err
		}

		exists, err := m.reservations.CodeExistsTx(ctx, tx, code)

		if err != nil {
			return "", err
		}

		if !exists {
			return code, nil
		}
	}

	return "", ErrCodeExhausted
}

func (m *Manager) enqueueConfirmation(ctx context.Context, tx pgx.Tx, res reservation.Reservation, owner user.User) error {
	payload := jobs.ReservationConfirmationPayload{
		ReservationID: res.ID,
		FlightID:      res.FlightID,
		Code:          res.Code,
		Email:         owner.Email,
		Name:          owner.Name,
		RequestedAt:   time.Now().UTC(),
	}

	raw, err := payload.JSON()

	if err != nil {
		return err
	}

	key := "reservation:confirm:" + res.ID

	_, err = m.queue.CreateTx(ctx, tx, job.CreateRequest{
		Type:           jobs.TypeReservationConfirmation,
		Payload:        raw,
		RunAt:          time.Now().UTC(),
		MaxAttempts:    10,
		IdempotencyKey: &key,
	})

	return err
}

// ConfirmPayment marks a Pending reservation as paid and Confirmed. The
// payment itself is simulated; nothing external is charged. Confirming an
// already-Confirmed reservation returns the current state unchanged.
func (m *Manager) ConfirmPayment(ctx context.Context, reservationID, userID string) (reservation.Reservation, error) {
	tx, err := m.reservations.BeginTx(ctx)

	if err != nil {
		m.outcome("confirm", "error")
		return reservation.Reservation{}, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	res, err := m.reservations.GetForUpdateTx(ctx, tx, reservationID)

	if err != nil {
		m.outcome("confirm", "rejected")
		return reservation.Reservation{}, err
	}

	if res.UserID != userID {
		m.outcome("confirm", "rejected")
		return reservation.Reservation{}, ErrForbidden
	}

	switch res.Status {
	case reservation.StatusCancelled:
		m.outcome("confirm", "conflict")
		return reservation.Reservation{}, ErrAlreadyCancelled

	case reservation.StatusConfirmed:
		// idempotent: no second side effect
		m.outcome("confirm", "ok")
		return res, nil
	}

	err = m.reservations.SetStatusTx(ctx, tx, res.ID, reservation.StatusConfirmed, true)

	if err != nil {
		m.outcome("confirm", "error")
		return reservation.Reservation{}, err
	}

	err = tx.Commit(ctx)

	if err != nil {
		m.outcome("confirm", "error")
		return reservation.Reservation{}, err
	}

	res.Status = reservation.StatusConfirmed
	res.Paid = true

	m.outcome("confirm", "ok")
	return res, nil
}

// Cancel moves a Pending or Confirmed reservation to Cancelled and releases
// its seats in the same transaction. A second cancel fails with
// ErrAlreadyCancelled instead of double-releasing.
func (m *Manager) Cancel(ctx context.Context, reservationID, userID string) (reservation.Reservation, error) {
	tx, err := m.reservations.BeginTx(ctx)

	if err != nil {
		m.outcome("cancel", "error")
		return reservation.Reservation{}, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	res, err := m.reservations.GetForUpdateTx(ctx, tx, reservationID)

	if err != nil {
		m.outcome("cancel", "rejected")
		return reservation.Reservation{}, err
	}

	if res.UserID != userID {
		m.outcome("cancel", "rejected")
		return reservation.Reservation{}, ErrForbidden
	}

	if res.Status == reservation.StatusCancelled {
		m.outcome("cancel", "conflict")
		return reservation.Reservation{}, ErrAlreadyCancelled
	}

	err = m.reservations.SetStatusTx(ctx, tx, res.ID, reservation.StatusCancelled, res.Paid)

	if err != nil {
		m.outcome("cancel", "error")
		return reservation.Reservation{}, err
	}

	err = m.inventory.Release(ctx, tx, res.FlightID, res.Passengers)

	if err != nil {
		m.outcome("cancel", "error")
		return reservation.Reservation{}, err
	}

	err = tx.Commit(ctx)

	if err != nil {
		m.outcome("cancel", "error")
		return reservation.Reservation{}, err
	}

	res.Status = reservation.StatusCancelled

	m.outcome("cancel", "ok")
	return res, nil
}

// Get returns a single reservation; owners see their own, admins see all.
func (m *Manager) Get(ctx context.Context, reservationID, userID string, admin bool) (reservation.Reservation, error) {
	res, err := m.reservations.GetByID(ctx, reservationID)

	if err != nil {
		return reservation.Reservation{}, err
	}

	if !admin && res.UserID != userID {
		return reservation.Reservation{}, ErrForbidden
	}

	return res, nil
}

// ListForUser returns the user's reservations, newest first. Each call
// re-reads current state.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]reservation.Reservation, error) {
	return m.reservations.ListByUser(ctx, userID)
}
