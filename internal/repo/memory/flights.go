package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aeroreserva/flighthub/internal/domain/flight"
	"github.com/jackc/pgx/v5"
)

type flightState struct {
	mu sync.Mutex
	f  flight.Flight
}

// FlightsRepo keeps flights in process memory and doubles as the seat
// inventory: reserve/release take the per-flight mutex, so the
// check-and-decrement is atomic per flight and flights never contend with
// each other.
type FlightsRepo struct {
	mu    sync.RWMutex
	items map[string]*flightState
}

func NewFlightsRepo() *FlightsRepo {
	return &FlightsRepo{
		items: make(map[string]*flightState),
	}
}

func (r *FlightsRepo) Create(ctx context.Context, req flight.CreateFlightRequest) (flight.Flight, error) {
	f := flight.NewFromCreateRequest(req)

	r.mu.Lock()
	r.items[f.ID] = &flightState{f: f}
	r.mu.Unlock()

	return f, nil
}

func (r *FlightsRepo) lookup(id string) (*flightState, bool) {
	r.mu.RLock()
	st, ok := r.items[id]
	r.mu.RUnlock()
	return st, ok
}

func (r *FlightsRepo) GetByID(ctx context.Context, id string) (flight.Flight, error) {
	st, ok := r.lookup(id)

	if !ok {
		return flight.Flight{}, flight.ErrNotFound
	}

	st.mu.Lock()
	f := st.f
	st.mu.Unlock()

	return f, nil
}

func (r *FlightsRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id string) (flight.Flight, error) {
	return r.GetByID(ctx, id)
}

func (r *FlightsRepo) List(ctx context.Context, includeInactive bool) ([]flight.Flight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]flight.Flight, 0, len(r.items))

	for _, st := range r.items {
		st.mu.Lock()
		f := st.f
		st.mu.Unlock()

		if f.Active || includeInactive {
			out = append(out, f)
		}
	}

	return out, nil
}

func (r *FlightsRepo) SetActive(ctx context.Context, id string, active bool) (flight.Flight, error) {
	st, ok := r.lookup(id)

	if !ok {
		return flight.Flight{}, flight.ErrNotFound
	}

	st.mu.Lock()
	st.f.Active = active
	f := st.f
	st.mu.Unlock()

	return f, nil
}

func (r *FlightsRepo) TryReserve(ctx context.Context, tx pgx.Tx, flightID string, count int) error {
	st, ok := r.lookup(flightID)

	if !ok {
		return flight.ErrNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.f.AvailableSeats < count {
		return flight.ErrInsufficientSeats
	}

	st.f.AvailableSeats -= count
	return nil
}

func (r *FlightsRepo) Release(ctx context.Context, tx pgx.Tx, flightID string, count int) error {
	st, ok := r.lookup(flightID)

	if !ok {
		return flight.ErrNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.f.AvailableSeats+count > st.f.Capacity {
		return fmt.Errorf("seat release on flight %s exceeded capacity: %d > %d",
			flightID, st.f.AvailableSeats+count, st.f.Capacity)
	}

	st.f.AvailableSeats += count
	return nil
}
