package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aeroreserva/flighthub/internal/domain/reservation"
	"github.com/jackc/pgx/v5"
)

type ReservationsRepo struct {
	mu    sync.RWMutex
	items map[string]reservation.Reservation
	codes map[string]struct{}
}

func NewReservationsRepo() *ReservationsRepo {
	return &ReservationsRepo{
		items: make(map[string]reservation.Reservation),
		codes: make(map[string]struct{}),
	}
}

func (r *ReservationsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return NewTx(), nil
}

func (r *ReservationsRepo) InsertTx(ctx context.Context, tx pgx.Tx, res reservation.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[res.ID] = res
	r.codes[res.Code] = struct{}{}
	return nil
}

func (r *ReservationsRepo) CodeExistsTx(ctx context.Context, tx pgx.Tx, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.codes[code]
	return ok, nil
}

func (r *ReservationsRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (reservation.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *ReservationsRepo) GetByID(ctx context.Context, id string) (reservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.items[id]

	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}

	return res, nil
}

func (r *ReservationsRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status reservation.Status, paid bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.items[id]

	if !ok {
		return reservation.ErrNotFound
	}

	res.Status = status
	res.Paid = paid
	r.items[id] = res
	return nil
}

func (r *ReservationsRepo) ListByUser(ctx context.Context, userID string) ([]reservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reservation.Reservation, 0)

	for _, res := range r.items {
		if res.UserID == userID {
			out = append(out, res)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// All returns every stored reservation; test helper.
func (r *ReservationsRepo) All() []reservation.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reservation.Reservation, 0, len(r.items))

	for _, res := range r.items {
		out = append(out, res)
	}

	return out
}
