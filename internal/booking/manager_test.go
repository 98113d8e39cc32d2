package booking

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aeroreserva/flighthub/internal/domain/flight"
	"github.com/aeroreserva/flighthub/internal/domain/reservation"
	"github.com/aeroreserva/flighthub/internal/domain/user"
	"github.com/aeroreserva/flighthub/internal/jobs"
	"github.com/aeroreserva/flighthub/internal/repo/memory"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	flights      *memory.FlightsRepo
	reservations *memory.ReservationsRepo
	users        *memory.UsersRepo
	queue        *memory.JobsRepo
	mgr          *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	flights := memory.NewFlightsRepo()
	reservations := memory.NewReservationsRepo()
	users := memory.NewUsersRepo()
	queue := memory.NewJobsRepo()

	return &fixture{
		flights:      flights,
		reservations: reservations,
		users:        users,
		queue:        queue,
		mgr:          NewManager(flights, flights, reservations, queue, users),
	}
}

func (fx *fixture) addUser(t *testing.T) user.User {
	t.Helper()

	u := user.User{
		ID:           uuid.NewString(),
		Name:         "Ana Torres",
		Email:        uuid.NewString() + "@example.com",
		RegisteredAt: time.Now().UTC(),
	}

	created, err := fx.users.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (fx *fixture) addFlight(t *testing.T, price, capacity int) flight.Flight {
	t.Helper()

	f, err := fx.flights.Create(context.Background(), flight.CreateFlightRequest{
		Origin:      "Madrid",
		Destination: "Lima",
		Airline:     "AeroMock",
		Price:       price,
		Capacity:    capacity,
	})
	require.NoError(t, err)
	return f
}

// seatsAccountedFor checks that the flight's seats and the live reservations
// against it always add back up to capacity.
func (fx *fixture) seatsAccountedFor(t *testing.T, flightID string) {
	t.Helper()

	f, err := fx.flights.GetByID(context.Background(), flightID)
	require.NoError(t, err)

	booked := 0

	for _, res := range fx.reservations.All() {
		if res.FlightID == flightID && res.Status != reservation.StatusCancelled {
			booked += res.Passengers
		}
	}

	require.Equal(t, f.Capacity, f.AvailableSeats+booked,
		"seats out of balance: available=%d booked=%d capacity=%d",
		f.AvailableSeats, booked, f.Capacity)
}

func TestCreateReservation(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 150, 50)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     u.ID,
		Passengers: 2,
	})
	require.NoError(t, err)

	require.Equal(t, reservation.StatusPending, res.Status)
	require.False(t, res.Paid)
	require.Equal(t, 300, res.TotalPrice)
	require.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), res.Code)

	got, err := fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 48, got.AvailableSeats)

	fx.seatsAccountedFor(t, f.ID)
}

func TestCreateEnqueuesConfirmationJob(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 10)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     u.ID,
		Passengers: 1,
	})
	require.NoError(t, err)

	enqueued := fx.queue.All()
	require.Len(t, enqueued, 1)
	require.Equal(t, jobs.TypeReservationConfirmation, enqueued[0].Type)
	require.NotNil(t, enqueued[0].IdempotencyKey)
	require.Equal(t, "reservation:confirm:"+res.ID, *enqueued[0].IdempotencyKey)
}

func TestCreateRejectsBadInput(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 10)

	tests := []struct {
		name    string
		prep    func(t *testing.T)
		req     reservation.CreateReservationRequest
		wantErr error
	}{
		{
			name:    "zero passengers",
			req:     reservation.CreateReservationRequest{FlightID: f.ID, UserID: u.ID, Passengers: 0},
			wantErr: ErrInvalidPassengers,
		},
		{
			name:    "negative passengers",
			req:     reservation.CreateReservationRequest{FlightID: f.ID, UserID: u.ID, Passengers: -3},
			wantErr: ErrInvalidPassengers,
		},
		{
			name:    "unknown flight",
			req:     reservation.CreateReservationRequest{FlightID: uuid.NewString(), UserID: u.ID, Passengers: 1},
			wantErr: flight.ErrNotFound,
		},
		{
			name:    "unknown user",
			req:     reservation.CreateReservationRequest{FlightID: f.ID, UserID: uuid.NewString(), Passengers: 1},
			wantErr: user.ErrNotFound,
		},
		{
			name:    "too many passengers",
			req:     reservation.CreateReservationRequest{FlightID: f.ID, UserID: u.ID, Passengers: 11},
			wantErr: flight.ErrInsufficientSeats,
		},
		{
			name: "inactive flight",
			prep: func(t *testing.T) {
				_, err := fx.flights.SetActive(context.Background(), f.ID, false)
				require.NoError(t, err)
			},
			req:     reservation.CreateReservationRequest{FlightID: f.ID, UserID: u.ID, Passengers: 1},
			wantErr: flight.ErrInactive,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.prep != nil {
				tc.prep(t)
			}

			_, err := fx.mgr.Create(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	// none of the rejections may have touched the inventory
	got, err := fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 10, got.AvailableSeats)
	require.Empty(t, fx.queue.All())
}

func TestCreateLastSeatRace(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 1)

	const attempts = 2

	start := make(chan struct{})
	errs := make([]error, attempts)

	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			<-start

			_, errs[i] = fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
				FlightID:   f.ID,
				UserID:     u.ID,
				Passengers: 1,
			})
		}(i)
	}

	close(start)
	wg.Wait()

	var won, lost int

	for _, err := range errs {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, flight.ErrInsufficientSeats)
			lost++
		}
	}

	require.Equal(t, 1, won)
	require.Equal(t, 1, lost)

	got, err := fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.AvailableSeats)

	fx.seatsAccountedFor(t, f.ID)
}

func TestCreateManyConcurrent(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 30)

	// 20 goroutines x 2 passengers against 30 seats: exactly 15 can win
	const attempts = 20

	start := make(chan struct{})
	errs := make([]error, attempts)

	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			<-start

			_, errs[i] = fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
				FlightID:   f.ID,
				UserID:     u.ID,
				Passengers: 2,
			})
		}(i)
	}

	close(start)
	wg.Wait()

	won := 0

	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, flight.ErrInsufficientSeats)
		}
	}

	require.Equal(t, 15, won)
	fx.seatsAccountedFor(t, f.ID)
}

func TestConfirmPayment(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 200, 10)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     u.ID,
		Passengers: 1,
	})
	require.NoError(t, err)

	confirmed, err := fx.mgr.ConfirmPayment(context.Background(), res.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, reservation.StatusConfirmed, confirmed.Status)
	require.True(t, confirmed.Paid)

	// confirming again is a no-op, not an error
	again, err := fx.mgr.ConfirmPayment(context.Background(), res.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, reservation.StatusConfirmed, again.Status)
	require.True(t, again.Paid)

	// seats unchanged by payment
	got, err := fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 9, got.AvailableSeats)
}

func TestConfirmPaymentGuards(t *testing.T) {
	fx := newFixture(t)
	owner := fx.addUser(t)
	stranger := fx.addUser(t)
	f := fx.addFlight(t, 200, 10)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     owner.ID,
		Passengers: 1,
	})
	require.NoError(t, err)

	_, err = fx.mgr.ConfirmPayment(context.Background(), res.ID, stranger.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = fx.mgr.ConfirmPayment(context.Background(), uuid.NewString(), owner.ID)
	require.ErrorIs(t, err, reservation.ErrNotFound)

	_, err = fx.mgr.Cancel(context.Background(), res.ID, owner.ID)
	require.NoError(t, err)

	_, err = fx.mgr.ConfirmPayment(context.Background(), res.ID, owner.ID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestCancelReleasesSeats(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 50)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     u.ID,
		Passengers: 3,
	})
	require.NoError(t, err)

	got, err := fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 47, got.AvailableSeats)

	cancelled, err := fx.mgr.Cancel(context.Background(), res.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, reservation.StatusCancelled, cancelled.Status)

	got, err = fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 50, got.AvailableSeats)

	fx.seatsAccountedFor(t, f.ID)
}

func TestCancelConfirmedReservation(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 50)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     u.ID,
		Passengers: 2,
	})
	require.NoError(t, err)

	_, err = fx.mgr.ConfirmPayment(context.Background(), res.ID, u.ID)
	require.NoError(t, err)

	cancelled, err := fx.mgr.Cancel(context.Background(), res.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, reservation.StatusCancelled, cancelled.Status)

	got, err := fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 50, got.AvailableSeats)
}

func TestCancelTwiceReleasesOnce(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 50)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     u.ID,
		Passengers: 4,
	})
	require.NoError(t, err)

	_, err = fx.mgr.Cancel(context.Background(), res.ID, u.ID)
	require.NoError(t, err)

	_, err = fx.mgr.Cancel(context.Background(), res.ID, u.ID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	got, err := fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 50, got.AvailableSeats)

	fx.seatsAccountedFor(t, f.ID)
}

func TestCancelGuards(t *testing.T) {
	fx := newFixture(t)
	owner := fx.addUser(t)
	stranger := fx.addUser(t)
	f := fx.addFlight(t, 100, 10)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     owner.ID,
		Passengers: 1,
	})
	require.NoError(t, err)

	_, err = fx.mgr.Cancel(context.Background(), res.ID, stranger.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = fx.mgr.Cancel(context.Background(), uuid.NewString(), owner.ID)
	require.ErrorIs(t, err, reservation.ErrNotFound)

	// the stranger's rejection must not have freed seats
	got, err := fx.flights.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, 9, got.AvailableSeats)
}

func TestGetOwnership(t *testing.T) {
	fx := newFixture(t)
	owner := fx.addUser(t)
	stranger := fx.addUser(t)
	f := fx.addFlight(t, 100, 10)

	res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     owner.ID,
		Passengers: 1,
	})
	require.NoError(t, err)

	got, err := fx.mgr.Get(context.Background(), res.ID, owner.ID, false)
	require.NoError(t, err)
	require.Equal(t, res.ID, got.ID)

	_, err = fx.mgr.Get(context.Background(), res.ID, stranger.ID, false)
	require.ErrorIs(t, err, ErrForbidden)

	// admins read anything
	got, err = fx.mgr.Get(context.Background(), res.ID, stranger.ID, true)
	require.NoError(t, err)
	require.Equal(t, res.ID, got.ID)
}

func TestListForUser(t *testing.T) {
	fx := newFixture(t)
	alice := fx.addUser(t)
	bob := fx.addUser(t)
	f := fx.addFlight(t, 100, 50)

	var mine []string

	for i := 0; i < 3; i++ {
		// distinct creation times so the listing order is observable
		time.Sleep(5 * time.Millisecond)

		res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
			FlightID:   f.ID,
			UserID:     alice.ID,
			Passengers: 1,
		})
		require.NoError(t, err)
		mine = append(mine, res.ID)
	}

	_, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     bob.ID,
		Passengers: 1,
	})
	require.NoError(t, err)

	listed, err := fx.mgr.ListForUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)

	for _, res := range listed {
		require.Equal(t, alice.ID, res.UserID)
		require.Contains(t, mine, res.ID)
	}

	// newest reservation first
	require.Equal(t, mine[2], listed[0].ID)
	require.Equal(t, mine[1], listed[1].ID)
	require.Equal(t, mine[0], listed[2].ID)

	// cancelled reservations still show up in the listing
	_, err = fx.mgr.Cancel(context.Background(), mine[0], alice.ID)
	require.NoError(t, err)

	listed, err = fx.mgr.ListForUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)

	empty, err := fx.mgr.ListForUser(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestReservationCodesAreUnique(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 200)

	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
			FlightID:   f.ID,
			UserID:     u.ID,
			Passengers: 1,
		})
		require.NoError(t, err)

		_, dup := seen[res.Code]
		require.False(t, dup, "duplicate code %q", res.Code)
		seen[res.Code] = struct{}{}
	}
}

// collidingCodes reports every candidate code as already taken.
type collidingCodes struct {
	*memory.ReservationsRepo
}

func (c *collidingCodes) CodeExistsTx(ctx context.Context, tx pgx.Tx, code string) (bool, error) {
	return true, nil
}

func TestCreateGivesUpWhenCodesCollide(t *testing.T) {
	flights := memory.NewFlightsRepo()
	users := memory.NewUsersRepo()
	queue := memory.NewJobsRepo()
	reservations := &collidingCodes{memory.NewReservationsRepo()}

	mgr := NewManager(flights, flights, reservations, queue, users)

	u, err := users.Create(context.Background(), user.User{
		ID:    uuid.NewString(),
		Name:  "Ana Torres",
		Email: "ana@example.com",
	})
	require.NoError(t, err)

	f, err := flights.Create(context.Background(), flight.CreateFlightRequest{
		Origin:      "Madrid",
		Destination: "Lima",
		Airline:     "AeroMock",
		Price:       100,
		Capacity:    10,
	})
	require.NoError(t, err)

	_, err = mgr.Create(context.Background(), reservation.CreateReservationRequest{
		FlightID:   f.ID,
		UserID:     u.ID,
		Passengers: 1,
	})
	require.ErrorIs(t, err, ErrCodeExhausted)

	// the aborted create must not leave a reservation or a queued job behind
	require.Empty(t, reservations.All())
	require.Empty(t, queue.All())
}

func TestSeatBalanceUnderMixedLoad(t *testing.T) {
	fx := newFixture(t)
	u := fx.addUser(t)
	f := fx.addFlight(t, 100, 40)

	const workers = 8

	start := make(chan struct{})

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			for j := 0; j < 5; j++ {
				res, err := fx.mgr.Create(context.Background(), reservation.CreateReservationRequest{
					FlightID:   f.ID,
					UserID:     u.ID,
					Passengers: 2,
				})

				if err != nil {
					continue
				}

				switch j % 3 {
				case 0:
					_, _ = fx.mgr.Cancel(context.Background(), res.ID, u.ID)
				case 1:
					_, _ = fx.mgr.ConfirmPayment(context.Background(), res.ID, u.ID)
				}
			}
		}()
	}

	close(start)
	wg.Wait()

	fx.seatsAccountedFor(t, f.ID)
}
