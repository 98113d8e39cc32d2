package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aeroreserva/flighthub/internal/booking"
	"github.com/aeroreserva/flighthub/internal/cache"
	"github.com/aeroreserva/flighthub/internal/domain/flight"
	"github.com/aeroreserva/flighthub/internal/domain/reservation"
	"github.com/aeroreserva/flighthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Booker is the slice of the booking manager the HTTP layer needs.
type Booker interface {
	Create(ctx context.Context, req reservation.CreateReservationRequest) (reservation.Reservation, error)
	ConfirmPayment(ctx context.Context, reservationID, userID string) (reservation.Reservation, error)
	Cancel(ctx context.Context, reservationID, userID string) (reservation.Reservation, error)
	Get(ctx context.Context, reservationID, userID string, admin bool) (reservation.Reservation, error)
	ListForUser(ctx context.Context, userID string) ([]reservation.Reservation, error)
}

type ReservationsHandler struct {
	booker Booker
	cache  *cache.Cache
}

func NewReservationsHandler(booker Booker, c *cache.Cache) *ReservationsHandler {
	return &ReservationsHandler{booker: booker, cache: c}
}

// invalidate drops cached flight listings after a seat count changed.
func (h *ReservationsHandler) invalidate() {
	if h.cache != nil {
		h.cache.Clear()
	}
}

// Create books seats on the flight named in the path for the authenticated
// user.
func (h *ReservationsHandler) Create(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing session token")
		return
	}

	var req reservation.CreateReservationRequest

	if !BindJSON(ctx, &req) {
		return
	}

	req.FlightID = ctx.Param("id")
	req.UserID = userID

	cctx, cancel := opCtx(ctx, 5*time.Second)
	defer cancel()

	res, err := h.booker.Create(cctx, req)

	if err != nil {
		h.respondBookingError(ctx, err)
		return
	}

	h.invalidate()

	ctx.JSON(http.StatusCreated, res)
}

func (h *ReservationsHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing session token")
		return
	}

	cctx, cancel := opCtx(ctx, 3*time.Second)
	defer cancel()

	items, err := h.booker.ListForUser(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not list reservations")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *ReservationsHandler) Get(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing session token")
		return
	}

	cctx, cancel := opCtx(ctx, 2*time.Second)
	defer cancel()

	res, err := h.booker.Get(cctx, ctx.Param("id"), userID, middlewares.IsAdminFromContext(ctx))

	if err != nil {
		h.respondBookingError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

// ConfirmPayment marks the reservation as paid. Safe to retry; a repeat
// confirm returns 200 with the unchanged reservation.
func (h *ReservationsHandler) ConfirmPayment(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing session token")
		return
	}

	cctx, cancel := opCtx(ctx, 5*time.Second)
	defer cancel()

	res, err := h.booker.ConfirmPayment(cctx, ctx.Param("id"), userID)

	if err != nil {
		h.respondBookingError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *ReservationsHandler) Cancel(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing session token")
		return
	}

	cctx, cancel := opCtx(ctx, 5*time.Second)
	defer cancel()

	res, err := h.booker.Cancel(cctx, ctx.Param("id"), userID)

	if err != nil {
		h.respondBookingError(ctx, err)
		return
	}

	h.invalidate()

	ctx.JSON(http.StatusOK, res)
}

// respondBookingError maps booking sentinel errors onto the HTTP taxonomy.
func (h *ReservationsHandler) respondBookingError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, flight.ErrNotFound):
		RespondNotFound(ctx, "Flight not found")

	case errors.Is(err, reservation.ErrNotFound):
		RespondNotFound(ctx, "Reservation not found")

	case errors.Is(err, flight.ErrInactive):
		RespondConflict(ctx, "flight_inactive", "Flight is not open for booking.")

	case errors.Is(err, flight.ErrInsufficientSeats):
		RespondConflict(ctx, "insufficient_seats", "Not enough seats available on this flight.")

	case errors.Is(err, booking.ErrAlreadyCancelled):
		RespondConflict(ctx, "already_cancelled", "Reservation has already been cancelled.")

	case errors.Is(err, booking.ErrForbidden):
		RespondForbidden(ctx, "Reservation belongs to another user.")

	case errors.Is(err, booking.ErrInvalidPassengers):
		RespondBadRequest(ctx, "Passenger count must be at least 1.", nil)

	default:
		RespondInternal(ctx, "Could not process reservation")
	}
}
