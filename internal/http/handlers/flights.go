package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aeroreserva/flighthub/internal/cache"
	"github.com/aeroreserva/flighthub/internal/domain/flight"
	"github.com/aeroreserva/flighthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type FlightsStore interface {
	Create(ctx context.Context, req flight.CreateFlightRequest) (flight.Flight, error)
	List(ctx context.Context, includeInactive bool) ([]flight.Flight, error)
	GetByID(ctx context.Context, id string) (flight.Flight, error)
	SetActive(ctx context.Context, id string, active bool) (flight.Flight, error)
}

type FlightsHandler struct {
	repo  FlightsStore
	cache *cache.Cache
}

func NewFlightsHandler(repo FlightsStore, c *cache.Cache) *FlightsHandler {
	return &FlightsHandler{repo: repo, cache: c}
}

const flightListCacheKey = "flights:active"

// List is the public flight search. Active flights only, briefly cached.
// Admins may pass ?all=true to include deactivated flights; that path skips
// the cache.
func (h *FlightsHandler) List(ctx *gin.Context) {
	includeInactive := ctx.Query("all") == "true" && middlewares.IsAdminFromContext(ctx)

	if !includeInactive && h.cache != nil {
		if v, ok := h.cache.Get(flightListCacheKey); ok {
			if flights, ok := v.([]flight.Flight); ok {
				ctx.JSON(http.StatusOK, gin.H{
					"items": flights,
					"count": len(flights),
				})
				return
			}
		}
	}

	cctx, cancel := opCtx(ctx, 3*time.Second)
	defer cancel()

	flights, err := h.repo.List(cctx, includeInactive)

	if err != nil {
		RespondInternal(ctx, "Could not list flights")
		return
	}

	if !includeInactive && h.cache != nil {
		h.cache.Set(flightListCacheKey, flights)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": flights,
		"count": len(flights),
	})
}

func (h *FlightsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := opCtx(ctx, 2*time.Second)
	defer cancel()

	f, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, flight.ErrNotFound) {
			RespondNotFound(ctx, "Flight not found")
			return
		}

		RespondInternal(ctx, "Could not fetch flight")
		return
	}

	ctx.JSON(http.StatusOK, f)
}

// Create registers a new flight; admin only, enforced in the router.
func (h *FlightsHandler) Create(ctx *gin.Context) {
	var req flight.CreateFlightRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := opCtx(ctx, 3*time.Second)
	defer cancel()

	f, err := h.repo.Create(cctx, req)

	if err != nil {
		RespondInternal(ctx, "Could not create flight")
		return
	}

	if h.cache != nil {
		h.cache.Clear()
	}

	ctx.JSON(http.StatusCreated, f)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive hides or re-publishes a flight without touching its
// reservations.
func (h *FlightsHandler) SetActive(ctx *gin.Context) {
	id := ctx.Param("id")

	var req setActiveRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := opCtx(ctx, 3*time.Second)
	defer cancel()

	f, err := h.repo.SetActive(cctx, id, *req.Active)

	if err != nil {
		if errors.Is(err, flight.ErrNotFound) {
			RespondNotFound(ctx, "Flight not found")
			return
		}

		RespondInternal(ctx, "Could not update flight")
		return
	}

	if h.cache != nil {
		h.cache.Clear()
	}

	ctx.JSON(http.StatusOK, f)
}
