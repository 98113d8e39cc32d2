package flight

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("flight not found")

// ErrInactive means the flight exists but an administrator has hidden it.
var ErrInactive = errors.New("flight is not active")

var ErrInsufficientSeats = errors.New("not enough seats available")

type Flight struct {
	ID          string `json:"id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Airline     string `json:"airline,omitempty"`
	// Price is in the smallest currency unit.
	Price    int    `json:"price"`
	Duration string `json:"duration,omitempty"`
	// Capacity is fixed at creation; AvailableSeats moves between 0 and
	// Capacity as reservations come and go.
	Capacity       int       `json:"capacity"`
	AvailableSeats int       `json:"availableSeats"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
}

type CreateFlightRequest struct {
	Origin      string `json:"origin" binding:"required,min=2,max=100"`
	Destination string `json:"destination" binding:"required,min=2,max=100"`
	Airline     string `json:"airline" binding:"omitempty,max=100"`
	Price       int    `json:"price" binding:"required,min=1"`
	Duration    string `json:"duration" binding:"omitempty,max=50"`
	Capacity    int    `json:"capacity" binding:"required,min=1,max=1000"`
}

func NewFromCreateRequest(req CreateFlightRequest) Flight {
	return Flight{
		ID:             uuid.NewString(),
		Origin:         req.Origin,
		Destination:    req.Destination,
		Airline:        req.Airline,
		Price:          req.Price,
		Duration:       req.Duration,
		Capacity:       req.Capacity,
		AvailableSeats: req.Capacity,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
}
