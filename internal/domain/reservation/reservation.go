package reservation

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

var ErrNotFound = errors.New("reservation not found")

// Reservation code alphabet: uppercase letters and digits, 8 characters.
const CodeLength = 8
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type Reservation struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	FlightID   string `json:"flightId"`
	Passengers int    `json:"passengers"`
	// TotalPrice is computed at creation (flight price x passengers) and
	// never recomputed afterwards.
	TotalPrice int       `json:"totalPrice"`
	Paid       bool      `json:"paid"`
	Status     Status    `json:"status"`
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateReservationRequest struct {
	FlightID   string `json:"-"`
	UserID     string `json:"-"`
	Passengers int    `json:"passengers" binding:"required,min=1"`
}

func New(req CreateReservationRequest, unitPrice int, code string) Reservation {
	return Reservation{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		FlightID:   req.FlightID,
		Passengers: req.Passengers,
		TotalPrice: unitPrice * req.Passengers,
		Paid:       false,
		Status:     StatusPending,
		Code:       code,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewCode draws a fresh 8-character code. Uniqueness is the caller's problem;
// this only guarantees the shape.
func NewCode() (string, error) {
	out := make([]byte, CodeLength)

	max := big.NewInt(int64(len(codeAlphabet)))

	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[n.Int64()]
	}

	return string(out), nil
}
