package jobs

import (
	"encoding/json"
	"time"
)

const TypeReservationConfirmation = "reservation.confirmation"

type ReservationConfirmationPayload struct {
	ReservationID string    `json:"reservationId"`
	FlightID      string    `json:"flightId"`
	Code          string    `json:"code"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	RequestedAt   time.Time `json:"requestedAt"`
}

func (p ReservationConfirmationPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
