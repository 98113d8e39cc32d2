package notifications

import "context"

type SendReservationConfirmationInput struct {
	Email         string
	Name          string
	FlightID      string
	ReservationID string
	Code          string
}

type Notifier interface {
	SendReservationConfirmation(ctx context.Context, input SendReservationConfirmationInput) error
}
