package user

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")
var ErrEmailTaken = errors.New("email already registered")

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	IsAdmin      bool      `json:"isAdmin"`
	RegisteredAt time.Time `json:"registeredAt"`
}
