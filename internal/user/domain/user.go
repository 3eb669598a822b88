package domain

import (
	"errors"
	"time"
)

// User is a phone-identified account. PhoneNumber is the natural key and never changes.
type User struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.PhoneNumber == "" {
		return errors.New("phone number is required")
	}
	return nil
}
