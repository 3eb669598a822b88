package repository

import (
	"context"
	"errors"
	"time"

	"otp-auth-service/internal/user/domain"
)

// ErrDuplicatePhone is returned by Create when a user with the same phone number already exists.
var ErrDuplicatePhone = errors.New("user with this phone number already exists")

// Repository defines persistence for users. Lookups return (nil, nil) when no user matches.
type Repository interface {
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	// Create inserts u. Returns ErrDuplicatePhone if the phone number is taken.
	Create(ctx context.Context, u *domain.User) error
	// UpdateLastLogin sets last_login_at to at unless the stored value is already later.
	UpdateLastLogin(ctx context.Context, phone string, at time.Time) error
}
