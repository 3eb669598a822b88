package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"otp-auth-service/internal/user/domain"
)

// PostgresRepository stores users in the users table (see internal/db/migrations).
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	getUserByPhone = `SELECT id, phone_number, created_at, last_login_at FROM users WHERE phone_number = $1`
	createUser     = `INSERT INTO users (id, phone_number, created_at, last_login_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (phone_number) DO NOTHING`
	updateLastLogin = `UPDATE users SET last_login_at = GREATEST(last_login_at, $2) WHERE phone_number = $1`
)

// GetByPhone returns the user with the given phone number, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, getUserByPhone, phone).Scan(&u.ID, &u.PhoneNumber, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.LastLoginAt = u.LastLoginAt.UTC()
	return &u, nil
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
// A conflicting phone number yields ErrDuplicatePhone rather than a constraint error.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, createUser, u.ID, u.PhoneNumber, u.CreatedAt, u.LastLoginAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicatePhone
	}
	return nil
}

// UpdateLastLogin sets last_login_at to the later of its current value and at.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, phone string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, updateLastLogin, phone, at)
	return err
}
