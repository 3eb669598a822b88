// Package user resolves phone numbers to stable user identities.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"otp-auth-service/internal/user/domain"
	"otp-auth-service/internal/user/repository"
)

// Directory finds or creates the user behind a phone number.
type Directory struct {
	repo repository.Repository
	now  func() time.Time
}

// NewDirectory returns a Directory over repo. now may be nil (time.Now).
func NewDirectory(repo repository.Repository, now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{repo: repo, now: now}
}

// GetOrCreate returns the user for phone, creating it on first contact, and records the login.
// Concurrent first logins for one phone resolve to the same user: the loser of the create race
// re-reads the winner's row.
func (d *Directory) GetOrCreate(ctx context.Context, phone string) (*domain.User, error) {
	now := d.now().UTC()
	u, err := d.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("user: lookup: %w", err)
	}
	if u == nil {
		candidate := &domain.User{
			ID:          uuid.New().String(),
			PhoneNumber: phone,
			CreatedAt:   now,
			LastLoginAt: now,
		}
		err := d.repo.Create(ctx, candidate)
		switch {
		case err == nil:
			return candidate, nil
		case errors.Is(err, repository.ErrDuplicatePhone):
			u, err = d.repo.GetByPhone(ctx, phone)
			if err != nil {
				return nil, fmt.Errorf("user: lookup after conflict: %w", err)
			}
			if u == nil {
				return nil, errors.New("user: record missing after create conflict")
			}
		default:
			return nil, fmt.Errorf("user: create: %w", err)
		}
	}
	if err := d.repo.UpdateLastLogin(ctx, phone, now); err != nil {
		return nil, fmt.Errorf("user: update last login: %w", err)
	}
	if now.After(u.LastLoginAt) {
		u.LastLoginAt = now
	}
	return u, nil
}

// Get returns the user for phone, or nil if none exists.
func (d *Directory) Get(ctx context.Context, phone string) (*domain.User, error) {
	return d.repo.GetByPhone(ctx, phone)
}
