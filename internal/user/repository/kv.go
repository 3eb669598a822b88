package repository

import (
	"context"
	"sync"
	"time"

	"otp-auth-service/internal/kvstore"
	"otp-auth-service/internal/user/domain"
)

// KVRepository stores users in a kvstore keyed by phone number. Users never expire.
type KVRepository struct {
	store kvstore.Store[domain.User]
	// serializes read-modify-write of last_login_at within this process
	mu sync.Mutex
}

// NewKVRepository returns a user repository backed by store.
func NewKVRepository(store kvstore.Store[domain.User]) *KVRepository {
	return &KVRepository{store: store}
}

// GetByPhone returns the user for phone, or nil if not found.
func (r *KVRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	u, ok, err := r.store.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Create inserts u atomically; a concurrent Create for the same phone gets ErrDuplicatePhone.
func (r *KVRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	stored, err := r.store.SetIfAbsent(ctx, u.PhoneNumber, *u, time.Time{})
	if err != nil {
		return err
	}
	if !stored {
		return ErrDuplicatePhone
	}
	return nil
}

// UpdateLastLogin bumps last_login_at for phone, never moving it backwards. Missing users are a no-op.
func (r *KVRepository) UpdateLastLogin(ctx context.Context, phone string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok, err := r.store.Get(ctx, phone)
	if err != nil || !ok {
		return err
	}
	if !at.After(u.LastLoginAt) {
		return nil
	}
	u.LastLoginAt = at
	return r.store.Set(ctx, phone, u, time.Time{})
}
