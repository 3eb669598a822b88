// Package session tracks refresh-token-backed sessions so they can be revoked before the token expires.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"otp-auth-service/internal/kvstore"
	"otp-auth-service/internal/security"
	"otp-auth-service/internal/session/domain"
)

// Store keeps sessions in a kvstore keyed by the hash of their refresh token.
type Store struct {
	kv  kvstore.Store[domain.Session]
	now func() time.Time
}

// NewStore returns a session Store over kv. now may be nil (time.Now).
func NewStore(kv kvstore.Store[domain.Session], now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{kv: kv, now: now}
}

// Create records a session for userID behind refreshToken, live until expiresAt.
func (s *Store) Create(ctx context.Context, userID, refreshToken string, expiresAt time.Time) (*domain.Session, error) {
	hash := security.HashRefreshToken(refreshToken)
	sess := domain.Session{
		ID:               ulid.Make().String(),
		UserID:           userID,
		RefreshTokenHash: hash,
		CreatedAt:        s.now().UTC(),
		ExpiresAt:        expiresAt.UTC(),
	}
	if err := s.kv.Set(ctx, hash, sess, sess.ExpiresAt); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return &sess, nil
}

// Get returns the session behind refreshToken, or nil if there is none. Expired sessions are
// returned as-is; the caller decides whether to revoke.
func (s *Store) Get(ctx context.Context, refreshToken string) (*domain.Session, error) {
	sess, ok, err := s.kv.Get(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	if !ok || !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, nil
	}
	return &sess, nil
}

// Revoke removes the session behind refreshToken. Revoking an unknown token is not an error.
func (s *Store) Revoke(ctx context.Context, refreshToken string) error {
	if err := s.kv.Delete(ctx, security.HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}

// Sweep evicts sessions past expiry plus the store's grace period. Returns the number removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	return kvstore.Sweep(ctx, s.kv, s.now())
}
