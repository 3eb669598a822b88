// Package devotp keeps plaintext OTP codes by phone number for dev-only retrieval (GET /dev/otp).
// It is wired only when OTP_RETURN_TO_CLIENT is true and APP_ENV is not production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain OTP by phone number. Not used in production.
type Store interface {
	// Put stores code for phone until expiresAt, replacing any previous code.
	Put(ctx context.Context, phone, code string, expiresAt time.Time)
	// Get returns the code for phone if present and not expired.
	Get(ctx context.Context, phone string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store. It also implements sms.Sender so it can sit next to the
// real delivery channel and capture every code sent.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	ttl  time.Duration
	nowF func() time.Time
}

// NewMemoryStore returns a dev OTP store. ttl is how long codes captured via SendOTP stay readable.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		ttl:  ttl,
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for phone until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, phone, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[phone] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for phone if present and not expired. Expired entries are dropped.
func (s *MemoryStore) Get(ctx context.Context, phone string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[phone]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		if cur, ok := s.m[phone]; ok && cur == e {
			delete(s.m, phone)
		}
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}

// SendOTP captures code for phone for ttl. Never fails.
func (s *MemoryStore) SendOTP(ctx context.Context, phone, code string) error {
	s.Put(ctx, phone, code, s.nowF().Add(s.ttl))
	return nil
}
