package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"otp-auth-service/internal/kvstore"
	"otp-auth-service/internal/otp/domain"
	"otp-auth-service/internal/otp/sms"
	"otp-auth-service/internal/security"
)

// DefaultTTL is the lifetime of a challenge.
const DefaultTTL = 5 * time.Minute

// Validation failures. The orchestrator maps each to its own client message.
var (
	ErrChallengeNotFound = errors.New("otp challenge not found")
	ErrChallengeExpired  = errors.New("otp challenge expired")
	ErrChallengeMismatch = errors.New("otp code mismatch")
)

// ChallengeResult is returned by RequestChallenge.
type ChallengeResult struct {
	// ExpiresIn is the challenge lifetime in whole seconds.
	ExpiresIn int
	ExpiresAt time.Time
}

// Manager issues and validates OTP challenges. Challenges live in a keyed store under the phone
// number; delivery is dispatched off the request path.
type Manager struct {
	store    kvstore.Store[domain.Challenge]
	hasher   *security.Hasher
	sender   sms.Sender
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	log      *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithCodeGenerator overrides GenerateOTP.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Manager) {
		if gen != nil {
			m.generate = gen
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager returns a Manager. ttl <= 0 selects DefaultTTL. sender may be nil (no delivery).
func NewManager(store kvstore.Store[domain.Challenge], hasher *security.Hasher, sender sms.Sender, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if hasher == nil {
		hasher = security.NewHasher(0)
	}
	m := &Manager{
		store:    store,
		hasher:   hasher,
		sender:   sender,
		ttl:      ttl,
		now:      time.Now,
		generate: GenerateOTP,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the challenge lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// RequestChallenge generates a code for phone, stores it (replacing any outstanding challenge)
// and triggers delivery without waiting for it. Repeated calls reset both code and expiry.
func (m *Manager) RequestChallenge(ctx context.Context, phone string) (*ChallengeResult, error) {
	code, err := m.generate()
	if err != nil {
		return nil, fmt.Errorf("otp: generate: %w", err)
	}
	hash, err := m.hasher.Hash([]byte(code))
	if err != nil {
		return nil, fmt.Errorf("otp: hash: %w", err)
	}
	now := m.now().UTC()
	c := domain.Challenge{
		PhoneNumber: phone,
		CodeHash:    hash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.Set(ctx, phone, c, c.ExpiresAt); err != nil {
		return nil, fmt.Errorf("otp: store challenge: %w", err)
	}
	sms.Dispatch(m.sender, phone, code, m.log)
	return &ChallengeResult{
		ExpiresIn: int(m.ttl / time.Second),
		ExpiresAt: c.ExpiresAt,
	}, nil
}

// ValidateChallenge checks code against the outstanding challenge for phone.
// An expired challenge is deleted and reported as ErrChallengeExpired. A wrong code leaves the
// challenge in place for another attempt. A correct code consumes it; when concurrent callers
// present the same code only the one whose delete removes the challenge succeeds, the rest get
// ErrChallengeNotFound.
func (m *Manager) ValidateChallenge(ctx context.Context, phone, code string) error {
	_, err := m.ConsumeChallenge(ctx, phone, code)
	return err
}

// ConsumeChallenge is ValidateChallenge returning the challenge it consumed, for RestoreChallenge.
func (m *Manager) ConsumeChallenge(ctx context.Context, phone, code string) (*domain.Challenge, error) {
	c, ok, err := m.store.Get(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("otp: load challenge: %w", err)
	}
	if !ok {
		return nil, ErrChallengeNotFound
	}
	// Deletes only the challenge that was read, never one a concurrent request has since stored.
	same := func(cur domain.Challenge) bool { return cur.CodeHash == c.CodeHash }
	if c.IsExpired(m.now()) {
		if _, err := m.store.DeleteIf(ctx, phone, same); err != nil {
			return nil, fmt.Errorf("otp: delete expired challenge: %w", err)
		}
		return nil, ErrChallengeExpired
	}
	if err := m.hasher.Compare(c.CodeHash, []byte(code)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrChallengeMismatch
		}
		return nil, fmt.Errorf("otp: compare code: %w", err)
	}
	consumed, err := m.store.DeleteIf(ctx, phone, same)
	if err != nil {
		return nil, fmt.Errorf("otp: consume challenge: %w", err)
	}
	if !consumed {
		return nil, ErrChallengeNotFound
	}
	return &c, nil
}

// RestoreChallenge puts back a challenge consumed by a login that failed afterwards, so the
// same code can be retried. It never replaces a newer challenge and skips one already expired.
// Returns true if the challenge was stored.
func (m *Manager) RestoreChallenge(ctx context.Context, c *domain.Challenge) (bool, error) {
	if c == nil || c.IsExpired(m.now()) {
		return false, nil
	}
	ok, err := m.store.SetIfAbsent(ctx, c.PhoneNumber, *c, c.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("otp: restore challenge: %w", err)
	}
	return ok, nil
}

// Sweep evicts challenges past expiry plus the store's grace period. Returns the number removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return kvstore.Sweep(ctx, m.store, m.now())
}
