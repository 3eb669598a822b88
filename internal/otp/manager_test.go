package otp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"otp-auth-service/internal/kvstore"
	"otp-auth-service/internal/logger"
	"otp-auth-service/internal/otp/domain"
	"otp-auth-service/internal/security"
)

const testPhone = "+15551234567"

type sent struct{ phone, code string }

type captureSender struct {
	ch chan sent
}

func newCaptureSender() *captureSender { return &captureSender{ch: make(chan sent, 8)} }

func (s *captureSender) SendOTP(ctx context.Context, phone, code string) error {
	s.ch <- sent{phone, code}
	return nil
}

func (s *captureSender) next(t *testing.T) sent {
	t.Helper()
	select {
	case d := <-s.ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no OTP delivered")
		return sent{}
	}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	mgr    *Manager
	store  *kvstore.MemoryStore[domain.Challenge]
	sender *captureSender
	clock  *clock
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()
	f := &fixture{
		store:  kvstore.NewMemoryStore[domain.Challenge](time.Minute),
		sender: newCaptureSender(),
		clock:  &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
	}
	opts := []Option{WithClock(f.clock.Now), WithLogger(logger.Discard())}
	if len(codes) > 0 {
		var mu sync.Mutex
		i := 0
		opts = append(opts, WithCodeGenerator(func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			c := codes[i%len(codes)]
			i++
			return c, nil
		}))
	}
	f.mgr = NewManager(f.store, security.NewHasher(bcrypt.MinCost), f.sender, DefaultTTL, opts...)
	return f
}

func TestManager_RequestChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.mgr.RequestChallenge(ctx, testPhone)
	if err != nil {
		t.Fatalf("RequestChallenge: %v", err)
	}
	if res.ExpiresIn != 300 {
		t.Errorf("ExpiresIn = %d, want 300", res.ExpiresIn)
	}
	if !res.ExpiresAt.Equal(f.clock.Now().Add(5 * time.Minute)) {
		t.Errorf("ExpiresAt = %v", res.ExpiresAt)
	}

	d := f.sender.next(t)
	if d.phone != testPhone || len(d.code) != CodeDigits {
		t.Errorf("delivered %+v", d)
	}

	c, ok, _ := f.store.Get(ctx, testPhone)
	if !ok {
		t.Fatal("challenge not stored")
	}
	if c.CodeHash == d.code || strings.Contains(c.CodeHash, d.code) {
		t.Error("stored challenge must not contain the plaintext code")
	}
	if err := f.mgr.ValidateChallenge(ctx, testPhone, d.code); err != nil {
		t.Errorf("ValidateChallenge with delivered code: %v", err)
	}
}

func TestManager_ValidateChallenge_SingleUse(t *testing.T) {
	f := newFixture(t, "111111")
	ctx := context.Background()
	_, _ = f.mgr.RequestChallenge(ctx, testPhone)

	if err := f.mgr.ValidateChallenge(ctx, testPhone, "111111"); err != nil {
		t.Fatalf("first ValidateChallenge: %v", err)
	}
	if err := f.mgr.ValidateChallenge(ctx, testPhone, "111111"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("second ValidateChallenge: err = %v, want ErrChallengeNotFound", err)
	}
}

func TestManager_ValidateChallenge_NotFound(t *testing.T) {
	f := newFixture(t)
	if err := f.mgr.ValidateChallenge(context.Background(), testPhone, "123456"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("err = %v, want ErrChallengeNotFound", err)
	}
}

func TestManager_ValidateChallenge_MismatchRetainsChallenge(t *testing.T) {
	f := newFixture(t, "222222")
	ctx := context.Background()
	_, _ = f.mgr.RequestChallenge(ctx, testPhone)

	for i := 0; i < 3; i++ {
		if err := f.mgr.ValidateChallenge(ctx, testPhone, "999999"); !errors.Is(err, ErrChallengeMismatch) {
			t.Fatalf("attempt %d: err = %v, want ErrChallengeMismatch", i, err)
		}
	}
	if err := f.mgr.ValidateChallenge(ctx, testPhone, "222222"); err != nil {
		t.Fatalf("correct code after mismatches: %v", err)
	}
}

func TestManager_ValidateChallenge_ExpiredPurges(t *testing.T) {
	f := newFixture(t, "333333")
	ctx := context.Background()
	_, _ = f.mgr.RequestChallenge(ctx, testPhone)

	f.clock.Advance(5*time.Minute + time.Second)
	if err := f.mgr.ValidateChallenge(ctx, testPhone, "333333"); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("err = %v, want ErrChallengeExpired", err)
	}
	if err := f.mgr.ValidateChallenge(ctx, testPhone, "333333"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("after expiry: err = %v, want ErrChallengeNotFound", err)
	}
}

func TestManager_ValidateChallenge_AtExpiryIsStillValid(t *testing.T) {
	f := newFixture(t, "444444")
	ctx := context.Background()
	_, _ = f.mgr.RequestChallenge(ctx, testPhone)

	f.clock.Advance(5 * time.Minute)
	if err := f.mgr.ValidateChallenge(ctx, testPhone, "444444"); err != nil {
		t.Fatalf("at exactly expiresAt: %v", err)
	}
}

func TestManager_RequestChallenge_OverwritesPrevious(t *testing.T) {
	f := newFixture(t, "555555", "666666")
	ctx := context.Background()
	_, _ = f.mgr.RequestChallenge(ctx, testPhone)
	f.clock.Advance(4 * time.Minute)
	_, _ = f.mgr.RequestChallenge(ctx, testPhone)

	if err := f.mgr.ValidateChallenge(ctx, testPhone, "555555"); !errors.Is(err, ErrChallengeMismatch) {
		t.Fatalf("old code: err = %v, want ErrChallengeMismatch", err)
	}
	// The second request reset the TTL.
	f.clock.Advance(2 * time.Minute)
	if err := f.mgr.ValidateChallenge(ctx, testPhone, "666666"); err != nil {
		t.Fatalf("new code: %v", err)
	}
}

func TestManager_Sweep(t *testing.T) {
	f := newFixture(t, "777777")
	ctx := context.Background()
	_, _ = f.mgr.RequestChallenge(ctx, testPhone)
	_, _ = f.mgr.RequestChallenge(ctx, "+15557654321")

	f.clock.Advance(5*time.Minute + 30*time.Second)
	if n, _ := f.mgr.Sweep(ctx); n != 0 {
		t.Errorf("Sweep within grace removed %d, want 0", n)
	}
	f.clock.Advance(time.Minute)
	n, err := f.mgr.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	if f.store.Len() != 0 {
		t.Errorf("store Len = %d, want 0", f.store.Len())
	}
}

func TestManager_GeneratorError(t *testing.T) {
	boom := errors.New("entropy exhausted")
	mgr := NewManager(kvstore.NewMemoryStore[domain.Challenge](0), security.NewHasher(bcrypt.MinCost), nil, 0,
		WithCodeGenerator(func() (string, error) { return "", boom }))
	if _, err := mgr.RequestChallenge(context.Background(), testPhone); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped generator error", err)
	}
	if mgr.TTL() != DefaultTTL {
		t.Errorf("TTL = %v, want DefaultTTL", mgr.TTL())
	}
}

func TestManager_ValidateChallenge_ConcurrentSingleUse(t *testing.T) {
	const workers = 8
	for round := 0; round < 10; round++ {
		f := newFixture(t, "121212")
		ctx := context.Background()
		if _, err := f.mgr.RequestChallenge(ctx, testPhone); err != nil {
			t.Fatalf("RequestChallenge: %v", err)
		}

		start := make(chan struct{})
		errs := make(chan error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				errs <- f.mgr.ValidateChallenge(ctx, testPhone, "121212")
			}()
		}
		close(start)
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrChallengeNotFound):
			default:
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("round %d: %d validations succeeded, want exactly 1", round, succeeded)
		}
	}
}

// replacingStore stores a fresh challenge right after the first Get, like a RequestChallenge
// landing between a validation's read and its delete.
type replacingStore struct {
	*kvstore.MemoryStore[domain.Challenge]
	once    sync.Once
	replace func()
}

func (s *replacingStore) Get(ctx context.Context, key string) (domain.Challenge, bool, error) {
	c, ok, err := s.MemoryStore.Get(ctx, key)
	s.once.Do(s.replace)
	return c, ok, err
}

func TestManager_ValidateChallenge_KeepsReplacedChallenge(t *testing.T) {
	ctx := context.Background()
	hasher := security.NewHasher(bcrypt.MinCost)
	mem := kvstore.NewMemoryStore[domain.Challenge](time.Minute)
	store := &replacingStore{MemoryStore: mem}
	mgr := NewManager(store, hasher, nil, DefaultTTL,
		WithLogger(logger.Discard()),
		WithCodeGenerator(func() (string, error) { return "200002", nil }))

	// Stored directly so the first Get sees it; the replacement is a normal request.
	oldHash, _ := hasher.Hash([]byte("100001"))
	now := time.Now().UTC()
	_ = mem.Set(ctx, testPhone, domain.Challenge{PhoneNumber: testPhone, CodeHash: oldHash, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}, now.Add(time.Minute))
	store.replace = func() {
		if _, err := mgr.RequestChallenge(ctx, testPhone); err != nil {
			t.Errorf("RequestChallenge: %v", err)
		}
	}

	if err := mgr.ValidateChallenge(ctx, testPhone, "100001"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("stale validation: err = %v, want ErrChallengeNotFound", err)
	}
	if err := mgr.ValidateChallenge(ctx, testPhone, "200002"); err != nil {
		t.Fatalf("replacement challenge should still validate: %v", err)
	}
}
