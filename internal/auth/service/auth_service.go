// Package service implements the phone OTP auth flow: request a code, verify it for a
// token pair, refresh the access token and log out.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"otp-auth-service/internal/otp"
	otpdomain "otp-auth-service/internal/otp/domain"
	"otp-auth-service/internal/security"
	sessiondomain "otp-auth-service/internal/session/domain"
	"otp-auth-service/internal/telemetry"
	telemetrydomain "otp-auth-service/internal/telemetry/domain"
	userdomain "otp-auth-service/internal/user/domain"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	ErrOTPNotFound         = errors.New("OTP not found")
	ErrOTPExpired          = errors.New("OTP expired")
	ErrOTPMismatch         = errors.New("OTP mismatch")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
)

// ValidationError reports malformed or missing input. Message is safe to return to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// EventSource is the source field set on every auth event emitted by this service.
const EventSource = "otp-auth"

var e164 = regexp.MustCompile(`^\+\d{10,15}$`)

// ChallengeManager is the minimal OTP manager needed by the auth service.
type ChallengeManager interface {
	RequestChallenge(ctx context.Context, phone string) (*otp.ChallengeResult, error)
	ConsumeChallenge(ctx context.Context, phone, code string) (*otpdomain.Challenge, error)
	RestoreChallenge(ctx context.Context, c *otpdomain.Challenge) (bool, error)
}

// UserDirectory is the minimal user directory needed by the auth service.
type UserDirectory interface {
	GetOrCreate(ctx context.Context, phone string) (*userdomain.User, error)
}

// TokenIssuer is the minimal token provider needed by the auth service.
type TokenIssuer interface {
	IssueAccessToken(userID, phoneNumber string) (string, time.Time, error)
	IssueRefreshToken(userID, phoneNumber string) (string, time.Time, error)
	VerifyRefreshToken(token string) (*security.TokenClaims, error)
	RefreshTTL() time.Duration
}

// SessionStore is the minimal session store needed by the auth service.
type SessionStore interface {
	Create(ctx context.Context, userID, refreshToken string, expiresAt time.Time) (*sessiondomain.Session, error)
	Get(ctx context.Context, refreshToken string) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// OTPResult is the outcome of RequestOTP.
type OTPResult struct {
	ExpiresIn int
}

// LoginResult is the outcome of VerifyOTP: the resolved user and a fresh token pair.
type LoginResult struct {
	User         *userdomain.User
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// RefreshResult is the outcome of Refresh. The refresh token and its session are not rotated.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService coordinates the OTP manager, user directory, token issuer and session store.
type AuthService struct {
	challenges ChallengeManager
	users      UserDirectory
	tokens     TokenIssuer
	sessions   SessionStore
	events     telemetry.EventEmitter
	log        *slog.Logger
	now        func() time.Time
	metrics    *authMetrics
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithEventEmitter sets where auth events are sent. Events are emitted fire-and-forget.
func WithEventEmitter(e telemetry.EventEmitter) Option {
	return func(s *AuthService) { s.events = e }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *AuthService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now for session expiry.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(challenges ChallengeManager, users UserDirectory, tokens TokenIssuer, sessions SessionStore, opts ...Option) *AuthService {
	s := &AuthService{
		challenges: challenges,
		users:      users,
		tokens:     tokens,
		sessions:   sessions,
		log:        slog.Default(),
		now:        time.Now,
		metrics:    newAuthMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizePhone trims phone and checks it is E.164 (a "+" followed by 10 to 15 digits).
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", &ValidationError{Message: "phoneNumber is required"}
	}
	if !e164.MatchString(phone) {
		return "", &ValidationError{Message: "phoneNumber must be in E.164 format"}
	}
	return phone, nil
}

// RequestOTP issues a new challenge for phone, replacing any pending one, and returns its lifetime in seconds.
func (s *AuthService) RequestOTP(ctx context.Context, phone string) (res *OTPResult, err error) {
	ctx, span := startSpan(ctx, "AuthService.RequestOTP")
	defer func() { endSpan(span, err) }()

	phone, err = NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	ch, err := s.challenges.RequestChallenge(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("request otp: %w", err)
	}
	s.metrics.otpRequested(ctx)
	s.emit(&telemetrydomain.AuthEvent{
		EventType: telemetrydomain.EventOTPRequested,
		Phone:     security.MaskPhone(phone),
	})
	return &OTPResult{ExpiresIn: ch.ExpiresIn}, nil
}

// VerifyOTP checks code against the pending challenge for phone. On success it resolves
// (or creates) the user, issues an access and refresh token and opens a session.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (res *LoginResult, err error) {
	ctx, span := startSpan(ctx, "AuthService.VerifyOTP")
	defer func() { endSpan(span, err) }()

	phone, err = NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ValidationError{Message: "code is required"}
	}

	challenge, err := s.challenges.ConsumeChallenge(ctx, phone, code)
	if err != nil {
		reason, mapped := mapChallengeError(err)
		if mapped == nil {
			return nil, fmt.Errorf("verify otp: %w", err)
		}
		s.metrics.verifyFailed(ctx, reason)
		s.emit(&telemetrydomain.AuthEvent{
			EventType: telemetrydomain.EventOTPVerifyFailed,
			Phone:     security.MaskPhone(phone),
			Reason:    reason,
		})
		return nil, mapped
	}

	user, sess, accessToken, refreshToken, err := s.openSession(ctx, phone)
	if err != nil {
		if _, rerr := s.challenges.RestoreChallenge(ctx, challenge); rerr != nil {
			s.log.Warn("auth: restore otp challenge failed", "phone", security.MaskPhone(phone), "error", rerr)
		}
		return nil, fmt.Errorf("verify otp: %w", err)
	}

	s.metrics.loginSucceeded(ctx)
	s.emit(&telemetrydomain.AuthEvent{
		EventType: telemetrydomain.EventLoginSucceeded,
		UserID:    user.ID,
		SessionID: sess.ID,
		Phone:     security.MaskPhone(phone),
	})
	return &LoginResult{
		User:         user,
		SessionID:    sess.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// openSession resolves the user for phone, issues both tokens and stores the session.
func (s *AuthService) openSession(ctx context.Context, phone string) (*userdomain.User, *sessiondomain.Session, string, string, error) {
	user, err := s.users.GetOrCreate(ctx, phone)
	if err != nil {
		return nil, nil, "", "", err
	}
	accessToken, _, err := s.tokens.IssueAccessToken(user.ID, user.PhoneNumber)
	if err != nil {
		return nil, nil, "", "", err
	}
	refreshToken, _, err := s.tokens.IssueRefreshToken(user.ID, user.PhoneNumber)
	if err != nil {
		return nil, nil, "", "", err
	}
	sess, err := s.sessions.Create(ctx, user.ID, refreshToken, s.now().UTC().Add(s.tokens.RefreshTTL()))
	if err != nil {
		return nil, nil, "", "", err
	}
	return user, sess, accessToken, refreshToken, nil
}

// Refresh verifies refreshToken and its live session and returns a new access token.
// An expired session is revoked before ErrSessionExpired is returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *RefreshResult, err error) {
	ctx, span := startSpan(ctx, "AuthService.Refresh")
	defer func() { endSpan(span, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, &ValidationError{Message: "refreshToken is required"}
	}
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.refreshFailed(ctx, "", "", "invalid_token")
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if sess == nil {
		s.refreshFailed(ctx, claims.UserID, "", "session_not_found")
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired(s.now()) {
		if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
			s.log.Warn("auth: revoke expired session failed", "session_id", sess.ID, "error", err)
		}
		s.refreshFailed(ctx, claims.UserID, sess.ID, "session_expired")
		return nil, ErrSessionExpired
	}

	accessToken, exp, err := s.tokens.IssueAccessToken(claims.UserID, claims.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	s.metrics.tokenRefreshed(ctx)
	s.emit(&telemetrydomain.AuthEvent{
		EventType: telemetrydomain.EventTokenRefreshed,
		UserID:    claims.UserID,
		SessionID: sess.ID,
	})
	return &RefreshResult{AccessToken: accessToken, ExpiresAt: exp}, nil
}

// Logout revokes the session behind refreshToken. A token that does not verify, or whose
// session is already gone, is a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := startSpan(ctx, "AuthService.Logout")
	defer func() { endSpan(span, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return &ValidationError{Message: "refreshToken is required"}
	}
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	sess, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if sess == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.emit(&telemetrydomain.AuthEvent{
		EventType: telemetrydomain.EventSessionRevoked,
		UserID:    claims.UserID,
		SessionID: sess.ID,
	})
	return nil
}

func (s *AuthService) refreshFailed(ctx context.Context, userID, sessionID, reason string) {
	s.metrics.refreshFailed(ctx, reason)
	s.emit(&telemetrydomain.AuthEvent{
		EventType: telemetrydomain.EventRefreshFailed,
		UserID:    userID,
		SessionID: sessionID,
		Reason:    reason,
	})
}

func (s *AuthService) emit(event *telemetrydomain.AuthEvent) {
	if s.events == nil {
		return
	}
	event.Source = EventSource
	telemetry.EmitAsync(s.events, event)
}

// mapChallengeError returns the event reason and client-facing error for an OTP manager
// failure, or a nil error when err is not a challenge outcome.
func mapChallengeError(err error) (string, error) {
	switch {
	case errors.Is(err, otp.ErrChallengeNotFound):
		return "not_found", ErrOTPNotFound
	case errors.Is(err, otp.ErrChallengeExpired):
		return "expired", ErrOTPExpired
	case errors.Is(err, otp.ErrChallengeMismatch):
		return "mismatch", ErrOTPMismatch
	default:
		return "", nil
	}
}
