package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed with the wrong key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidKey is returned by NewTokenProvider when a secret is empty or both secrets are equal.
	ErrInvalidKey = errors.New("access and refresh secrets must be non-empty and distinct")
)

// KeyKind selects which of the two signing keys a token is bound to.
type KeyKind int

const (
	AccessKey KeyKind = iota
	RefreshKey
)

func (k KeyKind) String() string {
	switch k {
	case AccessKey:
		return "access"
	case RefreshKey:
		return "refresh"
	default:
		return "unknown"
	}
}

// TokenClaims is the verified content of an access or refresh token.
type TokenClaims struct {
	ID          string
	UserID      string
	PhoneNumber string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type jwtClaims struct {
	jwt.RegisteredClaims
	PhoneNumber string `json:"phone_number"`
	TokenUse    string `json:"token_use"`
}

// TokenProvider issues and validates HS256 access and refresh tokens. Each kind has its own
// secret and TTL; a token signed with one key never verifies under the other.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures a TokenProvider.
type TokenOption func(*TokenProvider)

// WithTokenClock overrides the clock used for iat/exp when issuing and for expiry checks when verifying.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewTokenProvider returns a TokenProvider signing access tokens with accessSecret and refresh
// tokens with refreshSecret. issuer is set on every token and required on verify.
func NewTokenProvider(accessSecret, refreshSecret []byte, issuer string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) (*TokenProvider, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 || string(accessSecret) == string(refreshSecret) {
		return nil, ErrInvalidKey
	}
	p := &TokenProvider{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccessToken issues a short-lived access JWT for the user. Returns the token and its expiry.
func (p *TokenProvider) IssueAccessToken(userID, phoneNumber string) (string, time.Time, error) {
	return p.issue(AccessKey, userID, phoneNumber)
}

// IssueRefreshToken issues a long-lived refresh JWT for the user. Returns the token and its expiry;
// the caller binds the expiry to a session.
func (p *TokenProvider) IssueRefreshToken(userID, phoneNumber string) (string, time.Time, error) {
	return p.issue(RefreshKey, userID, phoneNumber)
}

// VerifyAccessToken validates signature, issuer and expiry under the access key.
func (p *TokenProvider) VerifyAccessToken(token string) (*TokenClaims, error) {
	return p.verify(AccessKey, token)
}

// VerifyRefreshToken validates signature, issuer and expiry under the refresh key.
func (p *TokenProvider) VerifyRefreshToken(token string) (*TokenClaims, error) {
	return p.verify(RefreshKey, token)
}

func (p *TokenProvider) issue(kind KeyKind, userID, phoneNumber string) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC()
	expiresAt := now.Add(p.ttl(kind))
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PhoneNumber: phoneNumber,
		TokenUse:    kind.String(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret(kind))
	if err != nil {
		return "", time.Time{}, err
	}
	// NumericDate has second precision; report what the token carries.
	return token, claims.ExpiresAt.Time, nil
}

func (p *TokenProvider) verify(kind KeyKind, tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	token, err := parser.ParseWithClaims(tokenString, &jwtClaims{}, func(*jwt.Token) (interface{}, error) {
		return p.secret(kind), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != kind.String() || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	out := &TokenClaims{
		ID:          claims.ID,
		UserID:      claims.Subject,
		PhoneNumber: claims.PhoneNumber,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func (p *TokenProvider) secret(kind KeyKind) []byte {
	if kind == RefreshKey {
		return p.refreshSecret
	}
	return p.accessSecret
}

func (p *TokenProvider) ttl(kind KeyKind) time.Duration {
	if kind == RefreshKey {
		return p.refreshTTL
	}
	return p.accessTTL
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
