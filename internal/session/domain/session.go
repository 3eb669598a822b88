package domain

import "time"

// Session binds a refresh token to a user until ExpiresAt. It is created once per successful
// OTP verification and removed on revocation; refresh never rotates or extends it.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	// RefreshTokenHash is the SHA-256 of the refresh token and the session's lookup key.
	RefreshTokenHash string    `json:"refreshTokenHash"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// IsExpired reports whether now is past ExpiresAt.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
