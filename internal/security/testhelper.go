package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
)

// NewTestTokenProvider returns a TokenProvider with fixed test secrets, issuer "test-issuer",
// a 15 minute access TTL and a 24 hour refresh TTL. For unit tests only.
func NewTestTokenProvider(opts ...TokenOption) (*TokenProvider, error) {
	return NewTokenProvider([]byte(testAccessSecret), []byte(testRefreshSecret), "test-issuer", 15*time.Minute, 24*time.Hour, opts...)
}
