package domain

import "time"

// Challenge is the outstanding OTP for one phone number. At most one exists per phone;
// a new request overwrites it. Only the bcrypt hash of the code is kept.
type Challenge struct {
	PhoneNumber string    `json:"phoneNumber"`
	CodeHash    string    `json:"codeHash"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// IsExpired reports whether now is past ExpiresAt.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
