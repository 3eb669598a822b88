package domain

import "time"

// EventType names an auth lifecycle event.
type EventType string

const (
	EventOTPRequested    EventType = "otp_requested"
	EventOTPVerifyFailed EventType = "otp_verify_failed"
	EventLoginSucceeded  EventType = "login_succeeded"
	EventTokenRefreshed  EventType = "token_refreshed"
	EventRefreshFailed   EventType = "refresh_failed"
	EventSessionRevoked  EventType = "session_revoked"
)

// AuthEvent is a single auth audit event. Phone is always masked; codes and tokens are never included.
type AuthEvent struct {
	EventType EventType `json:"eventType"`
	UserID    string    `json:"userId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	// Reason is a short machine-readable failure cause (e.g. "expired", "mismatch").
	Reason    string    `json:"reason,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}
