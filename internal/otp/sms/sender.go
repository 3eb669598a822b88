// Package sms delivers OTP codes to phones. Delivery is best effort and never blocks a request.
package sms

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"otp-auth-service/internal/security"
)

// DispatchTimeout bounds a single fire-and-forget delivery.
const DispatchTimeout = 15 * time.Second

// Sender delivers an OTP code to a phone number.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, phone, code string) error

// SendOTP calls f.
func (f SenderFunc) SendOTP(ctx context.Context, phone, code string) error {
	return f(ctx, phone, code)
}

// Dispatch sends code in a new goroutine with DispatchTimeout and a context detached from the
// caller, so the request can return before delivery completes. Failures are logged and dropped.
// A nil sender is a no-op.
func Dispatch(sender Sender, phone, code string, log *slog.Logger) {
	if sender == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
		defer cancel()
		if err := sender.SendOTP(ctx, phone, code); err != nil && log != nil {
			log.Error("otp delivery failed", "phone", security.MaskPhone(phone), "error", err)
		}
	}()
}

// Multi fans a code out to every sender in order and joins their errors.
type Multi []Sender

// SendOTP delivers to each non-nil sender; one failing does not stop the rest.
func (m Multi) SendOTP(ctx context.Context, phone, code string) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.SendOTP(ctx, phone, code); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
