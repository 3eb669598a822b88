package middleware

import "context"

type contextKey struct{ name string }

var (
	userIDKey      = contextKey{"user_id"}
	phoneNumberKey = contextKey{"phone_number"}
)

// WithIdentity returns a context carrying the authenticated user_id and phone number.
// Handlers read them back with GetUserID and GetPhoneNumber.
func WithIdentity(ctx context.Context, userID, phoneNumber string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, phoneNumberKey, phoneNumber)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetPhoneNumber returns the phone number from context and true if set; otherwise "", false.
func GetPhoneNumber(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(phoneNumberKey).(string)
	return v, ok
}
