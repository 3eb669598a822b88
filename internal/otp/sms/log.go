package sms

import (
	"context"
	"log/slog"
)

// LogSender is the development channel: it writes the code to the log instead of sending it.
// Never select it in production.
type LogSender struct {
	Log *slog.Logger
}

// NewLogSender returns a LogSender writing to log, or to slog.Default when log is nil.
func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{Log: log}
}

// SendOTP logs "[mock-sms] phone -> code".
func (s *LogSender) SendOTP(ctx context.Context, phone, code string) error {
	s.Log.InfoContext(ctx, "[mock-sms] "+phone+" -> "+code)
	return nil
}
