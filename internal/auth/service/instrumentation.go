package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "otp-auth-service/internal/auth/service"

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name)
}

// endSpan records err on span unless it is a client input error, then ends it.
func endSpan(span trace.Span, err error) {
	var ve *ValidationError
	if err != nil && !errors.As(err, &ve) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type authMetrics struct {
	otpRequests   metric.Int64Counter
	verifyFailure metric.Int64Counter
	logins        metric.Int64Counter
	refreshes     metric.Int64Counter
	refreshFail   metric.Int64Counter
}

// newAuthMetrics registers counters on the global meter provider. Instruments created
// before the provider is installed are delegated once it is.
func newAuthMetrics() *authMetrics {
	meter := otel.Meter(instrumentationName)
	m := &authMetrics{}
	m.otpRequests, _ = meter.Int64Counter("auth.otp.requests", metric.WithDescription("OTP challenges issued"))
	m.verifyFailure, _ = meter.Int64Counter("auth.otp.verify_failures", metric.WithDescription("Failed OTP verifications by reason"))
	m.logins, _ = meter.Int64Counter("auth.logins", metric.WithDescription("Successful OTP logins"))
	m.refreshes, _ = meter.Int64Counter("auth.token.refreshes", metric.WithDescription("Access tokens issued from a refresh token"))
	m.refreshFail, _ = meter.Int64Counter("auth.token.refresh_failures", metric.WithDescription("Rejected refresh attempts by reason"))
	return m
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *authMetrics) otpRequested(ctx context.Context)   { add(ctx, m.otpRequests) }
func (m *authMetrics) loginSucceeded(ctx context.Context) { add(ctx, m.logins) }
func (m *authMetrics) tokenRefreshed(ctx context.Context) { add(ctx, m.refreshes) }

func (m *authMetrics) verifyFailed(ctx context.Context, reason string) {
	add(ctx, m.verifyFailure, attribute.String("reason", reason))
}

func (m *authMetrics) refreshFailed(ctx context.Context, reason string) {
	add(ctx, m.refreshFail, attribute.String("reason", reason))
}
