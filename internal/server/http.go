package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	authhandler "otp-auth-service/internal/auth/handler"
	devotphandler "otp-auth-service/internal/devotp/handler"
	"otp-auth-service/internal/health"
	healthhandler "otp-auth-service/internal/health/handler"
	"otp-auth-service/internal/server/middleware"
)

// Deps holds the handlers mounted on the HTTP router.
type Deps struct {
	// Auth serves /auth/*. Required.
	Auth *authhandler.Handler
	// Tokens verifies Bearer access tokens for protected routes. Required.
	Tokens middleware.AccessTokenVerifier
	// Health backs /healthz and /readyz. If nil, readiness has no dependencies.
	Health *health.Checker
	// DevOTP serves GET /dev/otp. Set only when dev OTP mode is enabled outside production.
	DevOTP *devotphandler.Handler
	// Logger is used for request logging. If nil, slog.Default().
	Logger *slog.Logger
}

// NewRouter returns the gin engine with middleware and every route registered.
func NewRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	checker := deps.Health
	if checker == nil {
		checker = health.NewChecker()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Tracing(), middleware.RequestLogger(log, "/healthz", "/readyz"))

	healthhandler.RegisterHTTP(r, checker)
	deps.Auth.RegisterRoutes(r, middleware.RequireAuth(deps.Tokens))
	if deps.DevOTP != nil {
		deps.DevOTP.RegisterRoutes(r)
	}
	return r
}
