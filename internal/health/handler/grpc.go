// Package handler exposes health checks over gRPC (standard grpc.health.v1) and HTTP.
package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"otp-auth-service/internal/health"
)

// ServiceName is the gRPC health service name reported for this service next to the overall "" entry.
const ServiceName = "otp-auth"

// Server serves grpc.health.v1 with statuses refreshed from a health.Checker.
type Server struct {
	checker *health.Checker
	health  *grpchealth.Server
	log     *slog.Logger
}

// NewServer returns a Server. Statuses start NOT_SERVING until the first Refresh.
func NewServer(checker *health.Checker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{checker: checker, health: grpchealth.NewServer(), log: log}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register adds the health service to a gRPC server.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(r, s.health)
}

// Refresh runs the readiness checks once and updates the served status.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.checker.Ready(ctx); err != nil {
		s.log.Warn("health: not ready", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.set(status)
	return status
}

// Watch refreshes the status every interval until ctx is done, then marks the service
// NOT_SERVING for the remainder of shutdown.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
