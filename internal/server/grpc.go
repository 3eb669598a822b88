// Package server assembles the HTTP router and the gRPC server.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	healthhandler "otp-auth-service/internal/health/handler"
)

// NewGRPCServer returns a gRPC server instrumented with OpenTelemetry and serving grpc.health.v1.
func NewGRPCServer(health *healthhandler.Server) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterServices(s, health)
	return s
}

// RegisterServices registers the gRPC services with s.
func RegisterServices(s grpc.ServiceRegistrar, health *healthhandler.Server) {
	if health != nil {
		health.Register(s)
	}
}
