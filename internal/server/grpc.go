// Package server builds the gRPC server with its interceptor chain and health service.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"

	"concord-access-core/backend/internal/security"
	"concord-access-core/backend/internal/server/interceptors"
	"concord-access-core/backend/internal/telemetry"
)

// Deps holds the cross-cutting dependencies for the gRPC server.
type Deps struct {
	// Tokens validates Bearer access tokens. If nil, all methods are treated as public.
	Tokens *security.TokenProvider
	// Emitter receives per-request telemetry events. May be nil.
	Emitter telemetry.EventEmitter
}

// healthMethods are exempt from auth and not emitted as telemetry.
var healthMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// New builds a gRPC server with the OTel stats handler, auth and telemetry
// interceptors, and the standard health service registered. The returned
// health server starts in SERVING state; main flips it during shutdown so
// load balancers drain before GracefulStop.
func New(deps Deps, extraPublicMethods ...string) (*grpc.Server, *health.Server) {
	public := make(map[string]bool, len(healthMethods)+len(extraPublicMethods))
	for m := range healthMethods {
		public[m] = true
	}
	for _, m := range extraPublicMethods {
		public[m] = true
	}

	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}
	var chain []grpc.UnaryServerInterceptor
	if deps.Tokens != nil {
		chain = append(chain, interceptors.AuthUnary(deps.Tokens, public))
	}
	chain = append(chain, interceptors.TelemetryUnary(deps.Emitter, healthMethods))
	opts = append(opts, grpc.ChainUnaryInterceptor(chain...))

	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	hs.SetServingStatus("", healthv1.HealthCheckResponse_SERVING)
	healthv1.RegisterHealthServer(s, hs)

	return s, hs
}
