package httpapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the gRPC health service name reported for the API.
const ServiceName = "dispatchdesk.v1.Access"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// GRPCServer answers gRPC health checks from the same readiness probe as
// /readyz.
type GRPCServer struct {
	healthpb.UnimplementedHealthServer
	ready readinessChecker
}

// NewGRPCServer returns a health server backed by ready.
func NewGRPCServer(ready readinessChecker) *GRPCServer {
	return &GRPCServer{ready: ready}
}

// Register attaches the health service to srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s)
}

func (s *GRPCServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", ServiceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if s.ready != nil {
		if err := s.ready.Check(ctx); err != nil {
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
