package service

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/maxpoletaev/peerdir/membership"
)

// HealthService answers health checks of other nodes on behalf of the local
// member. The member is reported as serving while it is active and not
// suspended.
type HealthService struct {
	grpc_health_v1.UnimplementedHealthServer

	local   *membership.Member
	service string
}

func New(local *membership.Member, service string) *HealthService {
	return &HealthService{
		local:   local,
		service: service,
	}
}

func (s *HealthService) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if req.Service != "" && req.Service != s.service {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.Service)
	}

	resp := &grpc_health_v1.HealthCheckResponse{
		Status: grpc_health_v1.HealthCheckResponse_SERVING,
	}

	if !s.local.IsActive() || s.local.IsSuspended() {
		resp.Status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	return resp, nil
}
