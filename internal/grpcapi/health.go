// Package grpcapi serves the standard gRPC health protocol so load
// balancers and orchestrators can probe the access service.
package grpcapi

import (
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// AccessService is the health service name reported for the decision
// endpoint. The empty name reports overall server health.
const AccessService = "turnstile.access"

type HealthServer struct {
	logger *log.Logger
	grpc   *grpc.Server
	health *health.Server
}

func NewHealthServer(logger *log.Logger) *HealthServer {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(AccessService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{logger: logger, grpc: gs, health: hs}
}

// SetServing flips both the overall and the access service status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(AccessService, status)
}

// Serve blocks until the listener fails or Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Printf("grpc health listening on %s", lis.Addr())
	return h.grpc.Serve(lis)
}

// Stop reports NOT_SERVING to watchers, then drains open streams.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
