package rpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/roomserver/logger"
)

// HealthService is the service name reported next to the overall ("") status.
const HealthService = "gameserver"

// HealthServer serves the standard gRPC health protocol.
type HealthServer struct {
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
}

// NewHealthServer binds addr. Both statuses start as NOT_SERVING.
func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	h := &HealthServer{
		listener: listener,
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	h.SetServing(false)
	return h, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// SetServing flips the reported status; it matches the game server's WithStatusHook.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthService, status)
}

// Serve blocks until Stop. It returns nil after Stop.
func (h *HealthServer) Serve() error {
	logger.Log.Infof("Health server listening on %s", h.Addr())
	return h.grpc.Serve(h.listener)
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.Stop()
}
