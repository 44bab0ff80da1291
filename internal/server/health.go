package server

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/elskow/users-api/internal/api"
	"github.com/elskow/users-api/internal/config"
)

// HealthServer exposes the standard gRPC health protocol for orchestrators
// that probe over gRPC rather than HTTP.
type HealthServer struct {
	config     *config.GRPCConfig
	log        *zap.Logger
	grpcServer *grpc.Server
	health     *health.Server
}

func NewHealthServer(cfg *config.GRPCConfig, log *zap.Logger) *HealthServer {
	grpcServer := grpc.NewServer()
	hs := health.NewServer()

	healthpb.RegisterHealthServer(grpcServer, hs)
	if cfg.EnableReflection {
		reflection.Register(grpcServer)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(api.Service, healthpb.HealthCheckResponse_SERVING)

	return &HealthServer{
		config:     cfg,
		log:        log,
		grpcServer: grpcServer,
		health:     hs,
	}
}

func (h *HealthServer) Start() error {
	lis, err := net.Listen("tcp", ":"+h.config.Port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return h.Serve(lis)
}

func (h *HealthServer) Serve(lis net.Listener) error {
	h.log.Info("Starting gRPC health server",
		zap.String("address", lis.Addr().String()),
		zap.Bool("reflection_enabled", h.config.EnableReflection),
	)
	if err := h.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop marks every service NOT_SERVING before draining connections.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpcServer.GracefulStop()
}
