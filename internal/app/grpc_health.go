package app

import (
	"errors"
	"fmt"
	"net"

	"go.uber.org/dig"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rufatasadov/sober-driver-backend/internal/config"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

var listen = net.Listen

// healthServer exposes the standard gRPC health service for orchestrators.
// A nil *healthServer is valid and does nothing.
type healthServer struct {
	addr   string
	server *grpc.Server
	health *health.Server
}

func newHealthServer(cfg *config.Config) *healthServer {
	if cfg.GRPCPort <= 0 {
		return nil
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &healthServer{
		addr:   fmt.Sprintf(":%d", cfg.GRPCPort),
		server: srv,
		health: hs,
	}
}

func registerGRPC(container *dig.Container) error {
	return provideAll(container, newHealthServer)
}

// start listens and flips the status to SERVING. Serve failures are sent to errCh.
func (h *healthServer) start(logger logx.Logger, errCh chan<- error) error {
	if h == nil {
		return nil
	}
	lis, err := listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", h.addr, err)
	}
	h.addr = lis.Addr().String()
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() {
		logger.Info("grpc health listening", logx.String("addr", h.addr))
		if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	return nil
}

func (h *healthServer) stop() {
	if h == nil {
		return
	}
	h.health.Shutdown()
	h.server.GracefulStop()
}
