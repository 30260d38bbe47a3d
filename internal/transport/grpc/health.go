// Package grpc serves the standard gRPC health service for the storefront.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall "" status.
const ServiceName = "storefront"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports SERVING while the storage backend answers pings.
type Health struct {
	server  *health.Server
	storage Pinger
	logger  *slog.Logger
}

func NewHealth(storage Pinger, logger *slog.Logger) *Health {
	return &Health{
		server:  health.NewServer(),
		storage: storage,
		logger:  logger.With("component", "grpc-health"),
	}
}

// Register adds the health service to s.
func (h *Health) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.server)
}

// Check pings storage once and updates the serving status.
func (h *Health) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := h.storage.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "Storage ping failed", "error", err)
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Watch checks every interval until ctx is done, then reports NOT_SERVING for good.
func (h *Health) Watch(ctx context.Context, interval time.Duration) error {
	h.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
