package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/storefront/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type switchPinger struct {
	down atomic.Bool
}

func (p *switchPinger) Ping(_ context.Context) error {
	if p.down.Load() {
		return errors.New("storage unreachable")
	}
	return nil
}

func newHealthClient(t *testing.T, h *Health) grpc_health_v1.HealthClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lis := bufconn.Listen(1024 * 1024)
	srv := server.NewGRPCServer(logger, false, h.Register)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return grpc_health_v1.NewHealthClient(conn)
}

func Test_Health_Check(t *testing.T) {
	// given
	ctx := context.Background()
	pinger := &switchPinger{}
	h := NewHealth(pinger, slog.New(slog.NewTextHandler(io.Discard, nil)))
	client := newHealthClient(t, h)

	testCases := []struct {
		name     string
		down     bool
		expected grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{"storage reachable", false, grpc_health_v1.HealthCheckResponse_SERVING},
		{"storage unreachable", true, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
		{"storage back", false, grpc_health_v1.HealthCheckResponse_SERVING},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			pinger.down.Store(tc.down)
			assert.Equal(t, tc.expected, h.Check(ctx))

			// then
			for _, service := range []string{"", ServiceName} {
				resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
				require.NoError(t, err)
				assert.Equal(t, tc.expected, resp.Status)
			}
		})
	}
}

func Test_Health_Watch_ShutsDown(t *testing.T) {
	// given
	h := NewHealth(&switchPinger{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	client := newHealthClient(t, h)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
		return err == nil && resp.Status == grpc_health_v1.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)

	// when
	cancel()

	// then
	assert.ErrorIs(t, <-done, context.Canceled)
	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)
}
