package grpc

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/turtacn/clauselens/internal/config"
	"github.com/turtacn/clauselens/internal/testutil"
	"github.com/turtacn/clauselens/pkg/errors"
)

type toggleChecker struct {
	name string
	down atomic.Bool
}

func (c *toggleChecker) Name() string { return c.name }

func (c *toggleChecker) Check(context.Context) error {
	if c.down.Load() {
		return errors.New(errors.ErrCodeDatabaseError, c.name+" unreachable")
	}
	return nil
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer("127.0.0.1", config.GRPCConfig{Enabled: true, Port: 0}, opts...)
	require.NoError(t, err)
	return s
}

func checkStatus(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.healthServer.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestNewServer_NoCheckersServes(t *testing.T) {
	s := newTestServer(t)
	defer s.listener.Close()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, s, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, s, ServiceName))
	assert.Contains(t, s.Addr(), "127.0.0.1:")
}

func TestNewServer_PortInUse(t *testing.T) {
	s := newTestServer(t)
	defer s.listener.Close()

	_, portStr, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	_, err = NewServer("127.0.0.1", config.GRPCConfig{Port: port})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
}

func TestServer_RefreshFollowsCheckers(t *testing.T) {
	pg := &toggleChecker{name: "postgres"}
	log := testutil.NewMockLogger()
	s := newTestServer(t, WithLogger(log), WithCheckers(time.Hour, pg))
	defer s.listener.Close()

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, s, ""))

	assert.True(t, s.Refresh(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, s, ""))

	pg.down.Store(true)
	assert.False(t, s.Refresh(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, s, ServiceName))
	assert.True(t, log.HasMessage("warn", "dependency unhealthy"))
}

func TestServer_StartStop(t *testing.T) {
	pg := &toggleChecker{name: "postgres"}
	s := newTestServer(t, WithCheckers(time.Hour, pg), WithGracefulTimeout(time.Second))

	served := make(chan error, 1)
	go func() { served <- s.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, s.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock())
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown.Service"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	assert.Error(t, s.Start(), "second Start must fail")

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := newTestServer(t)
	defer s.listener.Close()
	assert.NoError(t, s.Stop(context.Background()))
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	log := testutil.NewMockLogger()
	icpt := recoveryUnaryInterceptor(log)
	info := &grpc.UnaryServerInfo{FullMethod: "/clauselens.Profiler/Profile"}

	_, err := icpt(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.True(t, log.HasMessage("error", "grpc panic recovered"))

	resp, err := icpt(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestLoggingUnaryInterceptor_SkipsHealth(t *testing.T) {
	log := testutil.NewMockLogger()
	icpt := loggingUnaryInterceptor(log)
	noop := func(context.Context, interface{}) (interface{}, error) { return nil, nil }

	_, _ = icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, noop)
	assert.Equal(t, 0, log.Count("info"))

	_, _ = icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/clauselens.Profiler/Profile"}, noop)
	assert.True(t, log.HasMessage("info", "grpc request"))
}
