package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rufatasadov/sober-driver-backend/internal/config"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	testlog "github.com/rufatasadov/sober-driver-backend/internal/testutil"
)

type stubExpirer struct {
	calls atomic.Int32
	n     int
	err   error
}

func (s *stubExpirer) ExpirePending(context.Context, time.Duration) (int, error) {
	s.calls.Add(1)
	return s.n, s.err
}

func TestStartExpirySweep_DisabledWithoutTTL(t *testing.T) {
	t.Parallel()

	svc := &stubExpirer{}
	done := startExpirySweep(context.Background(), logx.Nop(), svc, 0, time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep should not start without a ttl")
	}
	require.Zero(t, svc.calls.Load())
}

func TestStartExpirySweep_TicksUntilCancelled(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	svc := &stubExpirer{n: 2}
	ctx, cancel := context.WithCancel(context.Background())

	done := startExpirySweep(ctx, rec.Logger(), svc, time.Minute, 5*time.Millisecond)
	require.Eventually(t, func() bool { return svc.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop")
	}
	require.True(t, rec.Has("expired pending orders"))
}

func TestStartExpirySweep_LogsErrors(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	svc := &stubExpirer{err: errors.New("store down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startExpirySweep(ctx, rec.Logger(), svc, time.Minute, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return rec.Has("expire pending orders failed")
	}, time.Second, 5*time.Millisecond)
}

func TestWaitForShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitForShutdown(ctx, logx.Nop(), make(chan error))
	require.ErrorIs(t, err, context.Canceled)

	sentinel := errors.New("address in use")
	errCh := make(chan error, 1)
	errCh <- sentinel
	err = waitForShutdown(context.Background(), logx.Nop(), errCh)
	require.ErrorIs(t, err, sentinel)
}

func TestGracefulShutdown_NotStartedServer(t *testing.T) {
	t.Parallel()

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	require.NotPanics(t, func() {
		gracefulShutdown(srv, logx.Nop(), 100*time.Millisecond)
	})
}

func TestCloseResources(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() { closeResources(resources{}, logx.Nop()) })

	rec := testlog.New()
	called := false
	closeResources(resources{Relay: func() error {
		called = true
		return errors.New("flush failed")
	}}, rec.Logger())
	require.True(t, called)
	require.True(t, rec.Has("relay close error"))
}

func TestHealthServer_Lifecycle(t *testing.T) {
	t.Parallel()

	require.Nil(t, newHealthServer(&config.Config{}))
	var nilServer *healthServer
	require.NoError(t, nilServer.start(logx.Nop(), make(chan error, 1)))
	require.NotPanics(t, nilServer.stop)

	h := newHealthServer(&config.Config{GRPCPort: 1})
	require.NotNil(t, h)
	h.addr = "127.0.0.1:0"

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := h.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
		require.NoError(t, err)
		return resp.GetStatus()
	}
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())

	errCh := make(chan error, 1)
	require.NoError(t, h.start(logx.Nop(), errCh))
	require.NotEqual(t, "127.0.0.1:0", h.addr)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check())

	h.stop()
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
	require.Empty(t, errCh)
}

func TestRunner_MustRun_ShutdownRequested(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	container := dig.New()
	require.NoError(t, container.Provide(func() logx.Logger { return rec.Logger() }))

	r := &Runner{runFn: func(*dig.Container) error { return context.Canceled }}
	r.MustRun(container)
	require.True(t, rec.Has("shutdown requested, exiting"))
}

func TestRunner_MustRun_StartupTimeout(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	container := dig.New()
	require.NoError(t, container.Provide(func() logx.Logger { return rec.Logger() }))

	r := &Runner{runFn: func(*dig.Container) error { return context.DeadlineExceeded }}
	r.MustRun(container)
	require.True(t, rec.Has("startup aborted: startup timeout exceeded"))
}

func TestRunner_MustRun_ExitsOnFailure(t *testing.T) {
	t.Parallel()

	code := -1
	r := &Runner{
		runFn: func(*dig.Container) error { return errors.New("listen: address in use") },
		exit:  func(c int) { code = c },
	}
	r.MustRun(dig.New())
	require.Equal(t, 1, code)
}

func TestNewRunner_DefaultFields(t *testing.T) {
	t.Parallel()

	r := NewRunner()
	require.NotNil(t, r.runFn)
	require.NotNil(t, r.exit)
	require.Equal(t, fmt.Sprintf("%p", run), fmt.Sprintf("%p", r.runFn))
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Port = 0
	cfg.Dispatch.PendingTTL = time.Minute
	cfg.Dispatch.SweepInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewContainerBuilder().
		WithConfigLoader(func() (*config.Config, error) { return cfg, nil }).
		WithDBConnect(noDB(t)).
		WithRedisConnect(noRedis(t)).
		build(ctx)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err = run(c)
	require.ErrorIs(t, err, context.Canceled)
}
