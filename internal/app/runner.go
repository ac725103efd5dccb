package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/rufatasadov/sober-driver-backend/internal/config"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
	"github.com/rufatasadov/sober-driver-backend/internal/ws"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the dispatch API
type Runner struct {
	runFn func(*dig.Container) error
	exit  func(int)
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run, exit: os.Exit}
}

// MustRun serves until the container context is cancelled. Unexpected
// errors terminate the process.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		if r.exit != nil {
			r.exit(1)
		}
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

// resources are closed once every server has stopped.
type resources struct {
	dig.In

	Pool  *pgxpool.Pool         `optional:"true"`
	Redis redis.UniversalClient `optional:"true"`
	Relay relayCloser           `optional:"true"`
}

type runIn struct {
	dig.In

	Ctx       context.Context
	Logger    logx.Logger
	Config    *config.Config
	Server    *http.Server
	Health    *healthServer `optional:"true"`
	Service   *dispatch.Service
	Registry  *ws.Registry
	Resources resources
}

func run(container *dig.Container) error {
	return container.Invoke(func(in runIn) error {
		logger := in.Logger
		errCh := make(chan error, 2)

		if err := in.Health.start(logger, errCh); err != nil {
			closeResources(in.Resources, logger)
			return err
		}
		startServer(in.Server, logger, errCh)
		d := in.Config.Dispatch
		sweepDone := startExpirySweep(in.Ctx, logger, in.Service, d.PendingTTL, d.SweepInterval)

		err := waitForShutdown(in.Ctx, logger, errCh)

		in.Health.stop()
		gracefulShutdown(in.Server, logger, shutdownTimeout)
		in.Registry.Close()
		<-sweepDone
		closeResources(in.Resources, logger)
		return err
	})
}

func startServer(server *http.Server, logger logx.Logger, errCh chan<- error) {
	go func() {
		logger.Info("dispatch-api listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()
}

// waitForShutdown blocks until ctx is done or a server fails.
func waitForShutdown(ctx context.Context, logger logx.Logger, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		logger.Info("shutting down dispatch-api")
		return ctx.Err()
	case err := <-errCh:
		logger.Error("server failed, shutting down", logx.Err(err))
		return err
	}
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("graceful shutdown error", logx.Err(err))
		if err := srv.Close(); err != nil {
			logger.Error("server close error", logx.Err(err))
		}
	}
}

func closeResources(res resources, logger logx.Logger) {
	if res.Relay != nil {
		if err := res.Relay(); err != nil {
			logger.Error("relay close error", logx.Err(err))
		}
	}
	if res.Redis != nil {
		if err := res.Redis.Close(); err != nil {
			logger.Error("redis close error", logx.Err(err))
		}
	}
	if res.Pool != nil {
		res.Pool.Close()
	}
}

type pendingExpirer interface {
	ExpirePending(ctx context.Context, ttl time.Duration) (int, error)
}

// startExpirySweep cancels stale pending orders every interval while ttl is
// positive. The returned channel closes when the loop exits.
func startExpirySweep(ctx context.Context, logger logx.Logger, svc pendingExpirer, ttl, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if ttl <= 0 {
		close(done)
		return done
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := svc.ExpirePending(ctx, ttl)
				switch {
				case err != nil && ctx.Err() == nil:
					logger.Error("expire pending orders failed", logx.Err(err))
				case n > 0:
					logger.Info("expired pending orders", logx.Int("count", n))
				}
			}
		}
	}()
	return done
}
