package app

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/config"
	"github.com/rufatasadov/sober-driver-backend/internal/http/handlers"
	"github.com/rufatasadov/sober-driver-backend/internal/http/middleware"
	"github.com/rufatasadov/sober-driver-backend/internal/http/middleware/ratelimit"
	"github.com/rufatasadov/sober-driver-backend/internal/http/pprofserver"
	"github.com/rufatasadov/sober-driver-backend/internal/http/router"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/ws"
)

type routerIn struct {
	dig.In

	Config    *config.Config
	Logger    logx.Logger
	Base      *handlers.Handlers
	Orders    *handlers.OrderHandler
	Drivers   *handlers.DriverHandler
	Verifier  *authz.TokenVerifier
	RateLimit *ratelimit.Middleware
	WS        *ws.Registry
	Registry  *prometheus.Registry
}

// newBaseHandlers registers a readiness probe for each connected backend.
func newBaseHandlers(logger logx.Logger, res resources) *handlers.Handlers {
	var checks []handlers.Check
	if res.Pool != nil {
		checks = append(checks, handlers.Check{Name: "postgres", Probe: res.Pool.Ping})
	}
	if res.Redis != nil {
		checks = append(checks, handlers.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return res.Redis.Ping(ctx).Err()
		}})
	}
	return handlers.New(logger, checks...)
}

func newRouter(in routerIn) http.Handler {
	deps := router.Deps{
		Base:          in.Base,
		Orders:        in.Orders,
		Drivers:       in.Drivers,
		Auth:          middleware.Auth(in.Verifier, in.Logger),
		RateLimit:     in.RateLimit.Handler(),
		Observability: middleware.Observability(in.Logger),
		WS:            in.WS,
		Metrics:       metricsHandler(in.Registry),
	}
	if in.Config.Pprof.Enabled {
		deps.Pprof = pprofserver.Handler(pprofserver.Config{
			User: in.Config.Pprof.User,
			Pass: in.Config.Pprof.Pass,
		})
	}
	return router.New(deps)
}

// metricsHandler serves the HTTP middleware collectors from the default
// registry together with the container's own registry.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, reg},
		promhttp.HandlerOpts{},
	)
}
