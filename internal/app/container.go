package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/config"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/fare"
	"github.com/rufatasadov/sober-driver-backend/internal/geo"
	"github.com/rufatasadov/sober-driver-backend/internal/http/handlers"
	"github.com/rufatasadov/sober-driver-backend/internal/http/middleware/ratelimit"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/metrics"
	"github.com/rufatasadov/sober-driver-backend/internal/repository"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
	"github.com/rufatasadov/sober-driver-backend/internal/ws"
)

type dbConnectFunc func(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error)

type redisConnectFunc func(ctx context.Context, logger logx.Logger, cfg config.Redis) (redis.UniversalClient, error)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	loadConfig   func() (*config.Config, error)
	dbConnect    dbConnectFunc
	redisConnect redisConnectFunc
	logFatalf    func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		loadConfig:   config.Load,
		dbConnect:    connectDbWithRetry,
		redisConnect: connectRedis,
		logFatalf:    log.Fatalf,
	}
}

// WithConfigLoader replaces config.Load
func (b *ContainerBuilder) WithConfigLoader(fn func() (*config.Config, error)) *ContainerBuilder {
	if fn != nil {
		b.loadConfig = fn
	}
	return b
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithRedisConnect sets the redis connection function
func (b *ContainerBuilder) WithRedisConnect(fn redisConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.redisConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the API container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the location worker container.
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := b.registerDomain(container); err != nil {
		return nil, err
	}
	if err := registerWS(container); err != nil {
		return nil, fmt.Errorf("ws: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	if err := registerGRPC(container); err != nil {
		return nil, fmt.Errorf("grpc: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := b.registerDomain(container); err != nil {
		return nil, err
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) registerDomain(container *dig.Container) error {
	if err := registerDb(container, b.dbConnect); err != nil {
		return fmt.Errorf("DB: %w", err)
	}
	if err := registerGeo(container, b.redisConnect); err != nil {
		return fmt.Errorf("geo: %w", err)
	}
	if err := registerEvents(container); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := registerService(container); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	return nil
}

// MustBuildContainer builds the API container with default connectors.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container with default connectors.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context, loadConfig func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		loadConfig,
		func(cfg *config.Config) (logx.Logger, error) {
			return NewLogger(cfg.LogLevel)
		},
		newMetrics,
	)
}

type metricsOut struct {
	dig.Out

	Registry      *prometheus.Registry
	RateLimited   prometheus.Counter `name:"rate_limit_exceeded_total"`
	EventsDropped prometheus.Counter `name:"events_dropped_total"`
	RelayFailures prometheus.Counter `name:"event_relay_failures_total"`
	WSSessions    *prometheus.GaugeVec
	Dispatch      *metrics.Dispatch
}

// newMetrics registers service collectors on a private registry so that
// several containers can coexist in one process.
func newMetrics() (metricsOut, error) {
	out := metricsOut{
		Registry:      prometheus.NewRegistry(),
		RateLimited:   metrics.NewRateLimitExceededTotal(),
		EventsDropped: metrics.NewEventsDroppedTotal(),
		RelayFailures: metrics.NewRelayFailuresTotal(),
		WSSessions:    metrics.NewWSSessions(),
		Dispatch:      metrics.NewDispatch(),
	}
	collectors := []prometheus.Collector{out.RateLimited, out.EventsDropped, out.RelayFailures, out.WSSessions}
	collectors = append(collectors, out.Dispatch.Collectors()...)
	for _, c := range collectors {
		if err := out.Registry.Register(c); err != nil {
			return metricsOut{}, fmt.Errorf("register collector: %w", err)
		}
	}
	return out, nil
}

// orderStore and driverIndex mirror what dispatch.Service consumes so the
// backends can be chosen at wiring time.
type orderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ConditionalUpdate(ctx context.Context, id string, expected domain.OrderStatus, upd domain.OrderUpdate) (bool, error)
	AttachRating(ctx context.Context, id string, side domain.RatingSide, e domain.RatingEntry, at time.Time) (bool, error)
	ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]string, error)
	ListPendingNear(ctx context.Context, p domain.Point, radiusKm float64, limit int) ([]string, error)
}

type driverIndex interface {
	Get(ctx context.Context, id string) (*domain.Driver, error)
	Register(ctx context.Context, d domain.Driver) error
	SetPresence(ctx context.Context, p geo.Presence) (*domain.Driver, error)
	UpdatePosition(ctx context.Context, driverID, accountID string, p domain.Point, at time.Time) (*domain.Driver, error)
	Disconnect(ctx context.Context, driverID string) (*domain.Driver, error)
	Reserve(ctx context.Context, driverID, orderID string) (bool, error)
	Release(ctx context.Context, driverID, orderID string) error
	FindNearby(ctx context.Context, p domain.Point, radiusKm float64, now time.Time) ([]domain.DriverRef, error)
	OnlineCount(ctx context.Context) (int, error)
}

func registerDb(container *dig.Container, dbConnect dbConnectFunc) error {
	providerDB := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		if cfg.Store != config.StorePostgres {
			return nil, nil
		}
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	}
	providerStore := func(cfg *config.Config, pool *pgxpool.Pool) (orderStore, error) {
		switch cfg.Store {
		case config.StoreMemory:
			return repository.NewMemoryOrders(), nil
		case config.StorePostgres:
			if pool == nil {
				return nil, errors.New("postgres store selected without a pool")
			}
			return repository.NewOrderRepo(pool), nil
		default:
			return nil, fmt.Errorf("unknown store %q", cfg.Store)
		}
	}
	return provideAll(container, providerDB, providerStore)
}

func registerGeo(container *dig.Container, redisConnect redisConnectFunc) error {
	providerRedis := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (redis.UniversalClient, error) {
		if cfg.Geo != config.GeoRedis {
			return nil, nil
		}
		return redisConnect(ctx, logger, cfg.Redis)
	}
	providerIndex := func(cfg *config.Config, rdb redis.UniversalClient) (driverIndex, error) {
		switch cfg.Geo {
		case config.GeoMemory:
			return geo.NewMemoryIndex(cfg.Dispatch.LocationMaxAge), nil
		case config.GeoRedis:
			if rdb == nil {
				return nil, errors.New("redis index selected without a client")
			}
			return geo.NewRedisIndex(rdb, cfg.Redis.Prefix, cfg.Dispatch.LocationMaxAge), nil
		default:
			return nil, fmt.Errorf("unknown driver index %q", cfg.Geo)
		}
	}
	return provideAll(container, providerRedis, providerIndex)
}

type busIn struct {
	dig.In

	Logger  logx.Logger
	Relay   events.Relay
	Dropped prometheus.Counter `name:"events_dropped_total"`
}

func registerEvents(container *dig.Container) error {
	return provideAll(container,
		newRelay,
		func(in busIn) *events.Bus {
			return events.NewBus(in.Logger, in.Relay, in.Dropped)
		},
	)
}

type serviceIn struct {
	dig.In

	Config  *config.Config
	Orders  orderStore
	Drivers driverIndex
	Bus     *events.Bus
	Fare    *fare.Estimator
	Logger  logx.Logger
	Metrics *metrics.Dispatch
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config) *fare.Estimator {
			return fare.NewEstimator(fare.Rates{
				Base:      cfg.Fare.Base,
				PerKm:     cfg.Fare.PerKm,
				PerMinute: cfg.Fare.PerMinute,
				Currency:  cfg.Fare.Currency,
			})
		},
		func(in serviceIn) *dispatch.Service {
			d := in.Config.Dispatch
			return dispatch.NewService(in.Orders, in.Drivers, in.Bus, in.Fare, dispatch.Config{
				SearchRadiusKm: d.SearchRadiusKm,
				MaxRadiusKm:    d.MaxRadiusKm,
				Duration: fare.DurationModel{
					AvgSpeedKmh: d.AvgSpeedKmh,
					MinMinutes:  d.MinTripMinutes,
				},
				OperationTimeout: d.OperationTimeout,
			}, in.Logger, in.Metrics)
		},
	)
}

type wsIn struct {
	dig.In

	Config   *config.Config
	Bus      *events.Bus
	Service  *dispatch.Service
	Verifier *authz.TokenVerifier
	Limiter  ratelimit.Limiter `name:"ws_location_limiter"`
	Logger   logx.Logger
	Gauge    *prometheus.GaugeVec
}

func registerWS(container *dig.Container) error {
	if err := provideAll(container, newTokenVerifier); err != nil {
		return err
	}
	if err := container.Provide(newLocationLimiter, dig.Name("ws_location_limiter")); err != nil {
		return fmt.Errorf("provide location limiter: %w", err)
	}
	return provideAll(container, func(in wsIn) *ws.Registry {
		c := in.Config.WS
		return ws.NewRegistry(in.Bus, in.Service, in.Verifier, in.Limiter, in.Logger, in.Gauge, ws.Config{
			IdleTimeout:    c.IdleTimeout,
			WriteTimeout:   c.WriteTimeout,
			SendBuffer:     c.SendBuffer,
			AllowedOrigins: c.AllowedOrigins,
		})
	})
}

func newTokenVerifier(cfg *config.Config) (*authz.TokenVerifier, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return authz.NewTokenVerifier(cfg.Auth.JWTSecret), nil
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		newBaseHandlers,
		handlers.NewOrderUsecase,
		handlers.NewOrderHandler,
		handlers.NewDriverUsecase,
		handlers.NewDriverHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		newRouter,
		serverProvider,
	)
}
