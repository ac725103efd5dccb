package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port     int
	GRPCPort int
	LogLevel string
	Store    string
	Geo      string

	DB        DB
	Redis     Redis
	Auth      Auth
	Dispatch  Dispatch
	Fare      Fare
	WS        WS
	RateLimit RateLimit
	Relay     Relay
	Kafka     Kafka
	Pprof     Pprof
}

// DB is the Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN renders a pgx connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Redis is the shared driver index location.
type Redis struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Auth holds the bearer token secret.
type Auth struct {
	JWTSecret string
}

// Dispatch tunes matching.
type Dispatch struct {
	SearchRadiusKm   float64
	MaxRadiusKm      float64
	LocationMaxAge   time.Duration
	PendingTTL       time.Duration
	SweepInterval    time.Duration
	OperationTimeout time.Duration
	AvgSpeedKmh      float64
	MinTripMinutes   int
}

// Fare is the tariff.
type Fare struct {
	Base      float64
	PerKm     float64
	PerMinute float64
	Currency  string
}

// WS tunes WebSocket sessions.
type WS struct {
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	LocationRate   float64
	LocationBurst  int
	AllowedOrigins []string
}

// RateLimit configures the HTTP token bucket.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Relay selects where published events are mirrored.
type Relay struct {
	Kind     string
	Brokers  []string
	Topic    string
	AMQPURL  string
	Exchange string
}

// Kafka configures the location telemetry consumer.
type Kafka struct {
	Brokers       []string
	LocationTopic string
	GroupID       string
}

// Pprof exposes /debug/pprof. Loopback callers skip basic auth.
type Pprof struct {
	Enabled bool
	User    string
	Pass    string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with explicit command-line arguments.
func LoadArgs(args []string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      defaultPort,
		GRPCPort:  defaultGRPCPort,
		LogLevel:  defaultLogLevel,
		Store:     StorePostgres,
		Geo:       GeoRedis,
		DB:        defaultDB,
		Redis:     defaultRedis,
		Dispatch:  defaultDispatch,
		Fare:      defaultFare,
		WS:        defaultWS,
		RateLimit: defaultRateLimit,
		Relay:     defaultRelay,
		Kafka:     defaultKafka,
	}
	var errs []error

	setIntFromEnv(&cfg.Port, "PORT", &errs)
	setIntFromEnv(&cfg.GRPCPort, "GRPC_PORT", &errs)
	setStringFromEnv(&cfg.LogLevel, "LOG_LEVEL")
	setStringFromEnv(&cfg.Store, "ORDER_STORE")
	setStringFromEnv(&cfg.Geo, "GEO_BACKEND")

	setStringFromEnv(&cfg.DB.Host, "POSTGRES_HOST")
	setStringFromEnv(&cfg.DB.Port, "POSTGRES_PORT")
	setStringFromEnv(&cfg.DB.User, "POSTGRES_USER")
	setStringFromEnv(&cfg.DB.Pass, "POSTGRES_PASSWORD")
	setStringFromEnv(&cfg.DB.Name, "POSTGRES_DB")

	setStringFromEnv(&cfg.Redis.Addr, "REDIS_ADDR")
	setStringFromEnv(&cfg.Redis.Password, "REDIS_PASSWORD")
	setIntFromEnv(&cfg.Redis.DB, "REDIS_DB", &errs)
	setStringFromEnv(&cfg.Redis.Prefix, "REDIS_PREFIX")

	setStringFromEnv(&cfg.Auth.JWTSecret, "JWT_SECRET")

	setFloatFromEnv(&cfg.Dispatch.SearchRadiusKm, "DISPATCH_SEARCH_RADIUS_KM", &errs)
	setFloatFromEnv(&cfg.Dispatch.MaxRadiusKm, "DISPATCH_MAX_RADIUS_KM", &errs)
	setDurationFromEnv(&cfg.Dispatch.LocationMaxAge, "DISPATCH_LOCATION_MAX_AGE", &errs)
	setDurationFromEnv(&cfg.Dispatch.PendingTTL, "DISPATCH_PENDING_TTL", &errs)
	setDurationFromEnv(&cfg.Dispatch.SweepInterval, "DISPATCH_SWEEP_INTERVAL", &errs)
	setDurationFromEnv(&cfg.Dispatch.OperationTimeout, "DISPATCH_OPERATION_TIMEOUT", &errs)
	setFloatFromEnv(&cfg.Dispatch.AvgSpeedKmh, "DISPATCH_AVG_SPEED_KMH", &errs)
	setIntFromEnv(&cfg.Dispatch.MinTripMinutes, "DISPATCH_MIN_TRIP_MINUTES", &errs)

	setFloatFromEnv(&cfg.Fare.Base, "FARE_BASE", &errs)
	setFloatFromEnv(&cfg.Fare.PerKm, "FARE_PER_KM", &errs)
	setFloatFromEnv(&cfg.Fare.PerMinute, "FARE_PER_MINUTE", &errs)
	setStringFromEnv(&cfg.Fare.Currency, "FARE_CURRENCY")

	setDurationFromEnv(&cfg.WS.IdleTimeout, "WS_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WS.WriteTimeout, "WS_WRITE_TIMEOUT", &errs)
	setIntFromEnv(&cfg.WS.SendBuffer, "WS_SEND_BUFFER", &errs)
	setFloatFromEnv(&cfg.WS.LocationRate, "WS_LOCATION_RATE", &errs)
	setIntFromEnv(&cfg.WS.LocationBurst, "WS_LOCATION_BURST", &errs)
	if v := os.Getenv("WS_ALLOWED_ORIGINS"); v != "" {
		cfg.WS.AllowedOrigins = splitAndTrim(v)
	}

	setBoolFromEnv(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED", &errs)
	setFloatFromEnv(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE", &errs)
	setIntFromEnv(&cfg.RateLimit.Burst, "RATE_LIMIT_BURST", &errs)
	setDurationFromEnv(&cfg.RateLimit.TTL, "RATE_LIMIT_TTL", &errs)
	setIntFromEnv(&cfg.RateLimit.MaxBuckets, "RATE_LIMIT_MAX_BUCKETS", &errs)

	setStringFromEnv(&cfg.Relay.Kind, "EVENT_RELAY")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Relay.Brokers = splitAndTrim(v)
		cfg.Kafka.Brokers = cfg.Relay.Brokers
	}
	setStringFromEnv(&cfg.Relay.Topic, "EVENT_RELAY_TOPIC")
	setStringFromEnv(&cfg.Relay.AMQPURL, "AMQP_URL")
	setStringFromEnv(&cfg.Relay.Exchange, "AMQP_EXCHANGE")
	setStringFromEnv(&cfg.Kafka.LocationTopic, "KAFKA_LOCATION_TOPIC")
	setStringFromEnv(&cfg.Kafka.GroupID, "KAFKA_GROUP_ID")

	setBoolFromEnv(&cfg.Pprof.Enabled, "PPROF_ENABLED", &errs)
	setStringFromEnv(&cfg.Pprof.User, "PPROF_USER")
	setStringFromEnv(&cfg.Pprof.Pass, "PPROF_PASS")

	fs := pflag.NewFlagSet("dispatch", pflag.ContinueOnError)
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "gRPC health port (0 disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "order store: postgres|memory")
	fs.StringVar(&cfg.Geo, "geo", cfg.Geo, "driver index: redis|memory")
	fs.StringVar(&cfg.Relay.Kind, "relay", cfg.Relay.Kind, "event relay: none|kafka|amqp")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Store = strings.ToLower(cfg.Store)
	cfg.Geo = strings.ToLower(cfg.Geo)
	cfg.Relay.Kind = strings.ToLower(cfg.Relay.Kind)

	errs = append(errs, cfg.validate()...)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid grpc port: %d", c.GRPCPort))
	}
	if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("invalid POSTGRES_PORT: %q", c.DB.Port))
	}
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown order store %q", c.Store))
	}
	switch c.Geo {
	case GeoRedis, GeoMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown geo backend %q", c.Geo))
	}
	switch c.Relay.Kind {
	case RelayNone:
	case RelayKafka:
		if len(c.Relay.Brokers) == 0 {
			errs = append(errs, errors.New("EVENT_RELAY=kafka requires KAFKA_BROKERS"))
		}
	case RelayAMQP:
		if c.Relay.AMQPURL == "" {
			errs = append(errs, errors.New("EVENT_RELAY=amqp requires AMQP_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown event relay %q", c.Relay.Kind))
	}
	d := c.Dispatch
	if d.SearchRadiusKm <= 0 || d.MaxRadiusKm < d.SearchRadiusKm {
		errs = append(errs, fmt.Errorf("invalid search radius %v (max %v)", d.SearchRadiusKm, d.MaxRadiusKm))
	}
	if d.PendingTTL < 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_PENDING_TTL must be >= 0"))
	}
	if d.PendingTTL > 0 && d.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_SWEEP_INTERVAL must be > 0 when expiry is enabled"))
	}
	if d.AvgSpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_AVG_SPEED_KMH must be > 0"))
	}
	if c.Fare.Base < 0 || c.Fare.PerKm < 0 || c.Fare.PerMinute < 0 {
		errs = append(errs, errors.New("fare rates must be >= 0"))
	}
	if c.WS.IdleTimeout <= 0 {
		errs = append(errs, errors.New("WS_IDLE_TIMEOUT must be > 0"))
	}
	return errs
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
