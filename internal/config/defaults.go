package config

import "time"

const (
	defaultPort     = 8080
	defaultGRPCPort = 9090
	defaultLogLevel = "info"

	StoreMemory   = "memory"
	StorePostgres = "postgres"

	GeoMemory = "memory"
	GeoRedis  = "redis"

	RelayNone  = "none"
	RelayKafka = "kafka"
	RelayAMQP  = "amqp"
)

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "dispatch",
	Pass: "dispatch",
	Name: "dispatch",
}

var defaultRedis = Redis{
	Addr:   "127.0.0.1:6379",
	Prefix: "dispatch",
}

var defaultDispatch = Dispatch{
	SearchRadiusKm:   5,
	MaxRadiusKm:      50,
	LocationMaxAge:   5 * time.Minute,
	PendingTTL:       0,
	SweepInterval:    30 * time.Second,
	OperationTimeout: 3 * time.Second,
	AvgSpeedKmh:      30,
	MinTripMinutes:   5,
}

var defaultFare = Fare{
	Base:      2.00,
	PerKm:     0.50,
	PerMinute: 0.10,
	Currency:  "AZN",
}

var defaultWS = WS{
	IdleTimeout:   60 * time.Second,
	WriteTimeout:  10 * time.Second,
	SendBuffer:    64,
	LocationRate:  1,
	LocationBurst: 3,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       20,
	Burst:      40,
	TTL:        10 * time.Minute,
	MaxBuckets: 100_000,
}

var defaultRelay = Relay{
	Kind:     RelayNone,
	Topic:    "dispatch-events",
	Exchange: "dispatch.events",
}

var defaultKafka = Kafka{
	LocationTopic: "driver-locations",
	GroupID:       "dispatch-location-worker",
}

// DefaultPort returns the default HTTP port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultDispatch returns the default matching settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultFare returns the default tariff.
func DefaultFare() Fare {
	return defaultFare
}
