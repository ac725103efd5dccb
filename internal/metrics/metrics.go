package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewEventsDroppedTotal counts events that could not be queued to a live session.
func NewEventsDroppedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_dropped_total",
		Help: "Total number of events dropped because a session queue was full",
	})
}

// NewRelayFailuresTotal counts envelopes the external relay failed to publish.
func NewRelayFailuresTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_relay_failures_total",
		Help: "Total number of events the external relay failed to publish",
	})
}

// NewWSSessions tracks currently connected WebSocket sessions by role.
func NewWSSessions() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_sessions",
		Help: "Currently connected WebSocket sessions",
	}, []string{"role"})
}
