package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch groups coordinator counters. A nil *Dispatch records nothing.
type Dispatch struct {
	ordersCreated prometheus.Counter
	transitions   *prometheus.CounterVec
	conflicts     prometheus.Counter
	fallbacks     prometheus.Counter
	unreachable   prometheus.Counter
}

// NewDispatch creates unregistered dispatch counters.
func NewDispatch() *Dispatch {
	return &Dispatch{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_orders_created_total",
			Help: "Total number of created orders",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_transitions_total",
			Help: "Applied order status transitions",
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_conflicts_total",
			Help: "Conditional updates rejected because the order changed concurrently",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_pool_broadcasts_total",
			Help: "Offers broadcast to the whole driver pool because no driver was nearby",
		}),
		unreachable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_unreachable_total",
			Help: "Dispatch attempts with no online driver at all",
		}),
	}
}

// Collectors returns every collector for registration.
func (d *Dispatch) Collectors() []prometheus.Collector {
	return []prometheus.Collector{d.ordersCreated, d.transitions, d.conflicts, d.fallbacks, d.unreachable}
}

// OrderCreated records a created order.
func (d *Dispatch) OrderCreated() {
	if d != nil {
		d.ordersCreated.Inc()
	}
}

// Transition records an applied status change.
func (d *Dispatch) Transition(from, to string) {
	if d != nil {
		d.transitions.WithLabelValues(from, to).Inc()
	}
}

// Conflict records a lost compare-and-swap.
func (d *Dispatch) Conflict() {
	if d != nil {
		d.conflicts.Inc()
	}
}

// PoolBroadcast records a fallback broadcast.
func (d *Dispatch) PoolBroadcast() {
	if d != nil {
		d.fallbacks.Inc()
	}
}

// Unreachable records a dispatch with nobody online.
func (d *Dispatch) Unreachable() {
	if d != nil {
		d.unreachable.Inc()
	}
}
