package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDispatch_NilIsNoop(t *testing.T) {
	t.Parallel()

	var d *Dispatch
	require.NotPanics(t, func() {
		d.OrderCreated()
		d.Transition("pending", "cancelled")
		d.Conflict()
		d.PoolBroadcast()
		d.Unreachable()
	})
}

func TestDispatch_Counts(t *testing.T) {
	t.Parallel()

	d := NewDispatch()
	reg := prometheus.NewRegistry()
	for _, c := range d.Collectors() {
		require.NoError(t, reg.Register(c))
	}

	d.OrderCreated()
	d.Transition("pending", "driver_assigned")
	d.Transition("pending", "driver_assigned")
	d.Conflict()

	require.Equal(t, 1.0, testutil.ToFloat64(d.ordersCreated))
	require.Equal(t, 2.0, testutil.ToFloat64(d.transitions.WithLabelValues("pending", "driver_assigned")))
	require.Equal(t, 1.0, testutil.ToFloat64(d.conflicts))
	require.Zero(t, testutil.ToFloat64(d.fallbacks))
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewRateLimitExceededTotal()))
	require.NoError(t, reg.Register(NewEventsDroppedTotal()))
	require.NoError(t, reg.Register(NewRelayFailuresTotal()))
	require.NoError(t, reg.Register(NewWSSessions()))
}
