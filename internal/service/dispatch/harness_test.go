package dispatch_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/fare"
	"github.com/rufatasadov/sober-driver-backend/internal/geo"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/metrics"
	"github.com/rufatasadov/sober-driver-backend/internal/repository"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
)

var (
	customer = domain.Actor{UserID: "cust-1", Role: domain.RoleCustomer}
	stranger = domain.Actor{UserID: "cust-2", Role: domain.RoleCustomer}
	operator = domain.Actor{UserID: "op-1", Role: domain.RoleOperator}

	pickup      = domain.Location{Point: domain.Point{Lat: 40.40, Lon: 49.85}, Address: "Fountain Square"}
	destination = domain.Location{Point: domain.Point{Lat: 40.37, Lon: 49.84}, Address: "Bayil"}
)

type published struct {
	Topic  string
	Event  string
	Data   any
	Except []string
}

type recPub struct {
	mu        sync.Mutex
	items     []published
	onPublish func(published)

	// bus, when set, also receives every publish and serves Retain.
	bus *events.Bus
}

func (p *recPub) Publish(topic, event string, data any, except ...string) int {
	item := published{Topic: topic, Event: event, Data: data, Except: except}
	p.mu.Lock()
	p.items = append(p.items, item)
	hook := p.onPublish
	p.mu.Unlock()
	if hook != nil {
		hook(item)
	}
	if p.bus != nil {
		p.bus.Publish(topic, event, data, except...)
	}
	return 1
}

func (p *recPub) PublishAll(topics []string, event string, data any) int {
	n := 0
	for _, t := range topics {
		n += p.Publish(t, event, data)
	}
	return n
}

func (p *recPub) Retain(topic string, keep func(events.Subscriber) bool) int {
	if p.bus == nil {
		return 0
	}
	return p.bus.Retain(topic, keep)
}

func (p *recPub) find(topic, event string) (published, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, it := range p.items {
		if it.Topic == topic && it.Event == event {
			return it, true
		}
	}
	return published{}, false
}

func (p *recPub) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, it := range p.items {
		if it.Event == event {
			n++
		}
	}
	return n
}

func (p *recPub) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = nil
}

type harness struct {
	svc     *dispatch.Service
	orders  *repository.MemoryOrders
	drivers *geo.MemoryIndex
	pub     *recPub
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		orders:  repository.NewMemoryOrders(),
		drivers: geo.NewMemoryIndex(0),
		pub:     &recPub{},
	}
	h.svc = dispatch.NewService(h.orders, h.drivers, h.pub, testEstimator(), testConfig(), logx.Nop(), metrics.NewDispatch())
	return h
}

func testEstimator() *fare.Estimator {
	return fare.NewEstimator(fare.Rates{Base: 2, PerKm: 0.5, PerMinute: 0.1, Currency: "AZN"})
}

func testConfig() dispatch.Config {
	return dispatch.Config{
		SearchRadiusKm: 5,
		MaxRadiusKm:    50,
		Duration:       fare.DurationModel{AvgSpeedKmh: 30, MinMinutes: 5},
	}
}

func driverActor(id string) domain.Actor {
	return domain.Actor{UserID: "acc-" + id, Role: domain.RoleDriver, DriverID: id}
}

// online brings a driver online and available at p.
func (h *harness) online(t *testing.T, id string, p domain.Point) domain.Actor {
	t.Helper()
	ctx := context.Background()
	a := driverActor(id)
	_, err := h.svc.SetDriverOnlineStatus(ctx, a, true, nil)
	require.NoError(t, err)
	_, err = h.svc.UpdateDriverLocation(ctx, a, p, "")
	require.NoError(t, err)
	return a
}

func (h *harness) create(t *testing.T) *domain.Order {
	t.Helper()
	res, err := h.svc.CreateOrder(context.Background(), customer, dispatch.CreateOrderInput{
		Pickup:      pickup,
		Destination: destination,
	})
	require.NoError(t, err)
	return res.Order
}

// orderIn creates an order and drives it into status.
func (h *harness) orderIn(t *testing.T, status domain.OrderStatus) *domain.Order {
	t.Helper()
	ctx := context.Background()
	o := h.create(t)

	switch status {
	case domain.StatusPending:
		return o
	case domain.StatusCancelled:
		o, err := h.svc.Cancel(ctx, operator, o.ID, "")
		require.NoError(t, err)
		return o
	case domain.StatusAccepted:
		o, err := h.svc.AdvanceStatus(ctx, operator, o.ID, domain.StatusAccepted, "")
		require.NoError(t, err)
		return o
	}

	d := h.online(t, "drv-"+o.ID, pickup.Point)
	o, err := h.svc.Accept(ctx, d, o.ID)
	require.NoError(t, err)
	for _, next := range []domain.OrderStatus{domain.StatusDriverArrived, domain.StatusInProgress, domain.StatusCompleted} {
		if o.Status == status {
			break
		}
		o, err = h.svc.AdvanceStatus(ctx, d, o.ID, next, "")
		require.NoError(t, err)
	}
	require.Equal(t, status, o.Status)
	return o
}

// field decodes key from the JSON form of an event payload.
func field(t *testing.T, data any, key string) any {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m[key]
}
