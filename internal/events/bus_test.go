package events

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	testlog "github.com/rufatasadov/sober-driver-backend/internal/testutil"
)

type stubSub struct {
	id, user string
	full     bool

	mu  sync.Mutex
	got []Envelope
}

func (s *stubSub) ID() string     { return s.id }
func (s *stubSub) UserID() string { return s.user }
func (s *stubSub) Deliver(e Envelope) bool {
	if s.full {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, e)
	return true
}

func (s *stubSub) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.got))
	for _, e := range s.got {
		out = append(out, e.Event)
	}
	return out
}

type stubRelay struct {
	mu  sync.Mutex
	got []Envelope
}

func (r *stubRelay) Forward(e Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
}

func TestBus_PublishDeliversToTopicOnly(t *testing.T) {
	t.Parallel()

	b := NewBus(nil, nil, nil)
	a := &stubSub{id: "s1", user: "u1"}
	c := &stubSub{id: "s2", user: "u2"}
	b.Subscribe(UserTopic("u1"), a)
	b.Subscribe(TopicDrivers, a)
	b.Subscribe(TopicDrivers, c)

	require.Equal(t, 1, b.Publish(UserTopic("u1"), OrderCreated, map[string]string{"id": "o1"}))
	require.Equal(t, 2, b.Publish(TopicDrivers, NewOrderAvailable, nil))

	require.Equal(t, []string{OrderCreated, NewOrderAvailable}, a.events())
	require.Equal(t, []string{NewOrderAvailable}, c.events())
	require.Equal(t, UserTopic("u1"), a.got[0].Topic)
	require.False(t, a.got[0].At.IsZero())
}

func TestBus_PublishExcept(t *testing.T) {
	t.Parallel()

	b := NewBus(nil, nil, nil)
	winner := &stubSub{id: "s1", user: "u1"}
	other := &stubSub{id: "s2", user: "u2"}
	b.Subscribe(TopicDrivers, winner)
	b.Subscribe(TopicDrivers, other)

	require.Equal(t, 1, b.Publish(TopicDrivers, OrderAcceptedByOther, nil, "u1"))
	require.Empty(t, winner.events())
	require.Equal(t, []string{OrderAcceptedByOther}, other.events())
}

func TestBus_NoSubscribersIsNotAnError(t *testing.T) {
	t.Parallel()

	relay := &stubRelay{}
	b := NewBus(nil, relay, nil)
	require.Zero(t, b.Publish(UserTopic("ghost"), OrderCancelled, nil))
	require.Len(t, relay.got, 1)
	require.Equal(t, OrderCancelled, relay.got[0].Event)
}

func TestBus_DroppedDeliveryIsLoggedAndCounted(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_events_dropped_total"})
	b := NewBus(rec.Logger(), nil, counter)
	b.Subscribe(TopicOperators, &stubSub{id: "s1", user: "op", full: true})

	require.Zero(t, b.Publish(TopicOperators, OrderStatusUpdated, nil))
	require.Equal(t, 1.0, testutil.ToFloat64(counter))

	entries := rec.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "warn", entries[0].Level)
	require.Equal(t, "event dropped", entries[0].Msg)
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBus(nil, nil, nil)
	s := &stubSub{id: "s1", user: "u1"}
	b.Subscribe(TopicDrivers, s)
	b.Subscribe(UserTopic("u1"), s)
	b.Subscribe(TopicDrivers, s)
	require.Equal(t, 1, b.Subscribers(TopicDrivers))

	b.Unsubscribe(TopicDrivers, "s1")
	require.Zero(t, b.Subscribers(TopicDrivers))
	require.Equal(t, 1, b.Subscribers(UserTopic("u1")))

	b.UnsubscribeAll("s1")
	require.Zero(t, b.Subscribers(UserTopic("u1")))
}

func TestBus_Retain(t *testing.T) {
	t.Parallel()

	b := NewBus(nil, nil, nil)
	owner := &stubSub{id: "s1", user: "cust-1"}
	other := &stubSub{id: "s2", user: "acc-d2"}
	topic := OrderTopic("o1")
	b.Subscribe(topic, owner)
	b.Subscribe(topic, other)
	b.Subscribe(UserTopic("acc-d2"), other)

	removed := b.Retain(topic, func(s Subscriber) bool { return s.UserID() == "cust-1" })
	require.Equal(t, 1, removed)
	require.Equal(t, 1, b.Subscribers(topic))
	require.Equal(t, 1, b.Subscribers(UserTopic("acc-d2")), "other topics are untouched")

	b.Publish(topic, DriverLocation, nil)
	require.Equal(t, []string{DriverLocation}, owner.events())
	require.Empty(t, other.events())

	require.Equal(t, 1, b.Retain(topic, func(Subscriber) bool { return false }))
	require.Zero(t, b.Subscribers(topic))
	require.Zero(t, b.Retain("missing", func(Subscriber) bool { return false }))
}

func TestBus_PublishAll(t *testing.T) {
	t.Parallel()

	b := NewBus(nil, nil, nil)
	op := &stubSub{id: "s1", user: "op"}
	adm := &stubSub{id: "s2", user: "adm"}
	b.Subscribe(TopicOperators, op)
	b.Subscribe(TopicAdmins, adm)

	require.Equal(t, 2, b.PublishAll(Supervisory, NewOrderCreated, nil))
}

func TestRoleTopics(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{TopicDrivers}, RoleTopics(domain.RoleDriver))
	require.Equal(t, []string{TopicDispatchers}, RoleTopics(domain.RoleDispatcher))
	require.Empty(t, RoleTopics(domain.RoleCustomer))
}

func TestBus_ConcurrentUse(t *testing.T) {
	t.Parallel()

	b := NewBus(nil, nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		s := &stubSub{id: string(rune('a' + i)), user: "u"}
		go func() {
			defer wg.Done()
			b.Subscribe(TopicDrivers, s)
			b.Unsubscribe(TopicDrivers, s.ID())
		}()
		go func() {
			defer wg.Done()
			b.Publish(TopicDrivers, NewOrderAvailable, nil)
		}()
	}
	wg.Wait()
	require.Zero(t, b.Subscribers(TopicDrivers))
}
