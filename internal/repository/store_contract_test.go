package repository_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/repository"
)

type orderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ConditionalUpdate(ctx context.Context, id string, expected domain.OrderStatus, upd domain.OrderUpdate) (bool, error)
	AttachRating(ctx context.Context, id string, side domain.RatingSide, e domain.RatingEntry, at time.Time) (bool, error)
	ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]string, error)
	ListPendingNear(ctx context.Context, p domain.Point, radiusKm float64, limit int) ([]string, error)
}

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

var seq atomic.Int64

func newOrder(created time.Time) *domain.Order {
	n := seq.Add(1)
	return &domain.Order{
		ID:          uuid.NewString(),
		Number:      fmt.Sprintf("ORD-20250601-%04d-%d", n%10000, time.Now().UnixNano()),
		RequesterID: "req-1",
		Pickup:      domain.Location{Point: domain.Point{Lat: 40.40, Lon: 49.85}, Address: "Fountain sq."},
		Destination: domain.Location{Point: domain.Point{Lat: 40.37, Lon: 49.84}, Address: "Bayil"},
		Stops:       []domain.Location{{Point: domain.Point{Lat: 40.39, Lon: 49.84}, Address: "stop"}},
		DistanceKm:  3.44,
		DurationMin: 7,
		Fare:        domain.Fare{Base: 2, DistanceFare: 1.72, TimeFare: 0.7, Total: 4.42, Currency: "AZN"},
		Payment:     domain.Payment{Method: domain.PaymentCash, Status: domain.PaymentPending},
		Status:      domain.StatusPending,
		Timeline: []domain.TimelineEntry{{
			Status: domain.StatusPending, At: created, ActorID: "req-1", ActorRole: domain.RoleCustomer,
		}},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func entry(s domain.OrderStatus, at time.Time) domain.TimelineEntry {
	return domain.TimelineEntry{Status: s, At: at, ActorID: "drv-acc", ActorRole: domain.RoleDriver}
}

func testCreateGet(t *testing.T, s orderStore) {
	ctx := context.Background()
	o := newOrder(base)
	require.NoError(t, s.Create(ctx, o))

	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, o.Number, got.Number)
	require.Equal(t, o.Pickup, got.Pickup)
	require.Equal(t, o.Stops, got.Stops)
	require.Equal(t, o.Fare, got.Fare)
	require.Equal(t, domain.StatusPending, got.Status)
	require.Len(t, got.Timeline, 1)
	require.True(t, base.Equal(got.CreatedAt))
	require.Empty(t, got.DriverID)

	dup := newOrder(base)
	dup.Number = o.Number
	require.True(t, repository.IsDuplicate(s.Create(ctx, dup)))

	_, err = s.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func testConditionalUpdate(t *testing.T, s orderStore) {
	ctx := context.Background()
	o := newOrder(base)
	require.NoError(t, s.Create(ctx, o))

	at := base.Add(time.Minute)
	ok, err := s.ConditionalUpdate(ctx, o.ID, domain.StatusPending, domain.OrderUpdate{
		Status:    domain.StatusDriverAssigned,
		DriverID:  "drv-1",
		Entry:     entry(domain.StatusDriverAssigned, at),
		UpdatedAt: at,
	})
	require.NoError(t, err)
	require.True(t, ok)

	// stale expectation
	ok, err = s.ConditionalUpdate(ctx, o.ID, domain.StatusPending, domain.OrderUpdate{
		Status:    domain.StatusCancelled,
		Entry:     entry(domain.StatusCancelled, at),
		UpdatedAt: at,
	})
	require.NoError(t, err)
	require.False(t, ok)

	at2 := at.Add(time.Minute)
	ok, err = s.ConditionalUpdate(ctx, o.ID, domain.StatusDriverAssigned, domain.OrderUpdate{
		Status:             domain.StatusCancelled,
		CancelledBy:        domain.CancelledByDriver,
		CancellationReason: "flat tyre",
		Entry:              entry(domain.StatusCancelled, at2),
		UpdatedAt:          at2,
	})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, got.Status)
	require.Equal(t, "drv-1", got.DriverID)
	require.Equal(t, domain.CancelledByDriver, got.CancelledBy)
	require.Equal(t, "flat tyre", got.CancellationReason)
	require.Len(t, got.Timeline, 3)
	require.Equal(t, []domain.OrderStatus{domain.StatusPending, domain.StatusDriverAssigned, domain.StatusCancelled},
		[]domain.OrderStatus{got.Timeline[0].Status, got.Timeline[1].Status, got.Timeline[2].Status})
	require.True(t, at2.Equal(got.UpdatedAt))
}

func testConditionalUpdateRace(t *testing.T, s orderStore) {
	ctx := context.Background()
	o := newOrder(base)
	require.NoError(t, s.Create(ctx, o))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.ConditionalUpdate(ctx, o.ID, domain.StatusPending, domain.OrderUpdate{
				Status:    domain.StatusDriverAssigned,
				DriverID:  fmt.Sprintf("drv-%d", i),
				Entry:     entry(domain.StatusDriverAssigned, base),
				UpdatedAt: base,
			})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())

	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Timeline, 2)
}

func testAttachRating(t *testing.T, s orderStore) {
	ctx := context.Background()
	o := newOrder(base)
	require.NoError(t, s.Create(ctx, o))

	r := domain.RatingEntry{Score: 5, Comment: "smooth", At: base}
	ok, err := s.AttachRating(ctx, o.ID, domain.RatingByRequester, r, base)
	require.NoError(t, err)
	require.False(t, ok, "pending order cannot be rated")

	prev := domain.StatusPending
	for _, st := range []domain.OrderStatus{domain.StatusDriverAssigned, domain.StatusDriverArrived, domain.StatusInProgress, domain.StatusCompleted} {
		ok, err := s.ConditionalUpdate(ctx, o.ID, prev, domain.OrderUpdate{
			Status: st, DriverID: "drv-1", Entry: entry(st, base), UpdatedAt: base,
		})
		require.NoError(t, err)
		require.True(t, ok)
		prev = st
	}

	ok, err = s.AttachRating(ctx, o.ID, domain.RatingByRequester, r, base)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AttachRating(ctx, o.ID, domain.RatingByRequester, r, base)
	require.NoError(t, err)
	require.False(t, ok, "second rating from the same side")

	ok, err = s.AttachRating(ctx, o.ID, domain.RatingByDriver, domain.RatingEntry{Score: 4, At: base}, base)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rating.ByRequester)
	require.Equal(t, 5, got.Rating.ByRequester.Score)
	require.Equal(t, "smooth", got.Rating.ByRequester.Comment)
	require.NotNil(t, got.Rating.ByDriver)
	require.Equal(t, 4, got.Rating.ByDriver.Score)
}

func testListPendingBefore(t *testing.T, s orderStore) {
	ctx := context.Background()
	past := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	older := newOrder(past)
	newer := newOrder(past.Add(time.Hour))
	late := newOrder(past.Add(3 * time.Hour))
	for _, o := range []*domain.Order{newer, older, late} {
		require.NoError(t, s.Create(ctx, o))
	}

	ids, err := s.ListPendingBefore(ctx, past.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Equal(t, []string{older.ID, newer.ID}, ids)

	ids, err = s.ListPendingBefore(ctx, past.Add(2*time.Hour), 1)
	require.NoError(t, err)
	require.Equal(t, []string{older.ID}, ids)
}

func testListPendingNear(t *testing.T, s orderStore) {
	ctx := context.Background()
	origin := domain.Point{Lat: 40.40, Lon: 49.85}
	at := func(lat, lon float64) *domain.Order {
		o := newOrder(base)
		o.Pickup.Point = domain.Point{Lat: lat, Lon: lon}
		require.NoError(t, s.Create(ctx, o))
		return o
	}
	near := at(40.401, 49.851)
	mid := at(40.42, 49.85)
	far := at(40.50, 49.85)
	taken := at(40.400, 49.850)
	ok, err := s.ConditionalUpdate(ctx, taken.ID, domain.StatusPending, domain.OrderUpdate{
		Status:    domain.StatusAccepted,
		Entry:     entry(domain.StatusAccepted, base),
		UpdatedAt: base,
	})
	require.NoError(t, err)
	require.True(t, ok)

	ids, err := s.ListPendingNear(ctx, origin, 5, 10)
	require.NoError(t, err)
	require.Equal(t, []string{near.ID, mid.ID}, ids)

	ids, err = s.ListPendingNear(ctx, origin, 20, 10)
	require.NoError(t, err)
	require.Equal(t, []string{near.ID, mid.ID, far.ID}, ids)

	ids, err = s.ListPendingNear(ctx, origin, 20, 1)
	require.NoError(t, err)
	require.Equal(t, []string{near.ID}, ids)

	ids, err = s.ListPendingNear(ctx, domain.Point{Lat: -33.86, Lon: 151.2}, 5, 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func testConditionalUpdateNeedsDriver(t *testing.T, s orderStore) {
	ctx := context.Background()
	o := newOrder(base)
	require.NoError(t, s.Create(ctx, o))

	ok, err := s.ConditionalUpdate(ctx, o.ID, domain.StatusPending, domain.OrderUpdate{
		Status:    domain.StatusAccepted,
		Entry:     entry(domain.StatusAccepted, base),
		UpdatedAt: base,
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ConditionalUpdate(ctx, o.ID, domain.StatusAccepted, domain.OrderUpdate{
		Status:    domain.StatusDriverAssigned,
		Entry:     entry(domain.StatusDriverAssigned, base),
		UpdatedAt: base,
	})
	require.NoError(t, err)
	require.False(t, ok)

	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, got.Status)
	require.Len(t, got.Timeline, 2)
}

// testGetSeesStatusAndTimelineTogether reads orders while they move through
// the lifecycle and checks that every read shows the status its latest
// timeline entry records.
func testGetSeesStatusAndTimelineTogether(t *testing.T, s orderStore) {
	ctx := context.Background()
	steps := []domain.OrderUpdate{
		{Status: domain.StatusAccepted},
		{Status: domain.StatusDriverAssigned, DriverID: "drv-1"},
		{Status: domain.StatusDriverArrived},
		{Status: domain.StatusInProgress},
		{Status: domain.StatusCompleted},
	}

	orders := make([]*domain.Order, 10)
	for i := range orders {
		orders[i] = newOrder(base)
		require.NoError(t, s.Create(ctx, orders[i]))
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, o := range orders {
					got, err := s.Get(ctx, o.ID)
					if !assert.NoError(t, err) {
						return
					}
					last := got.Timeline[len(got.Timeline)-1]
					assert.Equal(t, got.Status, last.Status, "order %s", o.ID)
				}
			}
		}()
	}

	for _, o := range orders {
		prev := domain.StatusPending
		for _, upd := range steps {
			upd.Entry = entry(upd.Status, base)
			upd.UpdatedAt = base
			ok, err := s.ConditionalUpdate(ctx, o.ID, prev, upd)
			require.NoError(t, err)
			require.True(t, ok)
			prev = upd.Status
		}
	}
	close(done)
	wg.Wait()
}
