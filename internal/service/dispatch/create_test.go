package dispatch_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/geo"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/repository"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
)

func newCtrl(t *testing.T) *gomock.Controller {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return ctrl
}

func TestCreateOrder_OffersToNearbyDriver(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.online(t, "d1", domain.Point{Lat: 40.41, Lon: 49.86})
	h.pub.reset()

	res, err := h.svc.CreateOrder(context.Background(), customer, dispatch.CreateOrderInput{
		Pickup:      pickup,
		Destination: destination,
	})
	require.NoError(t, err)

	o := res.Order
	require.Equal(t, domain.StatusPending, o.Status)
	require.Equal(t, customer.UserID, o.RequesterID)
	require.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-\d{4}$`), o.Number)
	require.InDelta(t, 3.44, o.DistanceKm, 0.001)
	require.Equal(t, 7, o.DurationMin)
	require.InDelta(t, 4.42, o.Fare.Total, 1e-9)
	require.Equal(t, "AZN", o.Fare.Currency)
	require.Equal(t, domain.PaymentCash, o.Payment.Method)
	require.Len(t, o.Timeline, 1)
	require.Equal(t, domain.StatusPending, o.Timeline[0].Status)

	require.Equal(t, "nearby", res.Dispatch.Strategy)
	require.Equal(t, 1, res.Dispatch.Candidates)
	require.Equal(t, 1, res.Dispatch.Delivered)
	require.False(t, res.Dispatch.Unreachable)

	offer, ok := h.pub.find(events.UserTopic("acc-d1"), events.NewOrderAvailable)
	require.True(t, ok)
	require.Equal(t, "nearby", field(t, offer.Data, "scope"))
	require.Greater(t, field(t, offer.Data, "distanceToPickupKm").(float64), 0.0)

	_, ok = h.pub.find(events.UserTopic(customer.UserID), events.OrderCreated)
	require.True(t, ok)
	for _, topic := range events.Supervisory {
		_, ok = h.pub.find(topic, events.NewOrderCreated)
		require.True(t, ok, topic)
	}
	_, ok = h.pub.find(events.TopicDrivers, events.NewOrderAvailable)
	require.False(t, ok)

	stored, err := h.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, o.Number, stored.Number)
}

func TestCreateOrder_FallsBackToPool(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.online(t, "far", domain.Point{Lat: 40.60, Lon: 49.85})

	res, err := h.svc.CreateOrder(context.Background(), customer, dispatch.CreateOrderInput{
		Pickup:      pickup,
		Destination: destination,
	})
	require.NoError(t, err)
	require.Equal(t, "pool", res.Dispatch.Strategy)
	require.Equal(t, 1, res.Dispatch.Candidates)
	require.False(t, res.Dispatch.Unreachable)

	offer, ok := h.pub.find(events.TopicDrivers, events.NewOrderAvailable)
	require.True(t, ok)
	require.Equal(t, "pool", field(t, offer.Data, "scope"))
	require.Equal(t, domain.StatusPending, res.Order.Status)
}

func TestCreateOrder_NoDriversOnlineIsUnreachable(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res, err := h.svc.CreateOrder(context.Background(), customer, dispatch.CreateOrderInput{
		Pickup:      pickup,
		Destination: destination,
	})
	require.NoError(t, err)
	require.Equal(t, "pool", res.Dispatch.Strategy)
	require.True(t, res.Dispatch.Unreachable)
	require.Equal(t, domain.StatusPending, res.Order.Status)
}

func TestCreateOrder_Validation(t *testing.T) {
	t.Parallel()

	tooMany := make([]domain.Location, 11)
	for i := range tooMany {
		tooMany[i] = pickup
	}

	tests := []struct {
		name string
		in   dispatch.CreateOrderInput
	}{
		{"latitude out of range", dispatch.CreateOrderInput{
			Pickup:      domain.Location{Point: domain.Point{Lat: 91, Lon: 49}, Address: "x"},
			Destination: destination,
		}},
		{"longitude out of range", dispatch.CreateOrderInput{
			Pickup:      pickup,
			Destination: domain.Location{Point: domain.Point{Lat: 40, Lon: -181}, Address: "x"},
		}},
		{"missing address", dispatch.CreateOrderInput{
			Pickup:      domain.Location{Point: pickup.Point, Address: "  "},
			Destination: destination,
		}},
		{"too many stops", dispatch.CreateOrderInput{
			Pickup:      pickup,
			Destination: destination,
			Stops:       tooMany,
		}},
		{"unknown payment", dispatch.CreateOrderInput{
			Pickup:        pickup,
			Destination:   destination,
			PaymentMethod: "barter",
		}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			_, err := h.svc.CreateOrder(context.Background(), customer, tc.in)
			require.ErrorIs(t, err, apperr.ErrInvalid)
			require.Zero(t, h.pub.count(events.OrderCreated))
		})
	}
}

func TestCreateOrder_Authorization(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	in := dispatch.CreateOrderInput{Pickup: pickup, Destination: destination}

	_, err := h.svc.CreateOrder(ctx, driverActor("d1"), in)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	onBehalf := in
	onBehalf.RequesterID = "cust-9"
	_, err = h.svc.CreateOrder(ctx, customer, onBehalf)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	manual := 3.0
	withFare := in
	withFare.ManualFare = &manual
	_, err = h.svc.CreateOrder(ctx, customer, withFare)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCreateOrder_OnBehalfWithManualFare(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	manual := 3.0
	res, err := h.svc.CreateOrder(context.Background(), operator, dispatch.CreateOrderInput{
		RequesterID:   "cust-9",
		Pickup:        pickup,
		Destination:   destination,
		Stops:         []domain.Location{{Point: domain.Point{Lat: 40.39, Lon: 49.845}, Address: "Stop"}},
		PaymentMethod: domain.PaymentCard,
		ManualFare:    &manual,
		Notes:         " call on arrival ",
	})
	require.NoError(t, err)

	o := res.Order
	require.Equal(t, "cust-9", o.RequesterID)
	require.Len(t, o.Stops, 1)
	require.Equal(t, domain.PaymentCard, o.Payment.Method)
	require.Equal(t, "call on arrival", o.Notes)
	require.NotNil(t, o.Fare.ManualTotal)
	require.InDelta(t, 3.0, *o.Fare.ManualTotal, 1e-9)
	require.InDelta(t, o.Fare.Total-3.0, o.Fare.Discount, 1e-9)
	require.Equal(t, operator.UserID, o.Timeline[0].ActorID)

	_, ok := h.pub.find(events.UserTopic("cust-9"), events.OrderCreated)
	require.True(t, ok)
}

func TestCreateOrder_RetriesNumberCollision(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	store := NewMockorderStore(ctrl)

	var numbers []string
	gomock.InOrder(
		store.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, o *domain.Order) error {
				numbers = append(numbers, o.Number)
				return repository.ErrDuplicate
			}).Times(2),
		store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
	)

	svc := dispatch.NewService(store, geo.NewMemoryIndex(0), &recPub{}, testEstimator(), testConfig(), logx.Nop(), nil)
	res, err := svc.CreateOrder(context.Background(), customer, dispatch.CreateOrderInput{
		Pickup:      pickup,
		Destination: destination,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Order.ID)
	require.Len(t, numbers, 2)
}

func TestCreateOrder_StoreFailure(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	store := NewMockorderStore(ctrl)
	wantErr := errors.New("db down")
	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(wantErr).Times(1)

	pub := &recPub{}
	svc := dispatch.NewService(store, geo.NewMemoryIndex(0), pub, testEstimator(), testConfig(), logx.Nop(), nil)
	_, err := svc.CreateOrder(context.Background(), customer, dispatch.CreateOrderInput{
		Pickup:      pickup,
		Destination: destination,
	})
	require.ErrorIs(t, err, wantErr)
	require.Zero(t, pub.count(events.NewOrderAvailable))
}

func TestRebroadcast(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("wider radius reaches far driver", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.online(t, "far", domain.Point{Lat: 40.60, Lon: 49.85})
		o := h.create(t)

		rep, err := h.svc.Rebroadcast(ctx, operator, o.ID, 30)
		require.NoError(t, err)
		require.Equal(t, "nearby", rep.Strategy)
		require.Equal(t, 1, rep.Candidates)
		_, ok := h.pub.find(events.UserTopic("acc-far"), events.NewOrderAvailable)
		require.True(t, ok)
	})

	t.Run("radius above limit", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		o := h.create(t)
		_, err := h.svc.Rebroadcast(ctx, operator, o.ID, 500)
		require.ErrorIs(t, err, apperr.ErrInvalid)
	})

	t.Run("nobody online", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		o := h.create(t)
		rep, err := h.svc.Rebroadcast(ctx, operator, o.ID, 0)
		require.ErrorIs(t, err, apperr.ErrUnreachable)
		require.True(t, rep.Unreachable)
	})

	t.Run("customer may not rebroadcast", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		o := h.create(t)
		_, err := h.svc.Rebroadcast(ctx, customer, o.ID, 0)
		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("assigned order", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		o := h.orderIn(t, domain.StatusDriverAssigned)
		_, err := h.svc.Rebroadcast(ctx, operator, o.ID, 0)
		require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	})
}
