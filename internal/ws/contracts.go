package ws

import (
	"context"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
)

type hub interface {
	Subscribe(topic string, sub events.Subscriber)
	Unsubscribe(topic, subID string)
	UnsubscribeAll(subID string)
	Subscribers(topic string) int
}

type coordinator interface {
	DriverConnected(ctx context.Context, actor domain.Actor) (*domain.Driver, error)
	DriverDisconnected(ctx context.Context, actor domain.Actor)
	UpdateDriverLocation(ctx context.Context, actor domain.Actor, p domain.Point, address string) (*domain.Driver, error)
	SetDriverOnlineStatus(ctx context.Context, actor domain.Actor, online bool, available *bool) (*domain.Driver, error)
	TrackOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
}

type tokenVerifier interface {
	Verify(raw string) (domain.Actor, error)
}

// Limiter throttles inbound location updates per driver.
type Limiter interface {
	Allow(key string) bool
}
