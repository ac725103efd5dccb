//go:generate mockgen -source=contracts.go -destination=dispatch_mocks_test.go -package=dispatch_test

package dispatch

import (
	"context"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/geo"
)

type orderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ConditionalUpdate(ctx context.Context, id string, expected domain.OrderStatus, upd domain.OrderUpdate) (bool, error)
	AttachRating(ctx context.Context, id string, side domain.RatingSide, e domain.RatingEntry, at time.Time) (bool, error)
	ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]string, error)
	ListPendingNear(ctx context.Context, p domain.Point, radiusKm float64, limit int) ([]string, error)
}

type driverIndex interface {
	Get(ctx context.Context, id string) (*domain.Driver, error)
	Register(ctx context.Context, d domain.Driver) error
	SetPresence(ctx context.Context, p geo.Presence) (*domain.Driver, error)
	UpdatePosition(ctx context.Context, driverID, accountID string, p domain.Point, at time.Time) (*domain.Driver, error)
	Disconnect(ctx context.Context, driverID string) (*domain.Driver, error)
	Reserve(ctx context.Context, driverID, orderID string) (bool, error)
	Release(ctx context.Context, driverID, orderID string) error
	FindNearby(ctx context.Context, p domain.Point, radiusKm float64, now time.Time) ([]domain.DriverRef, error)
	OnlineCount(ctx context.Context) (int, error)
}

type publisher interface {
	Publish(topic, event string, data any, except ...string) int
	PublishAll(topics []string, event string, data any) int
	Retain(topic string, keep func(events.Subscriber) bool) int
}
