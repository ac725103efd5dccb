package handlers

import (
	"context"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
)

type orderUsecase interface {
	CreateOrder(ctx context.Context, actor domain.Actor, in dispatch.CreateOrderInput) (*dispatch.CreateResult, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	Accept(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	Reject(ctx context.Context, actor domain.Actor, orderID, reason string) error
	AssignDriver(ctx context.Context, actor domain.Actor, orderID, driverID string) (*domain.Order, error)
	AdvanceStatus(ctx context.Context, actor domain.Actor, orderID string, to domain.OrderStatus, note string) (*domain.Order, error)
	Cancel(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.Order, error)
	Rate(ctx context.Context, actor domain.Actor, orderID string, in dispatch.RateInput) (*domain.Order, error)
	Rebroadcast(ctx context.Context, actor domain.Actor, orderID string, radiusKm float64) (dispatch.DispatchReport, error)
}

// NewOrderUsecase wires the dispatch Service into an orderUsecase.
func NewOrderUsecase(svc *dispatch.Service) orderUsecase {
	return svc
}

type driverUsecase interface {
	NearbyDrivers(ctx context.Context, actor domain.Actor, p domain.Point, radiusKm float64) ([]domain.DriverRef, error)
	UpdateDriverLocation(ctx context.Context, actor domain.Actor, p domain.Point, address string) (*domain.Driver, error)
	SetDriverOnlineStatus(ctx context.Context, actor domain.Actor, online bool, available *bool) (*domain.Driver, error)
	DriverProfile(ctx context.Context, actor domain.Actor) (*domain.Driver, error)
	UpdateDriverProfile(ctx context.Context, actor domain.Actor, in dispatch.DriverProfileInput) (*domain.Driver, error)
	NearbyOrders(ctx context.Context, actor domain.Actor, at *domain.Point, radiusKm float64) ([]dispatch.NearbyOrder, error)
}

// NewDriverUsecase wires the dispatch Service into a driverUsecase.
func NewDriverUsecase(svc *dispatch.Service) driverUsecase {
	return svc
}
