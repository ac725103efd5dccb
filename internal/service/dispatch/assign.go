package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// Accept binds the calling driver to an order offered to them. Exactly one
// of any number of concurrent accepts for the same order succeeds; the rest
// get ErrConflict.
func (s *Service) Accept(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	if err := authz.Require(actor, authz.AcceptOrder); err != nil {
		return nil, err
	}
	if actor.DriverID == "" {
		return nil, fmt.Errorf("%w: actor has no driver profile", apperr.ErrForbidden)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.drivers.Get(ctx, actor.DriverID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: driver %s is not online", apperr.ErrDriverUnavailable, actor.DriverID)
		}
		return nil, err
	}
	return s.assign(ctx, actor, orderID, d, false)
}

// AssignDriver binds driverID to an order on behalf of a supervisor.
func (s *Service) AssignDriver(ctx context.Context, actor domain.Actor, orderID, driverID string) (*domain.Order, error) {
	if err := authz.Require(actor, authz.AssignOrder); err != nil {
		return nil, err
	}
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return s.assign(ctx, actor, orderID, d, true)
}

// assign reserves d, then moves the order to driver_assigned. A failed
// order write hands the reservation back.
func (s *Service) assign(ctx context.Context, actor domain.Actor, orderID string, d *domain.Driver, supervised bool) (*domain.Order, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case o.Status.Terminal():
		return nil, fmt.Errorf("%w: order %s is %s", apperr.ErrInvalidTransition, o.ID, o.Status)
	case !o.Status.Assignable():
		s.metrics.Conflict()
		return nil, fmt.Errorf("%w: order %s is already taken", apperr.ErrConflict, o.ID)
	}

	ok, err := s.drivers.Reserve(ctx, d.ID, o.ID)
	if err != nil {
		return nil, fmt.Errorf("reserve driver %s: %w", d.ID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: driver %s is offline or busy", apperr.ErrDriverUnavailable, d.ID)
	}

	prev := o.Status
	now := s.now()
	upd := domain.OrderUpdate{
		Status:    domain.StatusDriverAssigned,
		DriverID:  d.ID,
		Entry:     s.entry(actor, domain.StatusDriverAssigned, now, ""),
		UpdatedAt: now,
	}
	if err := s.apply(ctx, o, upd); err != nil {
		s.releaseDriver(ctx, d.ID, o.ID)
		return nil, err
	}

	s.logger.Info("driver assigned",
		logx.String("event", "driver_assigned"),
		logx.String("order_id", o.ID),
		logx.String("driver_id", d.ID),
		logx.String("actor_id", actor.UserID),
		logx.String("actor_role", string(actor.Role)),
	)

	summary := summarize(o)
	s.bus.Publish(events.UserTopic(o.RequesterID), events.DriverAssigned, assignedPayload{Order: summary, Driver: d.Profile()})
	s.bus.PublishAll(events.Supervisory, events.DriverAssignedToOrder, assignedPayload{Order: summary, Driver: d.Profile()})
	s.bus.Publish(events.OrderTopic(o.ID), events.OrderStatusChanged, statusPayload{
		OrderID:        o.ID,
		Number:         o.Number,
		Status:         string(o.Status),
		PreviousStatus: string(prev),
		DriverID:       d.ID,
		At:             now,
	})
	if supervised && d.AccountID != "" {
		s.bus.Publish(events.UserTopic(d.AccountID), events.NewOrderAssigned, summary)
	}
	s.retractOffer(o, events.OrderAcceptedByOther, d.AccountID)

	return o, nil
}

// retractOffer tells everyone who saw the offer that it is gone, except the
// given accounts.
func (s *Service) retractOffer(o *domain.Order, event string, except ...string) {
	off, ok := s.offers.take(o.ID)
	if !ok {
		return
	}
	data := retractPayload{OrderID: o.ID, Number: o.Number}
	if off.pool {
		s.bus.Publish(events.TopicDrivers, event, data, except...)
		return
	}
	for _, acc := range off.accounts {
		if contains(except, acc) {
			continue
		}
		s.bus.Publish(events.UserTopic(acc), event, data)
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
