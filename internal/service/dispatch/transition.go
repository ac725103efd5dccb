package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

const (
	minReasonLen = 3
	maxReasonLen = 500
	expireBatch  = 100
)

// AdvanceStatus moves an order one step along the lifecycle. Cancellation
// is routed through Cancel; driver_assigned is only reachable through the
// assignment protocol.
func (s *Service) AdvanceStatus(ctx context.Context, actor domain.Actor, orderID string, to domain.OrderStatus, note string) (*domain.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, to)
	}
	if to == domain.StatusCancelled {
		return s.Cancel(ctx, actor, orderID, note)
	}
	if len(note) > maxReasonLen {
		return nil, fmt.Errorf("%w: note longer than %d", apperr.ErrInvalid, maxReasonLen)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.canAdvance(actor, o) {
		return nil, fmt.Errorf("%w: order %s is not yours to advance", apperr.ErrForbidden, o.ID)
	}
	if !domain.CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, o.Status, to)
	}
	if to == domain.StatusDriverAssigned {
		return nil, fmt.Errorf("%w: use accept or assign to bind a driver", apperr.ErrInvalid)
	}

	prev := o.Status
	now := s.now()
	upd := domain.OrderUpdate{
		Status:    to,
		Entry:     s.entry(actor, to, now, strings.TrimSpace(note)),
		UpdatedAt: now,
	}
	if err := s.apply(ctx, o, upd); err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		logx.String("event", "order_status_changed"),
		logx.String("order_id", o.ID),
		logx.String("from", string(prev)),
		logx.String("to", string(to)),
		logx.String("actor_id", actor.UserID),
	)

	payload := statusPayload{
		OrderID:        o.ID,
		Number:         o.Number,
		Status:         string(to),
		PreviousStatus: string(prev),
		DriverID:       o.DriverID,
		At:             now,
	}
	account := s.driverAccount(ctx, o.DriverID)
	s.notifyParties(o, account, events.OrderStatusChanged, payload)
	s.bus.Publish(events.OrderTopic(o.ID), events.OrderStatusChanged, payload)
	s.bus.PublishAll(events.Supervisory, events.OrderStatusUpdated, payload)
	if to == domain.StatusAccepted {
		s.retractOffer(o, events.OrderAcceptedByOther)
	}
	if to == domain.StatusCompleted {
		s.notifyParties(o, account, events.OrderCompleted, summarize(o))
	}
	return o, nil
}

func (s *Service) canAdvance(actor domain.Actor, o *domain.Order) bool {
	if authz.HasCapability(actor, authz.AdvanceAnyStatus) {
		return true
	}
	return authz.HasCapability(actor, authz.AdvanceOwnStatus) &&
		actor.DriverID != "" && actor.DriverID == o.DriverID
}

// Cancel moves an order to cancelled from any non-terminal state. The
// bound driver, if any, becomes available again before anyone is told.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason != "" && (len(reason) < minReasonLen || len(reason) > maxReasonLen) {
		return nil, fmt.Errorf("%w: reason must be %d..%d characters", apperr.ErrInvalid, minReasonLen, maxReasonLen)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	by, err := cancelSide(actor, o)
	if err != nil {
		return nil, err
	}
	if err := s.cancel(ctx, actor, o, by, reason); err != nil {
		return nil, err
	}
	return o, nil
}

func cancelSide(actor domain.Actor, o *domain.Order) (domain.CancelledBy, error) {
	switch {
	case authz.HasCapability(actor, authz.CancelAnyOrder):
		return domain.CancelledBySupervisor, nil
	case authz.HasCapability(actor, authz.CancelOwnOrder) && actor.UserID == o.RequesterID:
		return domain.CancelledByRequester, nil
	case authz.HasCapability(actor, authz.CancelAssignedOrder) && actor.DriverID != "" && actor.DriverID == o.DriverID:
		return domain.CancelledByDriver, nil
	}
	return "", fmt.Errorf("%w: order %s cannot be cancelled by %s", apperr.ErrForbidden, o.ID, actor.UserID)
}

func (s *Service) cancel(ctx context.Context, actor domain.Actor, o *domain.Order, by domain.CancelledBy, reason string) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order %s is already %s", apperr.ErrInvalidTransition, o.ID, o.Status)
	}

	prev := o.Status
	now := s.now()
	upd := domain.OrderUpdate{
		Status:             domain.StatusCancelled,
		CancelledBy:        by,
		CancellationReason: reason,
		Entry:              s.entry(actor, domain.StatusCancelled, now, reason),
		UpdatedAt:          now,
	}
	if err := s.apply(ctx, o, upd); err != nil {
		return err
	}

	s.logger.Info("order cancelled",
		logx.String("event", "order_cancelled"),
		logx.String("order_id", o.ID),
		logx.String("from", string(prev)),
		logx.String("cancelled_by", string(by)),
		logx.String("actor_id", actor.UserID),
	)

	payload := cancelPayload{
		OrderID:     o.ID,
		Number:      o.Number,
		CancelledBy: string(by),
		Reason:      reason,
		At:          now,
	}
	s.notifyParties(o, s.driverAccount(ctx, o.DriverID), events.OrderCancelled, payload)
	s.bus.Publish(events.OrderTopic(o.ID), events.OrderCancelled, payload)
	s.bus.PublishAll(events.Supervisory, events.OrderCancelled, payload)
	s.retractOffer(o, events.OrderCancelled)
	return nil
}

// ExpirePending cancels orders that stayed pending for longer than ttl and
// returns how many it cancelled. Orders changed concurrently are skipped.
func (s *Service) ExpirePending(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	ids, err := s.orders.ListPendingBefore(ctx, s.now().Add(-ttl), expireBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		o, err := s.orders.Get(ctx, id)
		if err != nil {
			s.logger.Warn("stale order lookup failed", logx.String("order_id", id), logx.Any("err", err))
			continue
		}
		if o.Status != domain.StatusPending {
			continue
		}
		err = s.cancel(ctx, domain.SystemActor, o, domain.CancelledBySystem, "no driver accepted in time")
		switch {
		case err == nil:
			expired++
		case errors.Is(err, apperr.ErrConflict):
		default:
			s.logger.Error("expire order failed", logx.String("order_id", id), logx.Any("err", err))
		}
	}
	return expired, nil
}
