package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// GetOrder returns an order the actor is allowed to see.
func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, o) {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrForbidden, o.ID)
	}
	return o, nil
}

// CanView reports whether actor may read o. Drivers may look at orders
// still open for assignment.
func CanView(actor domain.Actor, o *domain.Order) bool {
	if CanTrack(actor, o) {
		return true
	}
	return actor.Role == domain.RoleDriver && actor.DriverID != "" && o.Status.Assignable()
}

// CanTrack reports whether actor may follow the live position feed of o.
// Only the requester, the bound driver and supervisors qualify.
func CanTrack(actor domain.Actor, o *domain.Order) bool {
	switch {
	case authz.HasCapability(actor, authz.ViewAnyOrder):
		return true
	case actor.UserID != "" && actor.UserID == o.RequesterID:
		return true
	case actor.DriverID != "" && actor.DriverID == o.DriverID:
		return true
	}
	return false
}

// TrackOrder returns an order whose tracking topic actor may subscribe to.
func (s *Service) TrackOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTrack(actor, o) {
		return nil, fmt.Errorf("%w: order %s is not tracked by you", apperr.ErrForbidden, o.ID)
	}
	return o, nil
}

type actorSubscriber interface {
	Actor() domain.Actor
}

// pruneTrackers drops tracking subscribers that lost the right to follow o.
// Subscribers that do not expose an actor are kept only for the requester.
func (s *Service) pruneTrackers(o *domain.Order) {
	n := s.bus.Retain(events.OrderTopic(o.ID), func(sub events.Subscriber) bool {
		if as, ok := sub.(actorSubscriber); ok {
			return CanTrack(as.Actor(), o)
		}
		return sub.UserID() == o.RequesterID
	})
	if n > 0 {
		s.logger.Info("tracking subscribers dropped",
			logx.String("order_id", o.ID),
			logx.String("status", string(o.Status)),
			logx.Int("dropped", n),
		)
	}
}

// Reject declines an offer on behalf of the calling driver. The order
// stays open for others.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, orderID, reason string) error {
	if err := authz.Require(actor, authz.RejectOrder); err != nil {
		return err
	}
	if actor.DriverID == "" {
		return fmt.Errorf("%w: actor has no driver profile", apperr.ErrForbidden)
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLen {
		return fmt.Errorf("%w: reason longer than %d", apperr.ErrInvalid, maxReasonLen)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}
	switch {
	case o.Status.Terminal():
		return fmt.Errorf("%w: order %s is %s", apperr.ErrInvalidTransition, o.ID, o.Status)
	case !o.Status.Assignable():
		return fmt.Errorf("%w: order %s is already taken", apperr.ErrConflict, o.ID)
	}

	s.offers.decline(o.ID, actor.UserID)
	s.logger.Info("driver rejected order",
		logx.String("order_id", o.ID),
		logx.String("driver_id", actor.DriverID),
	)

	payload := rejectPayload{OrderID: o.ID, DriverID: actor.DriverID, Reason: reason}
	s.bus.Publish(events.UserTopic(o.RequesterID), events.DriverRejectedOrder, payload)
	s.bus.PublishAll(events.Supervisory, events.DriverRejectedOrder, payload)
	return nil
}

// RateInput is feedback for a completed order.
type RateInput struct {
	Score   int
	Comment string
}

// Rate attaches the caller's rating to a completed order. Each side may
// rate once.
func (s *Service) Rate(ctx context.Context, actor domain.Actor, orderID string, in RateInput) (*domain.Order, error) {
	if err := authz.Require(actor, authz.RateOrder); err != nil {
		return nil, err
	}
	if in.Score < 1 || in.Score > 5 {
		return nil, fmt.Errorf("%w: rating must be 1..5", apperr.ErrInvalid)
	}
	comment := strings.TrimSpace(in.Comment)
	if len(comment) > maxReasonLen {
		return nil, fmt.Errorf("%w: comment longer than %d", apperr.ErrInvalid, maxReasonLen)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var side domain.RatingSide
	switch {
	case actor.UserID == o.RequesterID:
		side = domain.RatingByRequester
	case actor.DriverID != "" && actor.DriverID == o.DriverID:
		side = domain.RatingByDriver
	default:
		return nil, fmt.Errorf("%w: order %s is not yours to rate", apperr.ErrForbidden, o.ID)
	}
	if o.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: order %s is %s", apperr.ErrInvalidTransition, o.ID, o.Status)
	}

	now := s.now()
	entry := domain.RatingEntry{Score: in.Score, Comment: comment, At: now}
	ok, err := s.orders.AttachRating(ctx, o.ID, side, entry, now)
	if err != nil {
		return nil, fmt.Errorf("rate order %s: %w", o.ID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %s already rated by %s", apperr.ErrConflict, o.ID, side)
	}
	if side == domain.RatingByRequester {
		o.Rating.ByRequester = &entry
	} else {
		o.Rating.ByDriver = &entry
	}
	o.UpdatedAt = now

	payload := ratingPayload{OrderID: o.ID, By: string(side), Score: in.Score, Comment: comment}
	s.notifyParties(o, s.driverAccount(ctx, o.DriverID), events.OrderRated, payload)
	s.bus.PublishAll(events.Supervisory, events.OrderRated, payload)
	return o, nil
}
