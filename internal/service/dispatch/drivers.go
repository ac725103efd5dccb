package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/geo"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// PositionReport is a driver location sample from any ingestion path.
type PositionReport struct {
	DriverID  string
	AccountID string
	Point     domain.Point
	Address   string
	At        time.Time
}

// UpdateDriverLocation records the calling driver's position and mirrors it
// to supervisors and, while on a trip, to the order tracking topic.
func (s *Service) UpdateDriverLocation(ctx context.Context, actor domain.Actor, p domain.Point, address string) (*domain.Driver, error) {
	if err := authz.Require(actor, authz.UpdateLocation); err != nil {
		return nil, err
	}
	if actor.DriverID == "" {
		return nil, fmt.Errorf("%w: actor has no driver profile", apperr.ErrForbidden)
	}
	return s.RecordPosition(ctx, PositionReport{
		DriverID:  actor.DriverID,
		AccountID: actor.UserID,
		Point:     p,
		Address:   address,
		At:        s.now(),
	})
}

// RecordPosition stores a position sample. Samples older than the stored
// one are accepted but do not move the driver.
func (s *Service) RecordPosition(ctx context.Context, r PositionReport) (*domain.Driver, error) {
	if r.DriverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", apperr.ErrInvalid)
	}
	if err := r.Point.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if r.At.IsZero() {
		r.At = s.now()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.drivers.UpdatePosition(ctx, r.DriverID, r.AccountID, r.Point, r.At)
	if err != nil {
		return nil, fmt.Errorf("update position of %s: %w", r.DriverID, err)
	}
	if d.PositionAt.After(r.At) {
		return d, nil
	}

	payload := driverState(d, r.At)
	payload.Address = r.Address
	s.bus.Publish(events.TopicOperators, events.DriverLocationUpdated, payload)
	s.bus.Publish(events.TopicDispatchers, events.DriverLocationUpdated, payload)
	if d.ActiveOrderID != "" {
		s.bus.Publish(events.OrderTopic(d.ActiveOrderID), events.DriverLocation, payload)
	}
	return d, nil
}

// SetDriverOnlineStatus changes the calling driver's presence. available
// defaults to online when nil.
func (s *Service) SetDriverOnlineStatus(ctx context.Context, actor domain.Actor, online bool, available *bool) (*domain.Driver, error) {
	if err := authz.Require(actor, authz.SetOnlineStatus); err != nil {
		return nil, err
	}
	if actor.DriverID == "" {
		return nil, fmt.Errorf("%w: actor has no driver profile", apperr.ErrForbidden)
	}
	avail := online
	if available != nil {
		avail = *available
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.drivers.SetPresence(ctx, geo.Presence{
		DriverID:  actor.DriverID,
		AccountID: actor.UserID,
		Online:    online,
		Available: avail,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("driver status changed",
		logx.String("driver_id", d.ID),
		logx.Any("online", d.IsOnline),
		logx.Any("available", d.IsAvailable),
	)
	s.publishPresence(d)
	return d, nil
}

// DriverConnected marks a driver online when their first session opens.
// A driver still bound to an order comes back online but not available.
func (s *Service) DriverConnected(ctx context.Context, actor domain.Actor) (*domain.Driver, error) {
	if actor.Role != domain.RoleDriver || actor.DriverID == "" {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p := geo.Presence{DriverID: actor.DriverID, AccountID: actor.UserID, Online: true, Available: true}
	d, err := s.drivers.SetPresence(ctx, p)
	if errors.Is(err, apperr.ErrConflict) {
		p.Available = false
		d, err = s.drivers.SetPresence(ctx, p)
	}
	if err != nil {
		return nil, fmt.Errorf("driver %s connect: %w", actor.DriverID, err)
	}
	s.publishPresence(d)
	return d, nil
}

// DriverDisconnected marks a driver offline after their last session closed.
func (s *Service) DriverDisconnected(ctx context.Context, actor domain.Actor) {
	if actor.Role != domain.RoleDriver || actor.DriverID == "" {
		return
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.drivers.Disconnect(ctx, actor.DriverID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("driver disconnect failed", logx.String("driver_id", actor.DriverID), logx.Any("err", err))
		}
		return
	}
	s.publishPresence(d)
}

func (s *Service) publishPresence(d *domain.Driver) {
	payload := driverState(d, s.now())
	s.bus.PublishAll(events.Supervisory, events.DriverStatusUpdated, payload)
	if !d.IsOnline {
		s.bus.PublishAll(events.Supervisory, events.DriverOffline, payload)
	}
}

// NearbyDrivers lists eligible drivers around p, closest first.
func (s *Service) NearbyDrivers(ctx context.Context, actor domain.Actor, p domain.Point, radiusKm float64) ([]domain.DriverRef, error) {
	if err := authz.Require(actor, authz.FindDrivers); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if radiusKm == 0 {
		radiusKm = s.cfg.SearchRadiusKm
	}
	if radiusKm < 0 || radiusKm > s.cfg.MaxRadiusKm || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("%w: radius must be within (0, %v] km", apperr.ErrInvalid, s.cfg.MaxRadiusKm)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	refs, err := s.drivers.FindNearby(ctx, p, radiusKm, s.now())
	if err != nil {
		return nil, fmt.Errorf("find nearby drivers: %w", err)
	}
	return refs, nil
}
