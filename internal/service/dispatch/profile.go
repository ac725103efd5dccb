package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

const (
	maxNameLen = 100

	nearbyOrdersRadiusKm = 5
	nearbyOrdersLimit    = 10
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// DriverProfileInput is the editable part of a driver profile. Empty
// fields keep their stored value.
type DriverProfileInput struct {
	Name    string
	Phone   string
	Vehicle *domain.Vehicle
}

// UpdateDriverProfile stores the calling driver's name, phone and vehicle.
func (s *Service) UpdateDriverProfile(ctx context.Context, actor domain.Actor, in DriverProfileInput) (*domain.Driver, error) {
	if err := authz.Require(actor, authz.ManageProfile); err != nil {
		return nil, err
	}
	if actor.DriverID == "" {
		return nil, fmt.Errorf("%w: actor has no driver profile", apperr.ErrForbidden)
	}
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	switch {
	case name == "" && phone == "" && in.Vehicle == nil:
		return nil, fmt.Errorf("%w: nothing to update", apperr.ErrInvalid)
	case len(name) > maxNameLen:
		return nil, fmt.Errorf("%w: name longer than %d", apperr.ErrInvalid, maxNameLen)
	case phone != "" && !phonePattern.MatchString(phone):
		return nil, fmt.Errorf("%w: malformed phone number", apperr.ErrInvalid)
	}
	var vehicle *domain.Vehicle
	if in.Vehicle != nil {
		v := *in.Vehicle
		v.PlateNumber = strings.ToUpper(strings.TrimSpace(v.PlateNumber))
		if err := v.Validate(s.now()); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
		}
		vehicle = &v
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.drivers.Register(ctx, domain.Driver{
		ID:        actor.DriverID,
		AccountID: actor.UserID,
		Name:      name,
		Phone:     phone,
		Vehicle:   vehicle,
	})
	if err != nil {
		return nil, fmt.Errorf("register driver %s: %w", actor.DriverID, err)
	}
	s.logger.Info("driver profile updated",
		logx.String("driver_id", actor.DriverID),
		logx.Any("vehicle", vehicle != nil),
	)
	return s.drivers.Get(ctx, actor.DriverID)
}

// DriverProfile returns the calling driver's stored record.
func (s *Service) DriverProfile(ctx context.Context, actor domain.Actor) (*domain.Driver, error) {
	if err := authz.Require(actor, authz.ManageProfile); err != nil {
		return nil, err
	}
	if actor.DriverID == "" {
		return nil, fmt.Errorf("%w: actor has no driver profile", apperr.ErrForbidden)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.drivers.Get(ctx, actor.DriverID)
}

// NearbyOrder is an open order with the distance to its pickup.
type NearbyOrder struct {
	Order      *domain.Order
	DistanceKm float64
}

// NearbyOrders lists pending orders whose pickup is within radiusKm of at,
// nearest first. A nil at falls back to the driver's last known position.
// Only online, available drivers may browse.
func (s *Service) NearbyOrders(ctx context.Context, actor domain.Actor, at *domain.Point, radiusKm float64) ([]NearbyOrder, error) {
	if err := authz.Require(actor, authz.AcceptOrder); err != nil {
		return nil, err
	}
	if actor.DriverID == "" {
		return nil, fmt.Errorf("%w: actor has no driver profile", apperr.ErrForbidden)
	}
	if radiusKm == 0 {
		radiusKm = nearbyOrdersRadiusKm
	}
	if radiusKm < 0 || radiusKm > s.cfg.MaxRadiusKm || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("%w: radius must be within (0, %v] km", apperr.ErrInvalid, s.cfg.MaxRadiusKm)
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
	if !d.IsOnline || !d.IsAvailable {
		return nil, fmt.Errorf("%w: driver %s is offline or busy", apperr.ErrDriverUnavailable, d.ID)
	}

	var p domain.Point
	switch {
	case at != nil:
		p = *at
	case d.Position != nil:
		p = *d.Position
	default:
		return nil, fmt.Errorf("%w: position is unknown, pass lat and lon", apperr.ErrInvalid)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}

	ids, err := s.orders.ListPendingNear(ctx, p, radiusKm, nearbyOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("list nearby orders: %w", err)
	}
	out := make([]NearbyOrder, 0, len(ids))
	for _, id := range ids {
		o, err := s.orders.Get(ctx, id)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if o.Status != domain.StatusPending {
			continue
		}
		out = append(out, NearbyOrder{Order: o, DistanceKm: domain.Haversine(p, o.Pickup.Point)})
	}
	return out, nil
}
