package dispatch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/fare"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/repository"
)

const (
	maxStops         = 10
	maxNoteLen       = 500
	numberAttempts   = 5
	strategyNearby   = "nearby"
	strategyPool     = "pool"
	scopeNearby      = "nearby"
	scopeDriversPool = "pool"
)

// CreateOrderInput is a new order request. RequesterID, ManualFare and
// ScheduledAt are honoured only for supervisors.
type CreateOrderInput struct {
	RequesterID   string
	Pickup        domain.Location
	Destination   domain.Location
	Stops         []domain.Location
	PaymentMethod domain.PaymentMethod
	ManualFare    *float64
	Notes         string
	ScheduledAt   *time.Time
}

// DispatchReport describes how an offer was fanned out.
type DispatchReport struct {
	Strategy    string  `json:"strategy"`
	RadiusKm    float64 `json:"radiusKm"`
	Candidates  int     `json:"candidates"`
	Delivered   int     `json:"delivered"`
	Unreachable bool    `json:"unreachable"`
}

// CreateResult is the created order and its dispatch outcome.
type CreateResult struct {
	Order    *domain.Order
	Dispatch DispatchReport
}

// CreateOrder validates, prices and stores a pending order, then offers it
// to nearby drivers or, when none are nearby, to the whole pool.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (*CreateResult, error) {
	if err := authz.Require(actor, authz.CreateOrder); err != nil {
		return nil, err
	}
	requester := strings.TrimSpace(in.RequesterID)
	onBehalf := (requester != "" && requester != actor.UserID) || in.ManualFare != nil || in.ScheduledAt != nil
	if onBehalf {
		if err := authz.Require(actor, authz.CreateOrderOnBehalf); err != nil {
			return nil, err
		}
	}
	if requester == "" {
		requester = actor.UserID
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	o := &domain.Order{
		RequesterID: requester,
		Pickup:      trimLocation(in.Pickup),
		Destination: trimLocation(in.Destination),
		Status:      domain.StatusPending,
		Notes:       strings.TrimSpace(in.Notes),
		ScheduledAt: in.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, st := range in.Stops {
		o.Stops = append(o.Stops, trimLocation(st))
	}
	o.DistanceKm = math.Round(domain.RouteDistance(o.Route()...)*100) / 100
	o.DurationMin = s.cfg.Duration.Minutes(o.DistanceKm)
	o.Fare = s.fare.Estimate(o.DistanceKm, o.DurationMin)
	if in.ManualFare != nil {
		f, err := fare.ApplyManual(o.Fare, *in.ManualFare)
		if err != nil {
			return nil, err
		}
		o.Fare = f
	}
	method := in.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}
	o.Payment = domain.Payment{Method: method, Status: domain.PaymentPending}
	o.Timeline = []domain.TimelineEntry{s.entry(actor, domain.StatusPending, now, "")}

	if err := s.store(ctx, o); err != nil {
		return nil, err
	}
	s.metrics.OrderCreated()

	s.logger.Info("order created",
		logx.String("event", "order_created"),
		logx.String("order_id", o.ID),
		logx.String("order_number", o.Number),
		logx.String("requester_id", o.RequesterID),
		logx.Any("distance_km", o.DistanceKm),
		logx.Any("fare_total", o.Fare.Total),
	)

	report := s.dispatch(ctx, o, s.cfg.SearchRadiusKm)

	summary := summarize(o)
	s.bus.Publish(events.UserTopic(o.RequesterID), events.OrderCreated, summary)
	s.bus.PublishAll(events.Supervisory, events.NewOrderCreated, summary)

	return &CreateResult{Order: o, Dispatch: report}, nil
}

// store persists o, regenerating the order number on collisions.
func (s *Service) store(ctx context.Context, o *domain.Order) error {
	var err error
	for attempt := 1; attempt <= numberAttempts; attempt++ {
		o.ID = s.newID()
		o.Number = domain.FormatOrderNumber(o.CreatedAt, s.suffix())
		err = s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !repository.IsDuplicate(err) {
			return fmt.Errorf("create order: %w", err)
		}
		s.logger.Warn("order number collision", logx.String("order_number", o.Number), logx.Int("attempt", attempt))
	}
	return fmt.Errorf("create order after %d attempts: %w", numberAttempts, err)
}

// dispatch offers o to drivers within radiusKm of the pickup, falling back
// to the whole driver pool when nobody is nearby.
func (s *Service) dispatch(ctx context.Context, o *domain.Order, radiusKm float64) DispatchReport {
	report := DispatchReport{RadiusKm: radiusKm}
	summary := summarize(o)

	refs, err := s.drivers.FindNearby(ctx, o.Pickup.Point, radiusKm, s.now())
	if err != nil {
		s.logger.Error("nearby search failed, broadcasting to pool",
			logx.String("order_id", o.ID),
			logx.Any("err", err),
		)
		refs = nil
	}

	if len(refs) > 0 {
		report.Strategy = strategyNearby
		report.Candidates = len(refs)
		accounts := make([]string, 0, len(refs))
		for _, ref := range refs {
			if ref.AccountID == "" {
				continue
			}
			accounts = append(accounts, ref.AccountID)
			report.Delivered += s.bus.Publish(events.UserTopic(ref.AccountID), events.NewOrderAvailable, offerPayload{
				Order:          summary,
				DistanceToKm:   math.Round(ref.DistanceKm*100) / 100,
				BroadcastScope: scopeNearby,
			})
		}
		s.offers.record(o.ID, offer{accounts: accounts})
		s.logger.Info("order offered to nearby drivers",
			logx.String("order_id", o.ID),
			logx.Int("candidates", len(refs)),
			logx.Int("delivered", report.Delivered),
		)
		return report
	}

	report.Strategy = strategyPool
	s.metrics.PoolBroadcast()
	online, err := s.drivers.OnlineCount(ctx)
	if err != nil {
		s.logger.Warn("online driver count failed", logx.Any("err", err))
	}
	report.Candidates = online
	report.Delivered = s.bus.Publish(events.TopicDrivers, events.NewOrderAvailable, offerPayload{
		Order:          summary,
		BroadcastScope: scopeDriversPool,
	})
	s.offers.record(o.ID, offer{pool: true})
	if err == nil && online == 0 {
		report.Unreachable = true
		s.metrics.Unreachable()
	}

	s.logger.Warn("no nearby drivers, broadcasting to pool",
		logx.String("order_id", o.ID),
		logx.Any("radius_km", radiusKm),
		logx.Int("online", online),
		logx.Int("delivered", report.Delivered),
	)
	return report
}

// Rebroadcast re-runs matching for an unassigned order, typically with a
// wider radius. It returns ErrUnreachable when no driver is online.
func (s *Service) Rebroadcast(ctx context.Context, actor domain.Actor, orderID string, radiusKm float64) (DispatchReport, error) {
	if err := authz.Require(actor, authz.RebroadcastOrder); err != nil {
		return DispatchReport{}, err
	}
	if radiusKm == 0 {
		radiusKm = s.cfg.SearchRadiusKm
	}
	if radiusKm < 0 || radiusKm > s.cfg.MaxRadiusKm || math.IsNaN(radiusKm) {
		return DispatchReport{}, fmt.Errorf("%w: radius must be within (0, %v] km", apperr.ErrInvalid, s.cfg.MaxRadiusKm)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return DispatchReport{}, err
	}
	if !o.Status.Assignable() {
		return DispatchReport{}, fmt.Errorf("%w: order %s is %s", apperr.ErrInvalidTransition, o.ID, o.Status)
	}

	report := s.dispatch(ctx, o, radiusKm)
	if report.Unreachable {
		return report, fmt.Errorf("%w: order %s stays %s", apperr.ErrUnreachable, o.ID, o.Status)
	}
	return report, nil
}

func validateCreate(in CreateOrderInput) error {
	if err := validateLocation("pickup", in.Pickup); err != nil {
		return err
	}
	if err := validateLocation("destination", in.Destination); err != nil {
		return err
	}
	if len(in.Stops) > maxStops {
		return fmt.Errorf("%w: at most %d stops", apperr.ErrInvalid, maxStops)
	}
	for i, st := range in.Stops {
		if err := validateLocation(fmt.Sprintf("stops[%d]", i), st); err != nil {
			return err
		}
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", apperr.ErrInvalid, in.PaymentMethod)
	}
	if len(in.Notes) > maxNoteLen {
		return fmt.Errorf("%w: notes longer than %d", apperr.ErrInvalid, maxNoteLen)
	}
	return nil
}

func validateLocation(field string, l domain.Location) error {
	if err := l.Point.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrInvalid, field, err)
	}
	if strings.TrimSpace(l.Address) == "" {
		return fmt.Errorf("%w: %s address is required", apperr.ErrInvalid, field)
	}
	return nil
}

func trimLocation(l domain.Location) domain.Location {
	l.Address = strings.TrimSpace(l.Address)
	l.Instructions = strings.TrimSpace(l.Instructions)
	return l
}
