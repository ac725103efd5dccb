// Package dispatch is the order lifecycle state machine, driver matching
// and the assignment protocol.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/fare"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/metrics"
)

// Config tunes matching and estimates.
type Config struct {
	SearchRadiusKm   float64
	MaxRadiusKm      float64
	Duration         fare.DurationModel
	OperationTimeout time.Duration
}

// Service coordinates orders, drivers and notifications.
type Service struct {
	orders  orderStore
	drivers driverIndex
	bus     publisher
	fare    *fare.Estimator

	cfg     Config
	logger  logx.Logger
	metrics *metrics.Dispatch
	offers  *offerBook

	now    func() time.Time
	newID  func() string
	suffix func() int
}

// NewService creates a dispatch Service. logger and m may be nil.
func NewService(
	orders orderStore,
	drivers driverIndex,
	bus publisher,
	estimator *fare.Estimator,
	cfg Config,
	logger logx.Logger,
	m *metrics.Dispatch,
) *Service {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	if cfg.SearchRadiusKm <= 0 {
		cfg.SearchRadiusKm = 5
	}
	if cfg.MaxRadiusKm < cfg.SearchRadiusKm {
		cfg.MaxRadiusKm = 50
	}
	if cfg.Duration.AvgSpeedKmh <= 0 {
		cfg.Duration.AvgSpeedKmh = 30
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		orders:  orders,
		drivers: drivers,
		bus:     bus,
		fare:    estimator,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		offers:  newOfferBook(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		suffix:  func() int { return rand.Intn(10000) },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// apply performs the conditional write for o and mirrors it locally.
// Binding a driver or entering a terminal state narrows the tracking
// audience. Entering a terminal state releases the bound driver before
// returning.
func (s *Service) apply(ctx context.Context, o *domain.Order, upd domain.OrderUpdate) error {
	if upd.Status.HasDriver() && upd.DriverID == "" && o.DriverID == "" {
		return fmt.Errorf("%w: order %s cannot enter %s without a driver", apperr.ErrInvalidTransition, o.ID, upd.Status)
	}
	ok, err := s.orders.ConditionalUpdate(ctx, o.ID, o.Status, upd)
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.ID, err)
	}
	if !ok {
		s.metrics.Conflict()
		return fmt.Errorf("%w: order %s is no longer %s", apperr.ErrConflict, o.ID, o.Status)
	}

	prev := o.Status
	upd.Apply(o)
	s.metrics.Transition(string(prev), string(upd.Status))

	if upd.DriverID != "" || upd.Status.Terminal() {
		s.pruneTrackers(o)
	}
	if upd.Status.Terminal() && o.DriverID != "" {
		s.releaseDriver(ctx, o.DriverID, o.ID)
	}
	return nil
}

func (s *Service) releaseDriver(ctx context.Context, driverID, orderID string) {
	if err := s.drivers.Release(ctx, driverID, orderID); err != nil {
		s.logger.Error("driver release failed",
			logx.String("driver_id", driverID),
			logx.String("order_id", orderID),
			logx.Any("err", err),
		)
	}
}

func (s *Service) entry(actor domain.Actor, status domain.OrderStatus, at time.Time, note string) domain.TimelineEntry {
	return domain.TimelineEntry{
		Status:    status,
		At:        at,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		Note:      note,
	}
}

// driverAccount resolves the account topic owner of a driver. Empty when unknown.
func (s *Service) driverAccount(ctx context.Context, driverID string) string {
	if driverID == "" {
		return ""
	}
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("driver lookup failed", logx.String("driver_id", driverID), logx.Any("err", err))
		}
		return ""
	}
	return d.AccountID
}

// notifyParties publishes event to the requester and, if known, the bound driver.
func (s *Service) notifyParties(o *domain.Order, driverAccount, event string, data any) {
	s.bus.Publish(events.UserTopic(o.RequesterID), event, data)
	if driverAccount != "" && driverAccount != o.RequesterID {
		s.bus.Publish(events.UserTopic(driverAccount), event, data)
	}
}

func (s *Service) getOrder(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", apperr.ErrInvalid)
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}
