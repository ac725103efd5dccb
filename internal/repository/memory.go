package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

// MemoryOrders is an in-process order store with the same conditional
// update semantics as OrderRepo.
type MemoryOrders struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	numbers map[string]struct{}
}

// NewMemoryOrders creates an empty store.
func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{
		orders:  make(map[string]*domain.Order),
		numbers: make(map[string]struct{}),
	}
}

// Create stores a copy of o.
func (m *MemoryOrders) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("order id %s: %w", o.ID, ErrDuplicate)
	}
	if _, ok := m.numbers[o.Number]; ok {
		return fmt.Errorf("order number %s: %w", o.Number, ErrDuplicate)
	}
	m.orders[o.ID] = o.Clone()
	m.numbers[o.Number] = struct{}{}
	return nil
}

// Get returns a copy of the order.
func (m *MemoryOrders) Get(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
	}
	return o.Clone(), nil
}

// ConditionalUpdate applies upd only if the order is in expected status.
// A status that needs a driver never applies to an order without one.
func (m *MemoryOrders) ConditionalUpdate(_ context.Context, id string, expected domain.OrderStatus, upd domain.OrderUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.Status != expected {
		return false, nil
	}
	if upd.Status.HasDriver() && upd.DriverID == "" && o.DriverID == "" {
		return false, nil
	}
	upd.Apply(o)
	return true, nil
}

// AttachRating stores a rating for side on a completed order, once.
func (m *MemoryOrders) AttachRating(_ context.Context, id string, side domain.RatingSide, e domain.RatingEntry, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.Status != domain.StatusCompleted {
		return false, nil
	}
	slot := &o.Rating.ByRequester
	if side == domain.RatingByDriver {
		slot = &o.Rating.ByDriver
	}
	if *slot != nil {
		return false, nil
	}
	entry := e
	*slot = &entry
	o.UpdatedAt = at
	return true, nil
}

// ListPendingBefore returns ids of pending orders created before t, oldest first.
func (m *MemoryOrders) ListPendingBefore(_ context.Context, t time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []*domain.Order
	for _, o := range m.orders {
		if o.Status == domain.StatusPending && o.CreatedAt.Before(t) {
			found = append(found, o)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	ids := make([]string, 0, len(found))
	for _, o := range found {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

// ListPendingNear returns ids of pending orders whose pickup lies within
// radiusKm of p, nearest first.
func (m *MemoryOrders) ListPendingNear(_ context.Context, p domain.Point, radiusKm float64, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cs []pickupCandidate
	for _, o := range m.orders {
		if o.Status == domain.StatusPending {
			cs = append(cs, pickupCandidate{id: o.ID, pickup: o.Pickup.Point, created: o.CreatedAt})
		}
	}
	return closest(p, radiusKm, limit, cs), nil
}
