package geo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

// MemoryIndex is a lock-owned driver liveness table for a single instance.
type MemoryIndex struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver
	maxAge  time.Duration
}

// NewMemoryIndex creates an empty index. maxAge <= 0 disables position freshness checks.
func NewMemoryIndex(maxAge time.Duration) *MemoryIndex {
	return &MemoryIndex{
		drivers: make(map[string]*domain.Driver),
		maxAge:  maxAge,
	}
}

// Register upserts the driver profile keeping current liveness state.
func (m *MemoryIndex) Register(_ context.Context, d domain.Driver) error {
	if d.ID == "" {
		return fmt.Errorf("%w: driver id is required", apperr.ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.entry(d.ID, d.AccountID)
	if d.Name != "" {
		cur.Name = d.Name
	}
	if d.Phone != "" {
		cur.Phone = d.Phone
	}
	if d.CommissionRate > 0 {
		cur.CommissionRate = d.CommissionRate
	}
	if d.Vehicle != nil {
		v := *d.Vehicle
		cur.Vehicle = &v
	}
	return nil
}

// Get returns a snapshot of the driver.
func (m *MemoryIndex) Get(_ context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.drivers[id]
	if !ok {
		return nil, fmt.Errorf("%w: driver %s", apperr.ErrNotFound, id)
	}
	cp := snapshot(d)
	return &cp, nil
}

// SetPresence sets online/available flags. A driver bound to an active
// order cannot become available.
func (m *MemoryIndex) SetPresence(_ context.Context, p Presence) (*domain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.entry(p.DriverID, p.AccountID)
	available := p.Online && p.Available
	if available && d.ActiveOrderID != "" {
		return nil, fmt.Errorf("%w: driver is bound to order %s", apperr.ErrConflict, d.ActiveOrderID)
	}
	d.IsOnline = p.Online
	d.IsAvailable = available
	cp := snapshot(d)
	return &cp, nil
}

// UpdatePosition records the latest reported point.
func (m *MemoryIndex) UpdatePosition(_ context.Context, driverID, accountID string, p domain.Point, at time.Time) (*domain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.entry(driverID, accountID)
	if !d.PositionAt.IsZero() && at.Before(d.PositionAt) {
		cp := snapshot(d)
		return &cp, nil
	}
	pos := p
	d.Position = &pos
	d.PositionAt = at
	cp := snapshot(d)
	return &cp, nil
}

// Disconnect marks the driver offline and unavailable. The active order
// binding is kept so that release still applies when the trip ends.
func (m *MemoryIndex) Disconnect(_ context.Context, driverID string) (*domain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drivers[driverID]
	if !ok {
		return nil, fmt.Errorf("%w: driver %s", apperr.ErrNotFound, driverID)
	}
	d.IsOnline = false
	d.IsAvailable = false
	cp := snapshot(d)
	return &cp, nil
}

// Reserve flips isAvailable from true to false for orderID.
// It returns false when the driver was not online and available.
func (m *MemoryIndex) Reserve(_ context.Context, driverID, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drivers[driverID]
	if !ok || !d.IsOnline || !d.IsAvailable {
		return false, nil
	}
	d.IsAvailable = false
	d.ActiveOrderID = orderID
	return true, nil
}

// Release returns the driver to the pool if it is held for orderID. An
// empty orderID releases whatever the driver holds. Availability follows
// isOnline.
func (m *MemoryIndex) Release(_ context.Context, driverID, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drivers[driverID]
	if !ok {
		return nil
	}
	if orderID != "" && d.ActiveOrderID != orderID {
		return nil
	}
	d.ActiveOrderID = ""
	d.IsAvailable = d.IsOnline
	return nil
}

// FindNearby scans eligible drivers within radiusKm of p.
func (m *MemoryIndex) FindNearby(_ context.Context, p domain.Point, radiusKm float64, now time.Time) ([]domain.DriverRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]domain.DriverRef, 0)
	for _, d := range m.drivers {
		if ref, ok := match(d, p, radiusKm, now, m.maxAge); ok {
			refs = append(refs, ref)
		}
	}
	sortRefs(refs)
	return refs, nil
}

// OnlineCount returns the number of online drivers.
func (m *MemoryIndex) OnlineCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, d := range m.drivers {
		if d.IsOnline {
			n++
		}
	}
	return n, nil
}

// entry returns the row for id, creating it when missing. Caller holds mu.
func (m *MemoryIndex) entry(id, accountID string) *domain.Driver {
	d, ok := m.drivers[id]
	if !ok {
		d = &domain.Driver{ID: id, CommissionRate: domain.DefaultCommissionRate}
		m.drivers[id] = d
	}
	if accountID != "" {
		d.AccountID = accountID
	}
	return d
}

func snapshot(d *domain.Driver) domain.Driver {
	cp := *d
	if d.Position != nil {
		pos := *d.Position
		cp.Position = &pos
	}
	if d.Vehicle != nil {
		v := *d.Vehicle
		cp.Vehicle = &v
	}
	return cp
}
