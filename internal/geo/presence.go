// Package geo keeps driver liveness and answers nearby-driver queries.
package geo

import (
	"sort"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

// Presence is a requested change of a driver's online/available flags.
// Available is forced to false when Online is false.
type Presence struct {
	DriverID  string
	AccountID string
	Online    bool
	Available bool
}

// sortRefs orders by ascending distance, newer position first on ties.
func sortRefs(refs []domain.DriverRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].DistanceKm != refs[j].DistanceKm {
			return refs[i].DistanceKm < refs[j].DistanceKm
		}
		return refs[i].PositionAt.After(refs[j].PositionAt)
	})
}

func match(d *domain.Driver, p domain.Point, radiusKm float64, now time.Time, maxAge time.Duration) (domain.DriverRef, bool) {
	if !d.Eligible(now, maxAge) {
		return domain.DriverRef{}, false
	}
	dist := domain.Haversine(p, *d.Position)
	if dist > radiusKm {
		return domain.DriverRef{}, false
	}
	return domain.DriverRef{
		DriverID:   d.ID,
		AccountID:  d.AccountID,
		DistanceKm: dist,
		PositionAt: d.PositionAt,
	}, true
}
