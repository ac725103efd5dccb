package repository

import (
	"math"
	"sort"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

const kmPerDegree = 111.32

// bbox is a lat/lon rectangle enclosing a search circle.
type bbox struct {
	minLat, maxLat float64
	minLon, maxLon float64
}

// boundsAround returns a box enclosing every point within radiusKm of p.
// The longitude span widens to the full range near the poles and across
// the antimeridian.
func boundsAround(p domain.Point, radiusKm float64) bbox {
	dLat := radiusKm / kmPerDegree
	b := bbox{
		minLat: math.Max(p.Lat-dLat, -90),
		maxLat: math.Min(p.Lat+dLat, 90),
		minLon: -180,
		maxLon: 180,
	}
	cos := math.Cos(p.Lat * math.Pi / 180)
	if cos < 1e-6 {
		return b
	}
	dLon := radiusKm / (kmPerDegree * cos)
	if p.Lon-dLon < -180 || p.Lon+dLon > 180 {
		return b
	}
	b.minLon, b.maxLon = p.Lon-dLon, p.Lon+dLon
	return b
}

type pickupCandidate struct {
	id      string
	pickup  domain.Point
	created time.Time
}

// closest keeps candidates within radiusKm of p and returns their ids,
// nearest first, oldest first on ties.
func closest(p domain.Point, radiusKm float64, limit int, cs []pickupCandidate) []string {
	type hit struct {
		pickupCandidate
		km float64
	}
	hits := make([]hit, 0, len(cs))
	for _, c := range cs {
		if km := domain.Haversine(p, c.pickup); km <= radiusKm {
			hits = append(hits, hit{pickupCandidate: c, km: km})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].km != hits[j].km {
			return hits[i].km < hits[j].km
		}
		return hits[i].created.Before(hits[j].created)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.id)
	}
	return ids
}
