package fare

import "math"

// DurationModel estimates trip duration from straight-line distance.
type DurationModel struct {
	AvgSpeedKmh float64
	MinMinutes  int
}

// Minutes returns the estimated duration, never below MinMinutes.
func (m DurationModel) Minutes(distanceKm float64) int {
	speed := m.AvgSpeedKmh
	if speed <= 0 {
		speed = 30
	}
	mins := int(math.Round(distanceKm / speed * 60))
	if mins < m.MinMinutes {
		return m.MinMinutes
	}
	return mins
}
