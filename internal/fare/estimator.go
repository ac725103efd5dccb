// Package fare computes order prices from distance and duration.
package fare

import (
	"fmt"
	"math"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

// Rates configures the estimator.
type Rates struct {
	Base      float64
	PerKm     float64
	PerMinute float64
	Currency  string
}

// Estimator is a pure fare calculator.
type Estimator struct {
	rates Rates
}

// NewEstimator creates an Estimator with the given rates.
func NewEstimator(r Rates) *Estimator {
	if r.Currency == "" {
		r.Currency = "AZN"
	}
	return &Estimator{rates: r}
}

// Estimate returns the fare breakdown for a trip.
func (e *Estimator) Estimate(distanceKm float64, durationMin int) domain.Fare {
	base := round2(e.rates.Base)
	dist := round2(distanceKm * e.rates.PerKm)
	tm := round2(float64(durationMin) * e.rates.PerMinute)
	return domain.Fare{
		Base:         base,
		DistanceFare: dist,
		TimeFare:     tm,
		Total:        round2(base + dist + tm),
		Currency:     e.rates.Currency,
	}
}

// ApplyManual makes total the binding fare and records the discount.
func ApplyManual(f domain.Fare, total float64) (domain.Fare, error) {
	if math.IsNaN(total) || total < 0 {
		return f, fmt.Errorf("%w: manual fare must be non-negative", apperr.ErrInvalid)
	}
	manual := round2(total)
	f.Discount = round2(f.Total - manual)
	f.ManualTotal = &manual
	f.Total = manual
	return f, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
