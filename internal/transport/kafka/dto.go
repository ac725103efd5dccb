package kafka

import (
	"math"
	"strings"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
)

// LocationDTO is a driver telemetry sample on the locations topic.
type LocationDTO struct {
	DriverID   string    `json:"driver_id"`
	AccountID  string    `json:"account_id,omitempty"`
	Lat        *float64  `json:"lat"`
	Lon        *float64  `json:"lon"`
	Address    string    `json:"address,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ToReport converts a sample into a dispatch position report. A missing
// timestamp falls back to receivedAt; missing coordinates become NaN so the
// report fails validation.
func ToReport(dto LocationDTO, receivedAt time.Time) dispatch.PositionReport {
	r := dispatch.PositionReport{
		DriverID:  strings.TrimSpace(dto.DriverID),
		AccountID: strings.TrimSpace(dto.AccountID),
		Address:   strings.TrimSpace(dto.Address),
		At:        dto.RecordedAt,
	}
	if dto.Lat != nil && dto.Lon != nil {
		r.Point = domain.Point{Lat: *dto.Lat, Lon: *dto.Lon}
	} else {
		r.Point = domain.Point{Lat: math.NaN(), Lon: math.NaN()}
	}
	if r.At.IsZero() {
		r.At = receivedAt
	}
	return r
}
