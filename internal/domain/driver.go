package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCommissionRate is the percentage kept by the platform.
const DefaultCommissionRate = 20.0

// Driver is the dispatch-relevant view of a driver.
type Driver struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"accountId"`
	Name           string    `json:"name,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Vehicle        *Vehicle  `json:"vehicle,omitempty"`
	IsOnline       bool      `json:"isOnline"`
	IsAvailable    bool      `json:"isAvailable"`
	Position       *Point    `json:"position,omitempty"`
	PositionAt     time.Time `json:"positionAt,omitempty"`
	CommissionRate float64   `json:"commissionRate"`
	ActiveOrderID  string    `json:"activeOrderId,omitempty"`
}

// Eligible reports whether the driver may receive new offers.
// maxAge <= 0 disables the freshness check.
func (d *Driver) Eligible(now time.Time, maxAge time.Duration) bool {
	if d == nil || !d.IsOnline || !d.IsAvailable || d.Position == nil {
		return false
	}
	if maxAge > 0 && now.Sub(d.PositionAt) > maxAge {
		return false
	}
	return true
}

// DriverRef is a matching result.
type DriverRef struct {
	DriverID   string    `json:"driverId"`
	AccountID  string    `json:"accountId"`
	DistanceKm float64   `json:"distanceKm"`
	PositionAt time.Time `json:"positionAt"`
}

// MinVehicleYear is the oldest model year accepted for service.
const MinVehicleYear = 1990

// Vehicle is the car a driver serves orders with.
type Vehicle struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	Color       string `json:"color"`
	PlateNumber string `json:"plateNumber"`
	Year        int    `json:"year"`
}

// Validate requires every field and a model year in [MinVehicleYear, now].
func (v Vehicle) Validate(now time.Time) error {
	for name, val := range map[string]string{
		"make":        v.Make,
		"model":       v.Model,
		"color":       v.Color,
		"plateNumber": v.PlateNumber,
	} {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("vehicle %s is required", name)
		}
	}
	if v.Year < MinVehicleYear || v.Year > now.Year() {
		return fmt.Errorf("vehicle year must be within %d..%d", MinVehicleYear, now.Year())
	}
	return nil
}

// DriverProfile is the public info shown to a requester once assigned.
type DriverProfile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Vehicle  *Vehicle `json:"vehicle,omitempty"`
	Position *Point   `json:"position,omitempty"`
}

// Profile returns the public part of d.
func (d *Driver) Profile() DriverProfile {
	return DriverProfile{ID: d.ID, Name: d.Name, Phone: d.Phone, Vehicle: d.Vehicle, Position: d.Position}
}
