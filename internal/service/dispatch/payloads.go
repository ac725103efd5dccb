package dispatch

import (
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

// OrderSummary is the order view carried by events.
type OrderSummary struct {
	ID          string            `json:"id"`
	Number      string            `json:"orderNumber"`
	Status      string            `json:"status"`
	RequesterID string            `json:"requesterId"`
	DriverID    string            `json:"driverId,omitempty"`
	Pickup      domain.Location   `json:"pickup"`
	Destination domain.Location   `json:"destination"`
	Stops       []domain.Location `json:"stops,omitempty"`
	DistanceKm  float64           `json:"estimatedDistanceKm"`
	DurationMin int               `json:"estimatedDurationMin"`
	Fare        domain.Fare       `json:"fare"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func summarize(o *domain.Order) OrderSummary {
	return OrderSummary{
		ID:          o.ID,
		Number:      o.Number,
		Status:      string(o.Status),
		RequesterID: o.RequesterID,
		DriverID:    o.DriverID,
		Pickup:      o.Pickup,
		Destination: o.Destination,
		Stops:       o.Stops,
		DistanceKm:  o.DistanceKm,
		DurationMin: o.DurationMin,
		Fare:        o.Fare,
		CreatedAt:   o.CreatedAt,
	}
}

type offerPayload struct {
	Order          OrderSummary `json:"order"`
	DistanceToKm   float64      `json:"distanceToPickupKm,omitempty"`
	BroadcastScope string       `json:"scope"`
}

type assignedPayload struct {
	Order  OrderSummary         `json:"order"`
	Driver domain.DriverProfile `json:"driver"`
}

type statusPayload struct {
	OrderID        string    `json:"orderId"`
	Number         string    `json:"orderNumber"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus"`
	DriverID       string    `json:"driverId,omitempty"`
	At             time.Time `json:"at"`
}

type cancelPayload struct {
	OrderID     string    `json:"orderId"`
	Number      string    `json:"orderNumber"`
	CancelledBy string    `json:"cancelledBy"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

type retractPayload struct {
	OrderID string `json:"orderId"`
	Number  string `json:"orderNumber"`
}

type rejectPayload struct {
	OrderID  string `json:"orderId"`
	DriverID string `json:"driverId"`
	Reason   string `json:"reason,omitempty"`
}

type ratingPayload struct {
	OrderID string `json:"orderId"`
	By      string `json:"by"`
	Score   int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type driverPayload struct {
	DriverID    string    `json:"driverId"`
	Lat         float64   `json:"lat,omitempty"`
	Lon         float64   `json:"lon,omitempty"`
	Address     string    `json:"address,omitempty"`
	IsOnline    bool      `json:"isOnline"`
	IsAvailable bool      `json:"isAvailable"`
	OrderID     string    `json:"orderId,omitempty"`
	At          time.Time `json:"at"`
}

func driverState(d *domain.Driver, at time.Time) driverPayload {
	p := driverPayload{
		DriverID:    d.ID,
		IsOnline:    d.IsOnline,
		IsAvailable: d.IsAvailable,
		OrderID:     d.ActiveOrderID,
		At:          at,
	}
	if d.Position != nil {
		p.Lat, p.Lon = d.Position.Lat, d.Position.Lon
	}
	return p
}
