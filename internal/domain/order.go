package domain

import (
	"fmt"
	"time"
)

// PaymentMethod is how the requester pays.
type PaymentMethod string

// Payment methods.
const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentOnline PaymentMethod = "online"
)

// Valid checks if the PaymentMethod is known.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard || m == PaymentOnline
}

// PaymentStatus is stored as-is; capture happens elsewhere.
type PaymentStatus string

// Payment statuses.
const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment holds payment state attached to an order.
type Payment struct {
	Method         PaymentMethod `json:"method"`
	Status         PaymentStatus `json:"status"`
	TransactionRef string        `json:"transactionRef,omitempty"`
}

// Fare is the price breakdown of an order.
type Fare struct {
	Base         float64  `json:"base"`
	DistanceFare float64  `json:"distanceFare"`
	TimeFare     float64  `json:"timeFare"`
	Total        float64  `json:"total"`
	ManualTotal  *float64 `json:"manualTotal,omitempty"`
	Discount     float64  `json:"discount"`
	Currency     string   `json:"currency"`
}

// CancelledBy names the side that cancelled an order.
type CancelledBy string

// Cancellation sides.
const (
	CancelledByRequester  CancelledBy = "requester"
	CancelledByDriver     CancelledBy = "driver"
	CancelledBySupervisor CancelledBy = "supervisor"
	CancelledBySystem     CancelledBy = "system"
)

// TimelineEntry is one append-only record of a status change.
type TimelineEntry struct {
	Status    OrderStatus `json:"status"`
	At        time.Time   `json:"at"`
	ActorID   string      `json:"actorId"`
	ActorRole Role        `json:"actorRole"`
	Note      string      `json:"note,omitempty"`
}

// Rating is feedback attached to a completed order.
type Rating struct {
	ByRequester *RatingEntry `json:"byRequester,omitempty"`
	ByDriver    *RatingEntry `json:"byDriver,omitempty"`
}

// RatingEntry is a single score with an optional comment.
type RatingEntry struct {
	Score   int       `json:"score"`
	Comment string    `json:"comment,omitempty"`
	At      time.Time `json:"at"`
}

// Order is a single transportation request.
type Order struct {
	ID                 string
	Number             string
	RequesterID        string
	DriverID           string
	Pickup             Location
	Destination        Location
	Stops              []Location
	DistanceKm         float64
	DurationMin        int
	Fare               Fare
	Payment            Payment
	Status             OrderStatus
	Timeline           []TimelineEntry
	CancelledBy        CancelledBy
	CancellationReason string
	Rating             Rating
	Notes              string
	ScheduledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Route returns pickup, stops and destination as an ordered list of points.
func (o *Order) Route() []Point {
	pts := make([]Point, 0, len(o.Stops)+2)
	pts = append(pts, o.Pickup.Point)
	for _, s := range o.Stops {
		pts = append(pts, s.Point)
	}
	return append(pts, o.Destination.Point)
}

// Clone returns a deep copy safe to hand out of a store.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Stops = append([]Location(nil), o.Stops...)
	cp.Timeline = append([]TimelineEntry(nil), o.Timeline...)
	if o.Fare.ManualTotal != nil {
		v := *o.Fare.ManualTotal
		cp.Fare.ManualTotal = &v
	}
	if o.ScheduledAt != nil {
		v := *o.ScheduledAt
		cp.ScheduledAt = &v
	}
	if o.Rating.ByRequester != nil {
		v := *o.Rating.ByRequester
		cp.Rating.ByRequester = &v
	}
	if o.Rating.ByDriver != nil {
		v := *o.Rating.ByDriver
		cp.Rating.ByDriver = &v
	}
	return &cp
}

// OrderUpdate carries the fields written by one conditional transition.
// Empty DriverID and CancelledBy mean "do not change".
type OrderUpdate struct {
	Status             OrderStatus
	DriverID           string
	CancelledBy        CancelledBy
	CancellationReason string
	Entry              TimelineEntry
	UpdatedAt          time.Time
}

// Apply writes the update onto o. Used by in-memory stores and tests.
func (u OrderUpdate) Apply(o *Order) {
	o.Status = u.Status
	if u.DriverID != "" {
		o.DriverID = u.DriverID
	}
	if u.CancelledBy != "" {
		o.CancelledBy = u.CancelledBy
		o.CancellationReason = u.CancellationReason
	}
	o.Timeline = append(o.Timeline, u.Entry)
	o.UpdatedAt = u.UpdatedAt
}

// RatingSide is which party leaves a rating.
type RatingSide string

// Rating sides.
const (
	RatingByRequester RatingSide = "requester"
	RatingByDriver    RatingSide = "driver"
)

// FormatOrderNumber renders the human-readable order number.
func FormatOrderNumber(day time.Time, suffix int) string {
	return fmt.Sprintf("ORD-%s-%04d", day.UTC().Format("20060102"), suffix%10000)
}
