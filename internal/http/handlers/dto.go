package handlers

import (
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
)

type locationDTO struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Address      string  `json:"address"`
	Instructions string  `json:"instructions,omitempty"`
}

type createOrderRequest struct {
	RequesterID   string        `json:"requesterId,omitempty"`
	Pickup        locationDTO   `json:"pickup"`
	Destination   locationDTO   `json:"destination"`
	Stops         []locationDTO `json:"stops,omitempty"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	ManualFare    *float64      `json:"manualFare,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	ScheduledAt   *time.Time    `json:"scheduledAt,omitempty"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type assignRequest struct {
	DriverID string `json:"driverId"`
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type rateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type broadcastRequest struct {
	RadiusKm float64 `json:"radiusKm"`
}

type locationRequest struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Address string   `json:"address,omitempty"`
}

type driverStatusRequest struct {
	IsOnline    *bool `json:"isOnline"`
	IsAvailable *bool `json:"isAvailable,omitempty"`
}

type profileRequest struct {
	Name    string          `json:"name,omitempty"`
	Phone   string          `json:"phone,omitempty"`
	Vehicle *domain.Vehicle `json:"vehicle,omitempty"`
}

type orderDTO struct {
	ID                 string                 `json:"id"`
	Number             string                 `json:"orderNumber"`
	RequesterID        string                 `json:"requesterId"`
	DriverID           string                 `json:"driverId,omitempty"`
	Status             string                 `json:"status"`
	Pickup             locationDTO            `json:"pickup"`
	Destination        locationDTO            `json:"destination"`
	Stops              []locationDTO          `json:"stops,omitempty"`
	DistanceKm         float64                `json:"estimatedDistanceKm"`
	DurationMin        int                    `json:"estimatedDurationMin"`
	Fare               domain.Fare            `json:"fare"`
	Payment            domain.Payment         `json:"payment"`
	Timeline           []domain.TimelineEntry `json:"timeline"`
	CancelledBy        string                 `json:"cancelledBy,omitempty"`
	CancellationReason string                 `json:"cancellationReason,omitempty"`
	Rating             *domain.Rating         `json:"rating,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	ScheduledAt        *time.Time             `json:"scheduledAt,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

type createOrderResponse struct {
	Order    orderDTO                `json:"order"`
	Dispatch dispatch.DispatchReport `json:"dispatch"`
}

type nearbyResponse struct {
	Count   int                `json:"count"`
	Drivers []domain.DriverRef `json:"drivers"`
}

type nearbyOrderDTO struct {
	Order      orderDTO `json:"order"`
	DistanceKm float64  `json:"distanceKm"`
}

type nearbyOrdersResponse struct {
	Count  int              `json:"count"`
	Orders []nearbyOrderDTO `json:"orders"`
}
