package handlers

import (
	"math"
	"strings"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
)

func (l locationDTO) toModel() domain.Location {
	return domain.Location{
		Point:        domain.Point{Lat: l.Lat, Lon: l.Lon},
		Address:      l.Address,
		Instructions: l.Instructions,
	}
}

func locationToDTO(l domain.Location) locationDTO {
	return locationDTO{Lat: l.Lat, Lon: l.Lon, Address: l.Address, Instructions: l.Instructions}
}

func (r createOrderRequest) toInput() dispatch.CreateOrderInput {
	in := dispatch.CreateOrderInput{
		RequesterID:   r.RequesterID,
		Pickup:        r.Pickup.toModel(),
		Destination:   r.Destination.toModel(),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(r.PaymentMethod))),
		ManualFare:    r.ManualFare,
		Notes:         r.Notes,
		ScheduledAt:   r.ScheduledAt,
	}
	for _, s := range r.Stops {
		in.Stops = append(in.Stops, s.toModel())
	}
	return in
}

func orderToResponse(o *domain.Order) orderDTO {
	dto := orderDTO{
		ID:                 o.ID,
		Number:             o.Number,
		RequesterID:        o.RequesterID,
		DriverID:           o.DriverID,
		Status:             string(o.Status),
		Pickup:             locationToDTO(o.Pickup),
		Destination:        locationToDTO(o.Destination),
		DistanceKm:         o.DistanceKm,
		DurationMin:        o.DurationMin,
		Fare:               o.Fare,
		Payment:            o.Payment,
		Timeline:           o.Timeline,
		CancelledBy:        string(o.CancelledBy),
		CancellationReason: o.CancellationReason,
		Notes:              o.Notes,
		ScheduledAt:        o.ScheduledAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	for _, s := range o.Stops {
		dto.Stops = append(dto.Stops, locationToDTO(s))
	}
	if o.Rating.ByRequester != nil || o.Rating.ByDriver != nil {
		r := o.Rating
		dto.Rating = &r
	}
	if dto.Timeline == nil {
		dto.Timeline = []domain.TimelineEntry{}
	}
	return dto
}

func nearbyOrdersToResponse(found []dispatch.NearbyOrder) nearbyOrdersResponse {
	resp := nearbyOrdersResponse{Count: len(found), Orders: make([]nearbyOrderDTO, 0, len(found))}
	for _, n := range found {
		resp.Orders = append(resp.Orders, nearbyOrderDTO{
			Order:      orderToResponse(n.Order),
			DistanceKm: math.Round(n.DistanceKm*100) / 100,
		})
	}
	return resp
}
