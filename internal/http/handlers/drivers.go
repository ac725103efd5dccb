package handlers

import (
	"net/http"
	"strconv"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
)

// DriverHandler serves driver presence and search endpoints.
type DriverHandler struct {
	logger logx.Logger
	uc     driverUsecase
}

// NewDriverHandler wires a driverUsecase into HTTP handlers.
func NewDriverHandler(logger logx.Logger, uc driverUsecase) *DriverHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &DriverHandler{logger: logger, uc: uc}
}

// Nearby handles GET /drivers/nearby?lat=&lon=&radiusKm=.
func (h *DriverHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(h.logger, w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid lat")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid lon")
		return
	}
	var radius float64
	if s := q.Get("radiusKm"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || radius < 0 {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid radiusKm")
			return
		}
	}

	refs, err := h.uc.NearbyDrivers(r.Context(), actor, domain.Point{Lat: lat, Lon: lon}, radius)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	if refs == nil {
		refs = []domain.DriverRef{}
	}
	writeJSON(h.logger, w, r, http.StatusOK, nearbyResponse{Count: len(refs), Drivers: refs})
}

// UpdateLocation handles PATCH /drivers/me/location.
func (h *DriverHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(h.logger, w, r)
	if !ok {
		return
	}
	var req locationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "lat and lon are required")
		return
	}

	d, err := h.uc.UpdateDriverLocation(r.Context(), actor, domain.Point{Lat: *req.Lat, Lon: *req.Lon}, req.Address)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, d)
}

// UpdateStatus handles PATCH /drivers/me/status.
func (h *DriverHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(h.logger, w, r)
	if !ok {
		return
	}
	var req driverStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.IsOnline == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "isOnline is required")
		return
	}

	d, err := h.uc.SetDriverOnlineStatus(r.Context(), actor, *req.IsOnline, req.IsAvailable)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, d)
}

// NearbyOrders handles GET /drivers/nearby-orders?lat=&lon=&maxDistance=.
// Without lat and lon the driver's last reported position is used.
func (h *DriverHandler) NearbyOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(h.logger, w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var at *domain.Point
	if q.Has("lat") || q.Has("lon") {
		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid lat")
			return
		}
		lon, err := strconv.ParseFloat(q.Get("lon"), 64)
		if err != nil {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid lon")
			return
		}
		at = &domain.Point{Lat: lat, Lon: lon}
	}
	var radius float64
	if s := q.Get("maxDistance"); s != "" {
		var err error
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || radius <= 0 {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid maxDistance")
			return
		}
	}

	found, err := h.uc.NearbyOrders(r.Context(), actor, at, radius)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, nearbyOrdersToResponse(found))
}

// Profile handles GET /drivers/me/profile.
func (h *DriverHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(h.logger, w, r)
	if !ok {
		return
	}
	d, err := h.uc.DriverProfile(r.Context(), actor)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, d)
}

// UpdateProfile handles PUT /drivers/me/profile.
func (h *DriverHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(h.logger, w, r)
	if !ok {
		return
	}
	var req profileRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	d, err := h.uc.UpdateDriverProfile(r.Context(), actor, dispatch.DriverProfileInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Vehicle: req.Vehicle,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, d)
}
