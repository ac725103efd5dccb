package handlers

import (
	"net/http"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
)

// OrderHandler serves the order lifecycle endpoints.
type OrderHandler struct {
	logger logx.Logger
	uc     orderUsecase
}

// NewOrderHandler wires an orderUsecase into HTTP handlers.
func NewOrderHandler(logger logx.Logger, uc orderUsecase) *OrderHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &OrderHandler{logger: logger, uc: uc}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(h.logger, w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	res, err := h.uc.CreateOrder(r.Context(), actor, req.toInput())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+res.Order.ID)
	writeJSON(h.logger, w, r, http.StatusCreated, createOrderResponse{
		Order:    orderToResponse(res.Order),
		Dispatch: res.Dispatch,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	o, err := h.uc.GetOrder(r.Context(), actor, id)
	h.respondOrder(w, r, o, err)
}

// Accept handles POST /orders/{id}/accept.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	o, err := h.uc.Accept(r.Context(), actor, id)
	h.respondOrder(w, r, o, err)
}

// Reject handles POST /orders/{id}/reject. The body is optional.
func (h *OrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if ok := decodeOptionalJSON(h.logger, w, r, &req); !ok {
		return
	}
	if err := h.uc.Reject(r.Context(), actor, id, req.Reason); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "rejected"})
}

// Assign handles POST /orders/{id}/assign.
func (h *OrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	o, err := h.uc.AssignDriver(r.Context(), actor, id, req.DriverID)
	h.respondOrder(w, r, o, err)
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	o, err := h.uc.AdvanceStatus(r.Context(), actor, id, domain.OrderStatus(req.Status), req.Note)
	h.respondOrder(w, r, o, err)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	o, err := h.uc.Cancel(r.Context(), actor, id, req.Reason)
	h.respondOrder(w, r, o, err)
}

// Rate handles POST /orders/{id}/rating.
func (h *OrderHandler) Rate(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	o, err := h.uc.Rate(r.Context(), actor, id, dispatch.RateInput{Score: req.Rating, Comment: req.Comment})
	h.respondOrder(w, r, o, err)
}

// Broadcast handles POST /orders/{id}/broadcast. An empty body uses the
// default search radius.
func (h *OrderHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req broadcastRequest
	if ok := decodeOptionalJSON(h.logger, w, r, &req); !ok {
		return
	}
	rep, err := h.uc.Rebroadcast(r.Context(), actor, id, req.RadiusKm)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, rep)
}

func (h *OrderHandler) target(w http.ResponseWriter, r *http.Request) (domain.Actor, string, bool) {
	actor, ok := actorOrReject(h.logger, w, r)
	if !ok {
		return domain.Actor{}, "", false
	}
	id, err := orderIDFromURL(r)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return domain.Actor{}, "", false
	}
	return actor, id, true
}

func (h *OrderHandler) respondOrder(w http.ResponseWriter, r *http.Request, o *domain.Order, err error) {
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, orderToResponse(o))
}
