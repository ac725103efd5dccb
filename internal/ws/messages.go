package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// Inbound message types.
const (
	msgPing           = "ping"
	msgUpdateLocation = "update_location"
	msgUpdateStatus   = "update_status"
	msgTrackOrder     = "track_order"
	msgUntrackOrder   = "untrack_order"
)

// Session-scoped reply events.
const (
	eventConnected       = "connected"
	eventPong            = "pong"
	eventLocationUpdated = "location_updated"
	eventStatusUpdated   = "status_updated"
	eventTrackingStarted = "tracking_started"
	eventTrackingStopped = "tracking_stopped"
	eventError           = "error"
)

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type locationMsg struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Address string   `json:"address"`
}

type statusMsg struct {
	IsOnline    *bool `json:"isOnline"`
	IsAvailable *bool `json:"isAvailable"`
}

type trackMsg struct {
	OrderID string `json:"orderId"`
}

type connectedPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
}

type driverAck struct {
	DriverID    string        `json:"driverId"`
	IsOnline    bool          `json:"isOnline"`
	IsAvailable bool          `json:"isAvailable"`
	Position    *domain.Point `json:"position,omitempty"`
}

type trackAck struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status,omitempty"`
}

type errorPayload struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errMalformed = errors.New("malformed message")

func (r *Registry) handle(ctx context.Context, s *Session, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.replyError(s, "", errMalformed)
		return
	}

	var err error
	switch msg.Type {
	case msgPing:
		r.reply(s, eventPong, struct{}{})
	case msgUpdateLocation:
		err = r.updateLocation(ctx, s, msg.Data)
	case msgUpdateStatus:
		err = r.updateStatus(ctx, s, msg.Data)
	case msgTrackOrder:
		err = r.trackOrder(ctx, s, msg.Data)
	case msgUntrackOrder:
		err = r.untrackOrder(s, msg.Data)
	default:
		err = errUnknownType
	}
	if err != nil {
		r.replyError(s, msg.Type, err)
	}
}

var (
	errUnknownType = errors.New("unknown message type")
	errThrottled   = errors.New("location updates too frequent")
)

func (r *Registry) updateLocation(ctx context.Context, s *Session, data json.RawMessage) error {
	var m locationMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	if m.Lat == nil || m.Lon == nil {
		return fmt.Errorf("%w: lat and lon are required", apperr.ErrInvalid)
	}
	if r.limiter != nil && !r.limiter.Allow(s.actor.DriverID) {
		return errThrottled
	}
	d, err := r.coord.UpdateDriverLocation(ctx, s.actor, domain.Point{Lat: *m.Lat, Lon: *m.Lon}, m.Address)
	if err != nil {
		return err
	}
	r.reply(s, eventLocationUpdated, ackOf(d))
	return nil
}

func (r *Registry) updateStatus(ctx context.Context, s *Session, data json.RawMessage) error {
	var m statusMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	if m.IsOnline == nil {
		return fmt.Errorf("%w: isOnline is required", apperr.ErrInvalid)
	}
	d, err := r.coord.SetDriverOnlineStatus(ctx, s.actor, *m.IsOnline, m.IsAvailable)
	if err != nil {
		return err
	}
	r.reply(s, eventStatusUpdated, ackOf(d))
	return nil
}

func (r *Registry) trackOrder(ctx context.Context, s *Session, data json.RawMessage) error {
	var m trackMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	o, err := r.coord.TrackOrder(ctx, s.actor, m.OrderID)
	if err != nil {
		return err
	}
	topic := events.OrderTopic(o.ID)
	r.hub.Subscribe(topic, s)
	r.logger.Debug("ws tracking order",
		logx.String("session_id", s.id),
		logx.String("order_id", o.ID),
		logx.Int("watchers", r.hub.Subscribers(topic)),
	)
	r.reply(s, eventTrackingStarted, trackAck{OrderID: o.ID, Status: string(o.Status)})
	return nil
}

func (r *Registry) untrackOrder(s *Session, data json.RawMessage) error {
	var m trackMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	if m.OrderID == "" {
		return fmt.Errorf("%w: orderId is required", apperr.ErrInvalid)
	}
	r.hub.Unsubscribe(events.OrderTopic(m.OrderID), s.id)
	r.reply(s, eventTrackingStopped, trackAck{OrderID: m.OrderID})
	return nil
}

func (r *Registry) replyError(s *Session, msgType string, err error) {
	code := errorCode(err)
	if code == "internal" {
		r.logger.Error("ws message failed",
			logx.String("session_id", s.id),
			logx.String("type", msgType),
			logx.Any("err", err),
		)
		r.reply(s, eventError, errorPayload{Type: msgType, Code: code, Message: "internal error"})
		return
	}
	r.reply(s, eventError, errorPayload{Type: msgType, Code: code, Message: err.Error()})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: data is required", apperr.ErrInvalid)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalid, errMalformed)
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errMalformed), errors.Is(err, errUnknownType), errors.Is(err, apperr.ErrInvalid):
		return "invalid"
	case errors.Is(err, errThrottled):
		return "throttled"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperr.ErrDriverUnavailable):
		return "driver_unavailable"
	}
	return "internal"
}

func ackOf(d *domain.Driver) driverAck {
	return driverAck{
		DriverID:    d.ID,
		IsOnline:    d.IsOnline,
		IsAvailable: d.IsAvailable,
		Position:    d.Position,
	}
}
