package events

import "github.com/rufatasadov/sober-driver-backend/internal/domain"

// Role pool topics.
const (
	TopicDrivers     = "drivers"
	TopicOperators   = "operators"
	TopicDispatchers = "dispatchers"
	TopicAdmins      = "admins"
)

// Supervisory is the set of topics mirroring every order lifecycle event.
var Supervisory = []string{TopicOperators, TopicDispatchers, TopicAdmins}

// UserTopic is the personal topic of an account.
func UserTopic(userID string) string { return "user:" + userID }

// OrderTopic is the live tracking topic of an order.
func OrderTopic(orderID string) string { return "order:" + orderID }

// RoleTopics returns the pool topics a session of the given role joins.
func RoleTopics(role domain.Role) []string {
	switch role {
	case domain.RoleDriver:
		return []string{TopicDrivers}
	case domain.RoleOperator:
		return []string{TopicOperators}
	case domain.RoleDispatcher:
		return []string{TopicDispatchers}
	case domain.RoleAdmin:
		return []string{TopicAdmins}
	}
	return nil
}

// Event names.
const (
	OrderCreated         = "order_created"
	DriverAssigned       = "driver_assigned"
	OrderStatusChanged   = "order_status_changed"
	OrderCancelled       = "order_cancelled"
	OrderCompleted       = "order_completed"
	OrderRated           = "order_rated"
	NewOrderAssigned     = "new_order_assigned"
	NewOrderAvailable    = "new_order_available"
	OrderAcceptedByOther = "order_accepted_by_other"
	DriverRejectedOrder  = "driver_rejected_order"

	NewOrderCreated       = "new_order_created"
	DriverAssignedToOrder = "driver_assigned_to_order"
	OrderStatusUpdated    = "order_status_updated"
	DriverLocationUpdated = "driver_location_updated"
	DriverStatusUpdated   = "driver_status_updated"
	DriverOffline         = "driver_offline"

	DriverLocation = "driver_location"
)
