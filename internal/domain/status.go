package domain

// OrderStatus is a lifecycle state of an order.
type OrderStatus string

// Lifecycle states.
const (
	StatusPending        OrderStatus = "pending"
	StatusAccepted       OrderStatus = "accepted"
	StatusDriverAssigned OrderStatus = "driver_assigned"
	StatusDriverArrived  OrderStatus = "driver_arrived"
	StatusInProgress     OrderStatus = "in_progress"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
)

var allStatuses = [...]OrderStatus{
	StatusPending,
	StatusAccepted,
	StatusDriverAssigned,
	StatusDriverArrived,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// transitions is the only source of allowed status edges.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:        {StatusAccepted, StatusCancelled},
	StatusAccepted:       {StatusDriverAssigned, StatusCancelled},
	StatusDriverAssigned: {StatusDriverArrived, StatusCancelled},
	StatusDriverArrived:  {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusCompleted, StatusCancelled},
	StatusCompleted:      nil,
	StatusCancelled:      nil,
}

// Statuses returns every lifecycle state in lifecycle order.
func Statuses() []OrderStatus {
	out := make([]OrderStatus, len(allStatuses))
	copy(out, allStatuses[:])
	return out
}

// Valid checks if the OrderStatus is a known lifecycle state.
func (s OrderStatus) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// HasDriver reports whether an order in this state must have a bound driver.
func (s OrderStatus) HasDriver() bool {
	switch s {
	case StatusDriverAssigned, StatusDriverArrived, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Assignable reports whether a driver may be bound to an order in this state.
func (s OrderStatus) Assignable() bool {
	return s == StatusPending || s == StatusAccepted
}

// CanTransition reports whether from -> to is an edge of the lifecycle table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
