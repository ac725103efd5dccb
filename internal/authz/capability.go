// Package authz holds the closed set of capabilities and the single gate
// that checks them before any coordinator operation.
package authz

import (
	"fmt"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

// Capability is an operation class an actor may be allowed to invoke.
type Capability uint8

// Capabilities.
const (
	CreateOrder Capability = iota + 1
	CreateOrderOnBehalf
	ViewAnyOrder
	CancelOwnOrder
	CancelAssignedOrder
	CancelAnyOrder
	AcceptOrder
	RejectOrder
	AssignOrder
	AdvanceOwnStatus
	AdvanceAnyStatus
	RateOrder
	UpdateLocation
	SetOnlineStatus
	FindDrivers
	RebroadcastOrder
	ManageProfile
)

var capabilityNames = map[Capability]string{
	CreateOrder:         "create-order",
	CreateOrderOnBehalf: "create-order-on-behalf",
	ViewAnyOrder:        "view-any-order",
	CancelOwnOrder:      "cancel-own-order",
	CancelAssignedOrder: "cancel-assigned-order",
	CancelAnyOrder:      "cancel-any-order",
	AcceptOrder:         "accept-order",
	RejectOrder:         "reject-order",
	AssignOrder:         "assign-order",
	AdvanceOwnStatus:    "advance-own-status",
	AdvanceAnyStatus:    "advance-any-status",
	RateOrder:           "rate-order",
	UpdateLocation:      "update-location",
	SetOnlineStatus:     "set-online-status",
	FindDrivers:         "find-drivers",
	RebroadcastOrder:    "rebroadcast-order",
	ManageProfile:       "manage-profile",
}

func (c Capability) String() string {
	if s, ok := capabilityNames[c]; ok {
		return s
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

var supervisor = []Capability{
	CreateOrder, CreateOrderOnBehalf, ViewAnyOrder, CancelAnyOrder,
	AssignOrder, AdvanceAnyStatus, FindDrivers, RebroadcastOrder,
}

// matrix is the role -> capability table.
var matrix = map[domain.Role][]Capability{
	domain.RoleCustomer: {CreateOrder, CancelOwnOrder, RateOrder},
	domain.RoleDriver: {
		AcceptOrder, RejectOrder, AdvanceOwnStatus, CancelAssignedOrder,
		RateOrder, UpdateLocation, SetOnlineStatus, ManageProfile,
	},
	domain.RoleOperator:   supervisor,
	domain.RoleDispatcher: supervisor,
	domain.RoleAdmin:      supervisor,
}

// HasCapability reports whether the actor's role grants c.
func HasCapability(a domain.Actor, c Capability) bool {
	for _, have := range matrix[a.Role] {
		if have == c {
			return true
		}
	}
	return false
}

// Require returns ErrForbidden unless the actor holds c.
func Require(a domain.Actor, c Capability) error {
	if HasCapability(a, c) {
		return nil
	}
	return fmt.Errorf("%w: role %q lacks %s", apperr.ErrForbidden, a.Role, c)
}
