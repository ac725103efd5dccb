package domain

// Role is the authenticated role of a caller.
type Role string

// Known roles.
const (
	RoleCustomer   Role = "customer"
	RoleDriver     Role = "driver"
	RoleOperator   Role = "operator"
	RoleDispatcher Role = "dispatcher"
	RoleAdmin      Role = "admin"
)

// Valid checks if the Role is known.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleOperator, RoleDispatcher, RoleAdmin:
		return true
	}
	return false
}

// Supervisory reports whether the role oversees the whole order flow.
func (r Role) Supervisory() bool {
	return r == RoleOperator || r == RoleDispatcher || r == RoleAdmin
}

// Actor identifies who performs an operation.
type Actor struct {
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	DriverID string `json:"driverId,omitempty"`
}

// SystemActor is used for transitions the service performs on its own.
var SystemActor = Actor{UserID: "system", Role: "system"}
