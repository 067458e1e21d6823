package auth

import "strings"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// ParseRole maps a merchant "tipo" onto a Role. Unknown values fall back to
// staff, the least privileged role.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	default: // "staff", "funcionario", ...
		return RoleStaff
	}
}

type Capability int

const (
	CanManageOrders Capability = iota + 1
	CanViewDashboard
)

func (r Role) Can(c Capability) bool {
	switch c {
	case CanManageOrders, CanViewDashboard:
		return r == RoleAdmin
	}
	return false
}
