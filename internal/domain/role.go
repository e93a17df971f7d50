package domain

// Role is the coarse privilege label returned by the API at login.
type Role string

const (
	RoleNone    Role = ""
	RoleAdmin   Role = "Admin"
	RoleManager Role = "Manager"
	RoleStaff   Role = "Staff"
)

// ParseRole maps a persisted or remote value onto a known role. Unknown
// values collapse to RoleNone so they never grant access.
func ParseRole(value string) Role {
	switch Role(value) {
	case RoleAdmin, RoleManager, RoleStaff:
		return Role(value)
	default:
		return RoleNone
	}
}

// IsSet reports whether someone is logged in for authorization purposes.
func (r Role) IsSet() bool {
	return r != RoleNone
}

// In reports whether r is one of allowed.
func (r Role) In(allowed ...Role) bool {
	for _, candidate := range allowed {
		if r == candidate {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
