package models

// Role is the capability a session carries. Only two roles can sign in;
// RoleUnknown marks log rows written without a resolved role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleUnknown Role = "unknown"
)

// ParseRole maps a stored value to a Role, falling back to RoleUnknown.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleUnknown
	}
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}
