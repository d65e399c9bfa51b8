package auth

import "strings"

// UserRole is the user's role
type UserRole string

const (
	// RoleStandard is the role every registered guest gets
	RoleStandard UserRole = "standard"
	// RoleAdmin manages users and rooms
	RoleAdmin UserRole = "admin"
	// RoleAdministrator is an alias of RoleAdmin kept for existing records
	RoleAdministrator UserRole = "administrator"
)

// adminRoles is the role gate allow-list. Matching is exact.
var adminRoles = map[UserRole]struct{}{
	RoleAdmin:         {},
	RoleAdministrator: {},
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	for _, role := range GetAllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether r is on the admin allow-list
func (r UserRole) IsAdmin() bool {
	_, ok := adminRoles[r]
	return ok
}

// IsAdminRole is deny by default: a nil role, an empty role and any value
// outside the allow-list are all non-admin.
func IsAdminRole(role *UserRole) bool {
	if role == nil {
		return false
	}
	return role.IsAdmin()
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleStandard,
		RoleAdmin,
		RoleAdministrator,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.TrimSpace(roleStr))
	return role, role.IsValid()
}

// RolePtr returns a pointer to r, handy for model literals
func RolePtr(r UserRole) *UserRole {
	return &r
}
