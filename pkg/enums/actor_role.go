package enums

import "fmt"

// ActorRole is the closed set of caller roles checked at the API boundary.
// The core services never branch on role; authorization happens in middleware.
type ActorRole string

const (
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleCoAdmin  ActorRole = "co_admin"
	ActorRoleStaff    ActorRole = "staff"
	ActorRoleCustomer ActorRole = "customer"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRoleCoAdmin,
	ActorRoleStaff,
	ActorRoleCustomer,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsStaffLevel reports whether the role belongs to back-office staff.
func (a ActorRole) IsStaffLevel() bool {
	switch a {
	case ActorRoleAdmin, ActorRoleCoAdmin, ActorRoleStaff:
		return true
	default:
		return false
	}
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
