package domain

import "fmt"

// Role enumerates the user kinds known to the data model.
type Role string

const (
	RoleUser                Role = "USER"
	RoleStoreOwner          Role = "STORE_OWNER"
	RoleSystemAdministrator Role = "SYSTEM_ADMINISTRATOR"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStoreOwner, RoleSystemAdministrator:
		return true
	default:
		return false
	}
}

// ParseRole converts a raw role string, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Address      string
	Role         Role
}
