package domain

import "time"

// Role enumerates user roles.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleResident Role = "RESIDENT"
)

// User carries the identity fields the engine needs for charge creation
// and notification addressing. User management itself is external.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Locale    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
