package domain

import "time"

// Role classifies a user and selects their default permissions.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleSupportAgent Role = "support_agent"
	RoleReadOnly     Role = "read_only"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupportAgent, RoleReadOnly:
		return true
	}
	return false
}

// User is a member of an organization. Permissions are authoritative;
// Role only supplies defaults.
type User struct {
	Meta
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Role             Role       `json:"role"`
	ExternalMemberID string     `json:"externalMemberId"`
	Permissions      []string   `json:"permissions"`
	IsActive         bool       `json:"isActive"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
}

// HasPermission reports whether the stored permission set grants p.
func (u *User) HasPermission(p Permission) bool {
	for _, granted := range u.Permissions {
		if granted == string(p) {
			return true
		}
	}
	return false
}
