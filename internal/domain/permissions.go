package domain

import "github.com/samber/lo"

// Permission is a single capability string such as "issues:write".
type Permission string

const (
	PermIssuesRead      Permission = "issues:read"
	PermIssuesWrite     Permission = "issues:write"
	PermIssuesDelete    Permission = "issues:delete"
	PermCustomersRead   Permission = "customers:read"
	PermCustomersWrite  Permission = "customers:write"
	PermCustomersDelete Permission = "customers:delete"
	PermSettingsRead    Permission = "settings:read"
	PermSettingsWrite   Permission = "settings:write"
)

// AllPermissions lists every known permission in display order.
var AllPermissions = []Permission{
	PermIssuesRead,
	PermIssuesWrite,
	PermIssuesDelete,
	PermCustomersRead,
	PermCustomersWrite,
	PermCustomersDelete,
	PermSettingsRead,
	PermSettingsWrite,
}

var roleDefaults = map[Role][]Permission{
	RoleAdmin: AllPermissions,
	RoleSupportAgent: {
		PermIssuesRead,
		PermIssuesWrite,
		PermCustomersRead,
		PermCustomersWrite,
	},
	RoleReadOnly: {
		PermIssuesRead,
		PermCustomersRead,
	},
}

// DefaultPermissions returns a fresh copy of the default permission set for role.
// Unknown roles get no permissions.
func DefaultPermissions(role Role) []string {
	return lo.Map(roleDefaults[role], func(p Permission, _ int) string {
		return string(p)
	})
}

// IsKnownPermission reports whether p is part of the permission vocabulary.
func IsKnownPermission(p string) bool {
	return lo.Contains(AllPermissions, Permission(p))
}
