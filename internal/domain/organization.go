package domain

// OrganizationSettings controls how new members join.
type OrganizationSettings struct {
	AllowSelfRegistration bool `json:"allowSelfRegistration"`
	DefaultUserRole       Role `json:"defaultUserRole"`
	RequireApproval       bool `json:"requireApproval"`
}

// DefaultOrganizationSettings is applied to lazily created organizations.
func DefaultOrganizationSettings() OrganizationSettings {
	return OrganizationSettings{
		AllowSelfRegistration: true,
		DefaultUserRole:       RoleReadOnly,
		RequireApproval:       false,
	}
}

// Organization is the tenant. Its partition key is its own ID.
type Organization struct {
	Meta
	Name                   string               `json:"name"`
	ExternalOrganizationID string               `json:"externalOrganizationId"`
	Domain                 string               `json:"domain,omitempty"`
	Settings               OrganizationSettings `json:"settings"`
	IsActive               bool                 `json:"isActive"`

	// BootstrapAdminID is the user claimed as the organization's first admin.
	BootstrapAdminID string `json:"bootstrapAdminId,omitempty"`
}
