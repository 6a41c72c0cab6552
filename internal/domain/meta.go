package domain

import "time"

// Meta carries the fields every tenant-owned document shares.
type Meta struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// Version is the store's concurrency token; zero until persisted.
	Version int64 `json:"-"`
}

// Metadata exposes the embedded Meta to generic repositories.
func (m *Meta) Metadata() *Meta {
	return m
}
