package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Collections used by the service.
const (
	CollectionOrganizations = "organizations"
	CollectionUsers         = "users"
	CollectionCustomers     = "customers"
	CollectionIssues        = "issues"
	CollectionComments      = "comments"
	CollectionCategories    = "categories"
	CollectionApplications  = "applications"
	CollectionActivities    = "activities"
)

var (
	// ErrNotFound is returned when no document matches the id and organization pair.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when creating a document whose id is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrVersionConflict is returned by conditional updates on a stale version.
	ErrVersionConflict = errors.New("document version conflict")
)

// Record is a stored document. Body holds the JSON encoded entity.
type Record struct {
	ID             string
	OrganizationID string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Body           json.RawMessage
}

// Query filters documents of one collection inside one organization.
// Field names refer to top-level JSON keys of the document body and are
// compared on their text form ("true", "42", "high").
type Query struct {
	Equals       map[string]string
	In           map[string][]string
	Search       string
	SearchFields []string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	SortBy       string
	SortDesc     bool
	Limit        int
	Offset       int
}

// Store is a document store partitioned by organization id. Every tenant
// operation takes the organization id from the caller and never infers it.
type Store interface {
	Create(ctx context.Context, collection string, rec Record) (Record, error)
	Get(ctx context.Context, collection, id, orgID string) (Record, error)
	// Update replaces the document. expectedVersion > 0 makes the write conditional.
	Update(ctx context.Context, collection string, rec Record, expectedVersion int64) (Record, error)
	Delete(ctx context.Context, collection, id, orgID string) error
	Query(ctx context.Context, collection, orgID string, q Query) ([]Record, error)
	Count(ctx context.Context, collection, orgID string, q Query) (int, error)
	// FindAcrossTenants is reserved for bootstrap and system jobs.
	FindAcrossTenants(ctx context.Context, collection, field, value string) ([]Record, error)
	Ping(ctx context.Context) error
}

const (
	sortCreatedAt = "createdAt"
	sortUpdatedAt = "updatedAt"
)

func (q Query) sortKey() string {
	if q.SortBy == "" {
		return sortCreatedAt
	}
	return q.SortBy
}

// sortDescending defaults to newest first when no sort key is given.
func (q Query) sortDescending() bool {
	if q.SortBy == "" {
		return true
	}
	return q.SortDesc
}

func (q Query) searchTerm() string {
	return strings.ToLower(strings.TrimSpace(q.Search))
}
