package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// OrganizationRepository manages tenants. An organization is partitioned by its own id.
type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	Get(ctx context.Context, id string) (*domain.Organization, error)
	Update(ctx context.Context, org *domain.Organization) error
	UpdateIfUnchanged(ctx context.Context, org *domain.Organization) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.Organization, error)
	ListActive(ctx context.Context) ([]*domain.Organization, error)
}

type organizationRepository struct {
	coll *Collection[domain.Organization, *domain.Organization]
}

func NewOrganizationRepository(store Store, now func() time.Time) OrganizationRepository {
	return &organizationRepository{coll: NewCollection[domain.Organization](store, CollectionOrganizations, now)}
}

func (r *organizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	org.OrganizationID = org.ID
	return r.coll.Create(ctx, org)
}

func (r *organizationRepository) Get(ctx context.Context, id string) (*domain.Organization, error) {
	return r.coll.Get(ctx, id, id)
}

func (r *organizationRepository) Update(ctx context.Context, org *domain.Organization) error {
	org.OrganizationID = org.ID
	return r.coll.Update(ctx, org)
}

func (r *organizationRepository) UpdateIfUnchanged(ctx context.Context, org *domain.Organization) error {
	org.OrganizationID = org.ID
	return r.coll.UpdateIfUnchanged(ctx, org)
}

// GetByExternalID looks across partitions; only the session bootstrap uses it.
func (r *organizationRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Organization, error) {
	orgs, err := r.coll.findAcrossTenants(ctx, "externalOrganizationId", externalID)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, ErrNotFound
	}
	return orgs[0], nil
}

// ListActive feeds system jobs that iterate every tenant.
func (r *organizationRepository) ListActive(ctx context.Context) ([]*domain.Organization, error) {
	return r.coll.findAcrossTenants(ctx, "isActive", "true")
}
