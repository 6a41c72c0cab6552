package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// CustomerRepository encapsulates customer persistence.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Get(ctx context.Context, id, orgID string) (*domain.Customer, error)
	Update(ctx context.Context, customer *domain.Customer) error
	UpdateIfUnchanged(ctx context.Context, customer *domain.Customer) error
	Delete(ctx context.Context, id, orgID string) error
	List(ctx context.Context, orgID string) ([]*domain.Customer, error)
}

type customerRepository struct {
	*Collection[domain.Customer, *domain.Customer]
}

func NewCustomerRepository(store Store, now func() time.Time) CustomerRepository {
	return &customerRepository{NewCollection[domain.Customer](store, CollectionCustomers, now)}
}

func (r *customerRepository) List(ctx context.Context, orgID string) ([]*domain.Customer, error) {
	return r.Query(ctx, orgID, Query{SortBy: "companyName"})
}
