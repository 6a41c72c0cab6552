package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// CategoryRepository stores categories under applications.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	Get(ctx context.Context, id, orgID string) (*domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id, orgID string) error
	List(ctx context.Context, orgID, applicationID string, includeInactive bool) ([]*domain.Category, error)
}

type categoryRepository struct {
	*Collection[domain.Category, *domain.Category]
}

func NewCategoryRepository(store Store, now func() time.Time) CategoryRepository {
	return &categoryRepository{NewCollection[domain.Category](store, CollectionCategories, now)}
}

// List returns categories sorted by name; an empty applicationID lists all of them.
func (r *categoryRepository) List(ctx context.Context, orgID, applicationID string, includeInactive bool) ([]*domain.Category, error) {
	q := Query{SortBy: "name", Equals: map[string]string{}}
	if applicationID != "" {
		q.Equals["applicationId"] = applicationID
	}
	if !includeInactive {
		q.Equals["isActive"] = "true"
	}
	return r.Query(ctx, orgID, q)
}
