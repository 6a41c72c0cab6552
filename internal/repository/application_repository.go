package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// ApplicationRepository stores applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	Get(ctx context.Context, id, orgID string) (*domain.Application, error)
	Update(ctx context.Context, app *domain.Application) error
	Delete(ctx context.Context, id, orgID string) error
	List(ctx context.Context, orgID string, includeInactive bool) ([]*domain.Application, error)
}

type applicationRepository struct {
	*Collection[domain.Application, *domain.Application]
}

func NewApplicationRepository(store Store, now func() time.Time) ApplicationRepository {
	return &applicationRepository{NewCollection[domain.Application](store, CollectionApplications, now)}
}

func (r *applicationRepository) List(ctx context.Context, orgID string, includeInactive bool) ([]*domain.Application, error) {
	q := Query{SortBy: "name"}
	if !includeInactive {
		q.Equals = map[string]string{"isActive": "true"}
	}
	return r.Query(ctx, orgID, q)
}
