package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// UserRepository manages persistence for organization members.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, id, orgID string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id, orgID string) error
	GetByMember(ctx context.Context, orgID, memberID string) (*domain.User, error)
	List(ctx context.Context, orgID string, includeInactive bool) ([]*domain.User, error)
	CountInOrganization(ctx context.Context, orgID string) (int, error)
}

type userRepository struct {
	*Collection[domain.User, *domain.User]
}

// NewUserRepository creates a repository.
func NewUserRepository(store Store, now func() time.Time) UserRepository {
	return &userRepository{NewCollection[domain.User](store, CollectionUsers, now)}
}

func (r *userRepository) GetByMember(ctx context.Context, orgID, memberID string) (*domain.User, error) {
	users, err := r.Query(ctx, orgID, Query{
		Equals: map[string]string{"externalMemberId": memberID},
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return users[0], nil
}

func (r *userRepository) List(ctx context.Context, orgID string, includeInactive bool) ([]*domain.User, error) {
	q := Query{SortBy: "name"}
	if !includeInactive {
		q.Equals = map[string]string{"isActive": "true"}
	}
	return r.Query(ctx, orgID, q)
}

func (r *userRepository) CountInOrganization(ctx context.Context, orgID string) (int, error) {
	return r.Count(ctx, orgID, Query{})
}
