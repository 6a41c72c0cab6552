package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// ActivityRepository appends to and reads the activity log. Entries are never updated.
type ActivityRepository interface {
	Append(ctx context.Context, item *domain.ActivityItem) error
	Recent(ctx context.Context, orgID string, limit int) ([]*domain.ActivityItem, error)
}

type activityRepository struct {
	coll *Collection[domain.ActivityItem, *domain.ActivityItem]
}

func NewActivityRepository(store Store, now func() time.Time) ActivityRepository {
	return &activityRepository{coll: NewCollection[domain.ActivityItem](store, CollectionActivities, now)}
}

func (r *activityRepository) Append(ctx context.Context, item *domain.ActivityItem) error {
	if item.Timestamp.IsZero() {
		item.Timestamp = r.coll.now().UTC()
	}
	return r.coll.Create(ctx, item)
}

func (r *activityRepository) Recent(ctx context.Context, orgID string, limit int) ([]*domain.ActivityItem, error) {
	return r.coll.Query(ctx, orgID, Query{SortBy: sortCreatedAt, SortDesc: true, Limit: limit})
}
