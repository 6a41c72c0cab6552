package repository

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// IssueSortFields are the sort keys accepted by issue listings.
var IssueSortFields = []string{"createdAt", "updatedAt", "priority", "status", "title"}

// IssueFilter captures issue search parameters.
type IssueFilter struct {
	Statuses      []domain.IssueStatus
	Priorities    []domain.IssuePriority
	AssignedToID  string
	CustomerID    string
	ApplicationID string
	Category      string
	Search        string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	SortBy        string
	SortDesc      bool
	Limit         int
	Offset        int
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	Get(ctx context.Context, id, orgID string) (*domain.Issue, error)
	Update(ctx context.Context, issue *domain.Issue) error
	UpdateIfUnchanged(ctx context.Context, issue *domain.Issue) error
	Delete(ctx context.Context, id, orgID string) error
	List(ctx context.Context, orgID string, filter IssueFilter) ([]*domain.Issue, error)
	Count(ctx context.Context, orgID string, filter IssueFilter) (int, error)
	CountByCustomer(ctx context.Context, orgID, customerID string) (int, error)
}

type issueRepository struct {
	*Collection[domain.Issue, *domain.Issue]
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(store Store, now func() time.Time) IssueRepository {
	return &issueRepository{NewCollection[domain.Issue](store, CollectionIssues, now)}
}

func (r *issueRepository) List(ctx context.Context, orgID string, filter IssueFilter) ([]*domain.Issue, error) {
	return r.Query(ctx, orgID, filter.query())
}

func (r *issueRepository) Count(ctx context.Context, orgID string, filter IssueFilter) (int, error) {
	return r.Collection.Count(ctx, orgID, filter.query())
}

func (r *issueRepository) CountByCustomer(ctx context.Context, orgID, customerID string) (int, error) {
	return r.Collection.Count(ctx, orgID, Query{Equals: map[string]string{"customerId": customerID}})
}

func (f IssueFilter) query() Query {
	q := Query{
		Equals:       map[string]string{},
		In:           map[string][]string{},
		Search:       f.Search,
		SearchFields: []string{"title", "description"},
		CreatedFrom:  f.CreatedFrom,
		CreatedTo:    f.CreatedTo,
		SortBy:       f.SortBy,
		SortDesc:     f.SortDesc,
		Limit:        f.Limit,
		Offset:       f.Offset,
	}
	if len(f.Statuses) > 0 {
		q.In["status"] = lo.Map(f.Statuses, func(s domain.IssueStatus, _ int) string { return string(s) })
	}
	if len(f.Priorities) > 0 {
		q.In["priority"] = lo.Map(f.Priorities, func(p domain.IssuePriority, _ int) string { return string(p) })
	}
	if f.AssignedToID != "" {
		q.Equals["assignedToId"] = f.AssignedToID
	}
	if f.CustomerID != "" {
		q.Equals["customerId"] = f.CustomerID
	}
	if f.ApplicationID != "" {
		q.Equals["applicationId"] = f.ApplicationID
	}
	if f.Category != "" {
		q.Equals["category"] = f.Category
	}
	return q
}
