package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// CommentRepository stores issue comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	Get(ctx context.Context, id, orgID string) (*domain.Comment, error)
	Delete(ctx context.Context, id, orgID string) error
	ListByIssue(ctx context.Context, orgID, issueID string) ([]*domain.Comment, error)
}

type commentRepository struct {
	*Collection[domain.Comment, *domain.Comment]
}

func NewCommentRepository(store Store, now func() time.Time) CommentRepository {
	return &commentRepository{NewCollection[domain.Comment](store, CollectionComments, now)}
}

// ListByIssue returns comments oldest first. It does not require the issue to exist.
func (r *commentRepository) ListByIssue(ctx context.Context, orgID, issueID string) ([]*domain.Comment, error) {
	return r.Query(ctx, orgID, Query{
		Equals: map[string]string{"issueId": issueID},
		SortBy: sortCreatedAt,
	})
}
