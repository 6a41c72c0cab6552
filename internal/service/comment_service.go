package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// AddCommentInput describes a comment on an issue.
type AddCommentInput struct {
	Content     string   `json:"content" validate:"required,max=2000"`
	IsInternal  bool     `json:"isInternal"`
	Attachments []string `json:"attachments" validate:"max=20"`
}

// AddComment lets any issue viewer comment. The author name is copied onto
// the comment so later renames do not rewrite history.
func (s *IssueService) AddComment(ctx context.Context, issueID string, input AddCommentInput) (*domain.Comment, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return nil, err
	}
	input.Content = strings.TrimSpace(input.Content)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	issue, err := s.issues.Get(ctx, issueID, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "issue", issueID)
	}

	comment := &domain.Comment{
		Meta:        domain.Meta{OrganizationID: session.OrganizationID},
		IssueID:     issue.ID,
		UserID:      session.UserID,
		UserName:    session.UserName,
		Content:     input.Content,
		IsInternal:  input.IsInternal,
		Attachments: input.Attachments,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	recordActivity(ctx, s.activities, s.logger, session, domain.ActivityCommentAdded, issue.ID,
		"Comment added to: "+issue.Title, fmt.Sprintf("New comment added to issue #%s", issue.ID))
	publish(ctx, s.dispatcher, session, events.EventCommentAdded, issue.ID, events.CommentAddedPayload{
		CommentID:   comment.ID,
		BodyPreview: stringPreview(comment.Content, 120),
	}, s.now().UTC())
	return comment, nil
}

// ListComments returns the issue's comments oldest first.
func (s *IssueService) ListComments(ctx context.Context, issueID string) ([]*domain.Comment, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return nil, err
	}
	if _, err := s.issues.Get(ctx, issueID, session.OrganizationID); err != nil {
		return nil, notFoundOr(err, "issue", issueID)
	}
	comments, err := s.comments.ListByIssue(ctx, session.OrganizationID, issueID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// DeleteComment is allowed for the author or anyone holding issues:delete.
func (s *IssueService) DeleteComment(ctx context.Context, commentID string) error {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return err
	}
	comment, err := s.comments.Get(ctx, commentID, session.OrganizationID)
	if err != nil {
		return notFoundOr(err, "comment", commentID)
	}
	if comment.UserID != session.UserID && !session.HasPermission(domain.PermIssuesDelete) {
		return apperrors.NewForbidden("only the author can delete this comment")
	}
	if err := s.comments.Delete(ctx, commentID, session.OrganizationID); err != nil {
		return notFoundOr(err, "comment", commentID)
	}
	return nil
}
