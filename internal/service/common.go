package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

const counterRetries = 5

// notFoundOr maps a missing document to NotFound and wraps everything else.
func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}

func sessionActor(session *domain.Session) events.Actor {
	return events.Actor{UserID: session.UserID, UserName: session.UserName}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, session *domain.Session, eventType events.EventType, issueID string, payload any, now time.Time) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		OrganizationID: session.OrganizationID,
		IssueID:        issueID,
		Actor:          sessionActor(session),
		Timestamp:      now,
		Payload:        payload,
	})
}

// recordActivity appends to the audit log. A failed append is logged and does
// not fail the operation that already happened.
func recordActivity(ctx context.Context, activities repository.ActivityRepository, logger *zap.Logger, session *domain.Session, activityType domain.ActivityType, issueID, title, description string) {
	item := &domain.ActivityItem{
		Meta:        domain.Meta{OrganizationID: session.OrganizationID},
		Type:        activityType,
		Title:       title,
		Description: description,
		UserID:      session.UserID,
		UserName:    session.UserName,
		IssueID:     issueID,
	}
	if err := activities.Append(ctx, item); err != nil {
		logger.Warn("activity append failed",
			zap.Error(err),
			zap.String("organization_id", session.OrganizationID),
			zap.String("activity_type", string(activityType)),
			zap.String("issue_id", issueID),
		)
	}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

func pageBounds(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
