package events

import (
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated   EventType = "issue_created"
	EventIssueUpdated   EventType = "issue_updated"
	EventIssueResolved  EventType = "issue_resolved"
	EventIssueDeleted   EventType = "issue_deleted"
	EventIssueEscalated EventType = "issue_escalated"
	EventCommentAdded   EventType = "comment_added"
)

// AllEventTypes lists every event the service publishes.
var AllEventTypes = []EventType{
	EventIssueCreated,
	EventIssueUpdated,
	EventIssueResolved,
	EventIssueDeleted,
	EventIssueEscalated,
	EventCommentAdded,
}

// Actor identifies who triggered an event.
type Actor struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OrganizationID string    `json:"organization_id"`
	IssueID        string    `json:"issue_id"`
	Actor          Actor     `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	Title      string               `json:"title"`
	Priority   domain.IssuePriority `json:"priority"`
	CustomerID string               `json:"customer_id"`
}

// IssueUpdatedPayload payload.
type IssueUpdatedPayload struct {
	OldStatus    domain.IssueStatus `json:"old_status"`
	NewStatus    domain.IssueStatus `json:"new_status"`
	AssignedToID string             `json:"assigned_to_id,omitempty"`
}

// IssueEscalatedPayload payload.
type IssueEscalatedPayload struct {
	JiraIssueKey string `json:"jira_issue_key"`
	JiraURL      string `json:"jira_url"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	BodyPreview string `json:"body_preview"`
}
