package domain

import "time"

// ActivityType captures what happened in an activity entry.
type ActivityType string

const (
	ActivityIssueCreated  ActivityType = "issue_created"
	ActivityIssueUpdated  ActivityType = "issue_updated"
	ActivityIssueResolved ActivityType = "issue_resolved"
	ActivityCommentAdded  ActivityType = "comment_added"
)

// ActivityItem is an append-only audit log entry.
type ActivityItem struct {
	Meta
	Type        ActivityType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	UserID      string       `json:"userId"`
	UserName    string       `json:"userName"`
	IssueID     string       `json:"issueId,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}
