package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusNew              IssueStatus = "new"
	IssueStatusInProgress       IssueStatus = "in_progress"
	IssueStatusAwaitingCustomer IssueStatus = "awaiting_customer"
	IssueStatusResolved         IssueStatus = "resolved"
	IssueStatusClosed           IssueStatus = "closed"
)

// IssueStatuses lists every status in lifecycle order.
var IssueStatuses = []IssueStatus{
	IssueStatusNew,
	IssueStatusInProgress,
	IssueStatusAwaitingCustomer,
	IssueStatusResolved,
	IssueStatusClosed,
}

func (s IssueStatus) Valid() bool {
	for _, known := range IssueStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Open reports whether the issue still needs work.
func (s IssueStatus) Open() bool {
	return s != IssueStatusResolved && s != IssueStatusClosed
}

// IssuePriority enumerates urgency.
type IssuePriority string

const (
	IssuePriorityCritical IssuePriority = "critical"
	IssuePriorityHigh     IssuePriority = "high"
	IssuePriorityMedium   IssuePriority = "medium"
	IssuePriorityLow      IssuePriority = "low"
)

// IssuePriorities lists every priority from most to least urgent.
var IssuePriorities = []IssuePriority{
	IssuePriorityCritical,
	IssuePriorityHigh,
	IssuePriorityMedium,
	IssuePriorityLow,
}

func (p IssuePriority) Valid() bool {
	for _, known := range IssuePriorities {
		if p == known {
			return true
		}
	}
	return false
}

// Issue is the aggregate for support requests.
type Issue struct {
	Meta
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Status          IssueStatus   `json:"status"`
	Priority        IssuePriority `json:"priority"`
	Category        string        `json:"category,omitempty"`
	ApplicationID   string        `json:"applicationId,omitempty"`
	CustomerID      string        `json:"customerId"`
	AssignedToID    string        `json:"assignedToId,omitempty"`
	CreatedBy       string        `json:"createdBy"`
	ResolvedAt      *time.Time    `json:"resolvedAt,omitempty"`
	ResolutionNotes string        `json:"resolutionNotes,omitempty"`
	Attachments     []string      `json:"attachments,omitempty"`

	JiraIssueKey string     `json:"jiraIssueKey,omitempty"`
	JiraURL      string     `json:"jiraUrl,omitempty"`
	EscalatedAt  *time.Time `json:"escalatedAt,omitempty"`
	EscalatedBy  string     `json:"escalatedBy,omitempty"`
}

// Escalated reports whether a remote issue exists for this issue.
func (i *Issue) Escalated() bool {
	return i.JiraIssueKey != ""
}

// EscalationPending reports whether an escalation has been claimed but not completed.
func (i *Issue) EscalationPending() bool {
	return i.JiraIssueKey == "" && i.EscalatedBy != ""
}

// EscalationClaimHeld reports a pending claim taken less than lease ago.
// Older claims belong to attempts that died before finishing and may be taken over.
func (i *Issue) EscalationClaimHeld(now time.Time, lease time.Duration) bool {
	return i.EscalationPending() && i.EscalatedAt != nil && now.Sub(*i.EscalatedAt) < lease
}
