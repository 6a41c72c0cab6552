package dto

import (
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/service"
)

// StatusRequest payload for POST /api/issues/:id/status.
type StatusRequest struct {
	Status domain.IssueStatus `json:"status" validate:"required,oneof=new in_progress awaiting_customer resolved closed"`
}

// AssignRequest payload for POST /api/issues/:id/assign. An empty id unassigns.
type AssignRequest struct {
	AssignedToID string `json:"assignedToId"`
}

// BulkUpdateRequest applies one update to several issues.
type BulkUpdateRequest struct {
	IssueIDs []string            `json:"issueIds" validate:"required,min=1,max=100,dive,required"`
	Updates  service.IssueUpdate `json:"updates"`
}

// IssueListResponse is one page of issues.
type IssueListResponse struct {
	Items    []*domain.Issue `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}
