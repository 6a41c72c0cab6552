package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/spec-kit/issue-tracker/internal/api/dto"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
	"github.com/spec-kit/issue-tracker/internal/service"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// IssuesHandler serves issues, their comments and escalation.
type IssuesHandler struct {
	issues     *service.IssueService
	escalation *service.EscalationService
}

func NewIssuesHandler(issues *service.IssueService, escalation *service.EscalationService) *IssuesHandler {
	return &IssuesHandler{issues: issues, escalation: escalation}
}

// CreateIssue POST /api/issues.
func (h *IssuesHandler) CreateIssue(c *fiber.Ctx) error {
	var input service.CreateIssueInput
	if err := decode(c, &input); err != nil {
		return err
	}
	issue, err := h.issues.CreateIssue(c.UserContext(), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, issue)
}

// ListIssues GET /api/issues.
func (h *IssuesHandler) ListIssues(c *fiber.Ctx) error {
	filter, page, pageSize, err := parseIssueQuery(c)
	if err != nil {
		return err
	}
	result, err := h.issues.ListIssues(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.IssueListResponse{
		Items:    result.Items,
		Total:    result.Total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetIssue GET /api/issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	issue, err := h.issues.GetIssue(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, issue)
}

// UpdateIssue PATCH /api/issues/:id.
func (h *IssuesHandler) UpdateIssue(c *fiber.Ctx) error {
	var update service.IssueUpdate
	if err := decode(c, &update); err != nil {
		return err
	}
	issue, err := h.issues.UpdateIssue(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, issue)
}

// ChangeStatus POST /api/issues/:id/status.
func (h *IssuesHandler) ChangeStatus(c *fiber.Ctx) error {
	var req dto.StatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	issue, err := h.issues.ChangeStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, issue)
}

// AssignIssue POST /api/issues/:id/assign.
func (h *IssuesHandler) AssignIssue(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	issue, err := h.issues.AssignIssue(c.UserContext(), c.Params("id"), strings.TrimSpace(req.AssignedToID))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, issue)
}

// BulkUpdate POST /api/issues/bulk. A partial result is returned with the error.
func (h *IssuesHandler) BulkUpdate(c *fiber.Ctx) error {
	var req dto.BulkUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.issues.BulkUpdateIssues(c.UserContext(), req.IssueIDs, req.Updates)
	if err != nil {
		if result == nil {
			return err
		}
		domainErr := *apperrors.ToDomainError(err)
		domainErr.Details = lo.Assign(domainErr.Details, map[string]any{
			"updated":  result.Updated,
			"issueIds": result.IssueIDs,
		})
		return &domainErr
	}
	return data(c, http.StatusOK, result)
}

// DeleteIssue DELETE /api/issues/:id.
func (h *IssuesHandler) DeleteIssue(c *fiber.Ctx) error {
	if err := h.issues.DeleteIssue(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Escalate POST /api/issues/:id/escalate.
func (h *IssuesHandler) Escalate(c *fiber.Ctx) error {
	var input service.EscalateInput
	if len(c.Body()) > 0 {
		if err := decode(c, &input); err != nil {
			return err
		}
	}
	issue, err := h.escalation.Escalate(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, issue)
}

// GenerateBugReport POST /api/issues/:id/bug-report.
func (h *IssuesHandler) GenerateBugReport(c *fiber.Ctx) error {
	report, err := h.issues.GenerateBugReport(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, report)
}

// ListComments GET /api/issues/:id/comments.
func (h *IssuesHandler) ListComments(c *fiber.Ctx) error {
	comments, err := h.issues.ListComments(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, comments)
}

// AddComment POST /api/issues/:id/comments.
func (h *IssuesHandler) AddComment(c *fiber.Ctx) error {
	var input service.AddCommentInput
	if err := decode(c, &input); err != nil {
		return err
	}
	comment, err := h.issues.AddComment(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, comment)
}

// DeleteComment DELETE /api/comments/:id.
func (h *IssuesHandler) DeleteComment(c *fiber.Ctx) error {
	if err := h.issues.DeleteComment(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseIssueQuery(c *fiber.Ctx) (repository.IssueFilter, int, int, error) {
	filter := repository.IssueFilter{
		Statuses: lo.Map(splitList(c.Query("status")), func(s string, _ int) domain.IssueStatus {
			return domain.IssueStatus(s)
		}),
		Priorities: lo.Map(splitList(c.Query("priority")), func(p string, _ int) domain.IssuePriority {
			return domain.IssuePriority(p)
		}),
		AssignedToID:  c.Query("assigned_to"),
		CustomerID:    c.Query("customer_id"),
		ApplicationID: c.Query("application_id"),
		Category:      c.Query("category"),
		Search:        strings.TrimSpace(c.Query("search")),
		SortBy:        c.Query("sort_by"),
		SortDesc:      !strings.EqualFold(c.Query("sort_order"), "asc"),
	}
	var err error
	if filter.CreatedFrom, err = parseTime(c, "created_from"); err != nil {
		return filter, 0, 0, err
	}
	if filter.CreatedTo, err = parseTime(c, "created_to"); err != nil {
		return filter, 0, 0, err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, page, pageSize, nil
}
