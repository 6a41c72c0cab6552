package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/api/dto"
	"github.com/spec-kit/issue-tracker/internal/service"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// IntegrationsHandler exposes Jira connectivity checks to admins.
type IntegrationsHandler struct {
	escalation *service.EscalationService
}

func NewIntegrationsHandler(escalation *service.EscalationService) *IntegrationsHandler {
	return &IntegrationsHandler{escalation: escalation}
}

// Projects GET /api/integrations/jira/projects.
func (h *IntegrationsHandler) Projects(c *fiber.Ctx) error {
	projects, err := h.escalation.ListProjects(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, projects)
}

// IssueTypes GET /api/integrations/jira/projects/:key/issue-types.
func (h *IntegrationsHandler) IssueTypes(c *fiber.Ctx) error {
	types, err := h.escalation.ListIssueTypes(c.UserContext(), strings.ToUpper(c.Params("key")))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, types)
}

// Diagnostics GET /api/integrations/jira/diagnostics?projectKey=KEY.
func (h *IntegrationsHandler) Diagnostics(c *fiber.Ctx) error {
	var query dto.DiagnosticsQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := service.Validate(query); err != nil {
		return err
	}
	diagnosis, err := h.escalation.Diagnose(c.UserContext(), query.ProjectKey)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, diagnosis)
}
