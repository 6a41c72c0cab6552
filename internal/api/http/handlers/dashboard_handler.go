package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/service"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// DashboardHandler serves statistics and reports.
type DashboardHandler struct {
	service *service.DashboardService
}

func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: dashboard}
}

// Stats GET /api/dashboard/stats?from=...&to=... (RFC3339).
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	var window domain.DateRange
	from, err := parseTime(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTime(c, "to")
	if err != nil {
		return err
	}
	if from != nil {
		window.From = *from
	}
	if to != nil {
		window.To = *to
	}
	stats, err := h.service.Stats(c.UserContext(), window)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, stats)
}

// Activity GET /api/dashboard/activity?limit=N.
func (h *DashboardHandler) Activity(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return apperrors.NewFieldValidationError(map[string]string{"limit": "must be a number between 1 and 100"})
		}
		limit = parsed
	}
	items, err := h.service.RecentActivity(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, items)
}

// CustomerReport GET /api/reports/customers.
func (h *DashboardHandler) CustomerReport(c *fiber.Ctx) error {
	rows, err := h.service.CustomerReport(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, rows)
}

// ApplicationReport GET /api/reports/applications.
func (h *DashboardHandler) ApplicationReport(c *fiber.Ctx) error {
	rows, err := h.service.ApplicationReport(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, rows)
}
