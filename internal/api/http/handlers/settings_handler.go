package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/service"
)

type SettingsHandler struct {
	service *service.OrganizationService
}

func NewSettingsHandler(orgs *service.OrganizationService) *SettingsHandler {
	return &SettingsHandler{service: orgs}
}

// Get GET /api/settings.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	org, err := h.service.GetSettings(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, org)
}

// Update PUT /api/settings.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var input service.SettingsInput
	if err := decode(c, &input); err != nil {
		return err
	}
	org, err := h.service.UpdateSettings(c.UserContext(), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, org)
}
