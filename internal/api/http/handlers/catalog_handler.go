package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/service"
)

// CatalogHandler serves applications and categories.
type CatalogHandler struct {
	service *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: catalog}
}

// ListApplications GET /api/applications?include_inactive=true.
func (h *CatalogHandler) ListApplications(c *fiber.Ctx) error {
	apps, err := h.service.ListApplications(c.UserContext(), parseBool(c.Query("include_inactive")))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, apps)
}

func (h *CatalogHandler) CreateApplication(c *fiber.Ctx) error {
	var input service.ApplicationInput
	if err := decode(c, &input); err != nil {
		return err
	}
	app, err := h.service.CreateApplication(c.UserContext(), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, app)
}

func (h *CatalogHandler) UpdateApplication(c *fiber.Ctx) error {
	var input service.ApplicationInput
	if err := decode(c, &input); err != nil {
		return err
	}
	app, err := h.service.UpdateApplication(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, app)
}

func (h *CatalogHandler) DeleteApplication(c *fiber.Ctx) error {
	if err := h.service.DeleteApplication(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListCategories GET /api/categories?application_id=...&include_inactive=true.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext(), c.Query("application_id"), parseBool(c.Query("include_inactive")))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, categories)
}

func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var input service.CategoryInput
	if err := decode(c, &input); err != nil {
		return err
	}
	category, err := h.service.CreateCategory(c.UserContext(), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, category)
}

func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	var input service.CategoryInput
	if err := decode(c, &input); err != nil {
		return err
	}
	category, err := h.service.UpdateCategory(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, category)
}

func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	if err := h.service.DeleteCategory(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
