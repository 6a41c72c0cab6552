package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/api/dto"
	"github.com/spec-kit/issue-tracker/internal/service"
)

// UsersHandler manages organization members.
type UsersHandler struct {
	service *service.UserService
}

func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{service: users}
}

// List GET /api/users?include_inactive=true.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext(), parseBool(c.Query("include_inactive")))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, users)
}

// Assignable GET /api/users/assignable.
func (h *UsersHandler) Assignable(c *fiber.Ctx) error {
	users, err := h.service.ListAssignableUsers(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, users)
}

// SearchMembers GET /api/members/search?email=...
func (h *UsersHandler) SearchMembers(c *fiber.Ctx) error {
	matches, err := h.service.SearchMembers(c.UserContext(), c.Query("email"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, matches)
}

// Add POST /api/users.
func (h *UsersHandler) Add(c *fiber.Ctx) error {
	var input service.AddUserInput
	if err := decode(c, &input); err != nil {
		return err
	}
	user, err := h.service.AddUser(c.UserContext(), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, user)
}

// UpdateRole PUT /api/users/:id/role.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	var input service.RoleInput
	if err := decode(c, &input); err != nil {
		return err
	}
	user, err := h.service.UpdateUserRole(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, user)
}

// ResetPermissions POST /api/users/:id/permissions/reset.
func (h *UsersHandler) ResetPermissions(c *fiber.Ctx) error {
	user, err := h.service.ResetPermissions(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, user)
}

// ToggleActive POST /api/users/:id/toggle-active.
func (h *UsersHandler) ToggleActive(c *fiber.Ctx) error {
	user, err := h.service.ToggleUserActivation(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.ActivationResponse{UserID: user.ID, IsActive: user.IsActive})
}

// Remove DELETE /api/users/:id.
func (h *UsersHandler) Remove(c *fiber.Ctx) error {
	if err := h.service.RemoveUser(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
