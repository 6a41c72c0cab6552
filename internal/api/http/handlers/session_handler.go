package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/api/dto"
	"github.com/spec-kit/issue-tracker/internal/auth"
)

const defaultCookieLifetime = 24 * time.Hour

// SessionHandler exchanges identity provider tokens for session cookies.
type SessionHandler struct {
	guard        *auth.Guard
	cookieName   string
	secureCookie bool
}

func NewSessionHandler(guard *auth.Guard, cookieName string, secureCookie bool) *SessionHandler {
	return &SessionHandler{guard: guard, cookieName: cookieName, secureCookie: secureCookie}
}

// Login POST /auth/session. The token is verified before the cookie is set.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.SessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := h.guard.RequireAuthenticated(auth.WithToken(c.UserContext(), req.Token))
	if err != nil {
		return err
	}
	expires := session.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(defaultCookieLifetime)
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    req.Token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return data(c, http.StatusOK, dto.NewSessionResponse(session))
}

// Logout POST /auth/logout.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.SendStatus(http.StatusNoContent)
}

// Current GET /api/session.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	session, err := h.guard.RequireAuthenticated(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewSessionResponse(session))
}
