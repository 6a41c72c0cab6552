package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// RequireSession rejects unauthenticated requests before any handler runs
// and exposes the session to handlers.
func RequireSession(guard *Guard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := guard.RequireAuthenticated(c.UserContext())
		if err != nil {
			return err
		}
		c.Locals(sessionLocalKey, session)
		return c.Next()
	}
}

// RequirePermission gates a route on a permission.
func RequirePermission(guard *Guard, permission domain.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := guard.RequirePermission(c.UserContext(), permission)
		if err != nil {
			return err
		}
		c.Locals(sessionLocalKey, session)
		return c.Next()
	}
}

// SessionFromContext retrieves the session set by RequireSession.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	val := c.Locals(sessionLocalKey)
	if val == nil {
		return nil, false
	}
	session, ok := val.(*domain.Session)
	return session, ok
}
