package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const sessionLocalKey = "auth_session"

// TokenMiddleware reads the bearer token or session cookie and attaches it
// to the request context for the Guard.
type TokenMiddleware struct {
	cookieName string
}

func NewTokenMiddleware(cookieName string) *TokenMiddleware {
	return &TokenMiddleware{cookieName: cookieName}
}

// Handle never rejects; missing tokens surface as Unauthorized at the guard.
func (m *TokenMiddleware) Handle(c *fiber.Ctx) error {
	c.SetUserContext(WithToken(c.UserContext(), m.Token(c)))
	return c.Next()
}

// Token prefers the Authorization header over the session cookie.
func (m *TokenMiddleware) Token(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Cookies(m.cookieName)
}
