package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenMiddlewareSources(t *testing.T) {
	guard, _ := newStaticGuard()
	mw := NewTokenMiddleware("session_jwt")

	app := fiber.New()
	app.Use(mw.Handle)
	app.Get("/whoami", RequireSession(guard), func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(session.UserID)
	})

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
	}{
		{name: "bearer header", header: "Bearer agent", wantStatus: 200},
		{name: "lowercase scheme", header: "bearer viewer", wantStatus: 200},
		{name: "cookie", cookie: "agent", wantStatus: 200},
		{name: "header wins over cookie", header: "Bearer nobody", cookie: "agent", wantStatus: 500},
		{name: "basic scheme ignored", header: "Basic agent", wantStatus: 500},
		{name: "anonymous", wantStatus: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.Header.Set("Cookie", "session_jwt="+tt.cookie)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
