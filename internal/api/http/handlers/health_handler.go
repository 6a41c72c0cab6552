package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is a dependency the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Initializer brings the store to a usable state once.
type Initializer interface {
	Ensure(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	initializer Initializer
	store       Pinger
	redis       Pinger
}

// NewHealthHandler returns a new handler instance. A nil redis is reported as disabled.
func NewHealthHandler(serviceName, version string, initializer Initializer, store, redis Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, initializer: initializer, store: store, redis: redis}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready runs store initialization if still pending, then checks dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name string
		run  func(context.Context) error
	}{
		{"initialization", h.ensure},
		{"store", h.store.Ping},
		{"redis", h.pingRedis},
	}

	status := make(fiber.Map, len(checks))
	ready := true
	for _, check := range checks {
		switch err := check.run(ctx); {
		case errors.Is(err, errDisabled):
			status[check.name] = "disabled"
		case err != nil:
			status[check.name] = err.Error()
			ready = false
		default:
			status[check.name] = "ok"
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": status,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": status})
}

var errDisabled = errors.New("disabled")

func (h *HealthHandler) ensure(ctx context.Context) error {
	if h.initializer == nil {
		return errDisabled
	}
	return h.initializer.Ensure(ctx)
}

func (h *HealthHandler) pingRedis(ctx context.Context) error {
	if h.redis == nil {
		return errDisabled
	}
	return h.redis.Ping(ctx)
}
