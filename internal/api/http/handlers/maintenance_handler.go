package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/service"
)

type MaintenanceHandler struct {
	reconcile *service.ReconcileService
}

func NewMaintenanceHandler(reconcile *service.ReconcileService) *MaintenanceHandler {
	return &MaintenanceHandler{reconcile: reconcile}
}

// Reconcile POST /api/maintenance/reconcile repairs the caller's counters.
func (h *MaintenanceHandler) Reconcile(c *fiber.Ctx) error {
	report, err := h.reconcile.ReconcileMine(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, report)
}
