// Package dashboards serves the BI dashboard listing for the portal. The
// dashboards themselves live in external BI tooling; this only exposes the
// role-filtered configuration rows.
package dashboards

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"ledgerline.com/xerobi/auth"
	"ledgerline.com/xerobi/pg/model"
)

type Handlers struct {
	store  model.Store
	logger *zap.Logger
}

func NewHandlers(store model.Store, logger *zap.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// List returns the dashboards the signed-in user's role may see.
// GET /dashboards
func (h *Handlers) List(c *fiber.Ctx) error {
	claims, ok := auth.SessionFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	dashboards, err := h.store.ListDashboardsForRole(c.Context(), claims.Role)
	if err != nil {
		h.logger.Error("list dashboards failed",
			zap.String("role", claims.Role), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if dashboards == nil {
		dashboards = []model.Dashboard{}
	}

	return c.JSON(dashboards)
}
