package alerts

import (
	"errors"
	"strconv"

	"finwatch-backend/internal/middleware"
	"finwatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles risk alert handlers.
type Handlers struct {
	Service *Service
}

// List GET /api/v1/alerts?unresolved=true
func (h *Handlers) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	unresolvedOnly := c.Query("unresolved") == "true"

	alerts, err := h.Service.List(c.Context(), userID, unresolvedOnly)
	if err != nil {
		return response.Error(c, "Error fetching alerts", 500, nil)
	}
	return response.Success(c, "Alerts fetched successfully", fiber.Map{"alerts": alerts}, nil)
}

// Resolve PATCH /api/v1/alerts/:id/resolve
func (h *Handlers) Resolve(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	alertID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.Error(c, "Invalid alert ID", 400, nil)
	}

	alert, err := h.Service.Resolve(c.Context(), userID, uint(alertID))
	if err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.Error(c, "Error resolving alert", 500, nil)
	}
	return response.Success(c, "Alert resolved", fiber.Map{"alert": alert}, nil)
}

// ResolveAll PATCH /api/v1/alerts/resolve-all
func (h *Handlers) ResolveAll(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	count, err := h.Service.ResolveAll(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Error resolving alerts", 500, nil)
	}
	return response.Success(c, "Alerts resolved", fiber.Map{"resolved": count}, nil)
}
