package fraud

import (
	"finwatch-backend/internal/middleware"
	"finwatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles fraud analytics handlers.
type Handlers struct {
	Service  *AnalyticsService
	Provider ScoreProvider
}

// GetStats GET /api/v1/fraud/stats
func (h *Handlers) GetStats(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	stats, err := h.Service.Stats(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Failed to load fraud stats", 500, nil)
	}
	return response.Success(c, "Fraud stats fetched successfully", stats, nil)
}

// GetCases GET /api/v1/fraud/cases?page=&limit=
func (h *Handlers) GetCases(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	cases, meta, err := h.Service.Cases(c.Context(), userID, page, limit)
	if err != nil {
		return response.Error(c, "Failed to load fraud cases", 500, nil)
	}
	return response.Success(c, "Fraud cases fetched successfully", fiber.Map{"cases": cases}, meta)
}

// GetHistory GET /api/v1/fraud/history
func (h *Handlers) GetHistory(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	items, err := h.Service.History(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Failed to load history", 500, nil)
	}
	return response.Success(c, "Model history fetched successfully", fiber.Map{"items": items}, nil)
}

// GetGeo GET /api/v1/fraud/geo
func (h *Handlers) GetGeo(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	countries, err := h.Service.Geo(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Geo risk fetch failed", 500, nil)
	}
	return response.Success(c, "Geo risk fetched successfully", fiber.Map{"countries": countries}, nil)
}

// GetDetail GET /api/v1/fraud/detail/:txnId
func (h *Handlers) GetDetail(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	txnID := c.Params("txnId")
	detail, err := h.Service.Detail(c.Context(), userID, txnID)
	if err != nil {
		if err == ErrOutputNotFound {
			return response.NotFound(c, "Not found")
		}
		return response.Error(c, "Failed to load detail", 500, nil)
	}
	return response.Success(c, "Fraud detail fetched successfully", fiber.Map{"detail": detail}, nil)
}

// TestScore POST /api/v1/fraud/test
func (h *Handlers) TestScore(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var payload map[string]interface{}
	if err := c.BodyParser(&payload); err != nil || len(payload) == 0 {
		return response.Error(c, "A feature payload is required", 400, nil)
	}
	result, err := h.Service.TestScore(c.Context(), h.Provider, userID, middleware.GetUserCountry(c), payload)
	if err != nil {
		return response.Error(c, "Scoring failed", 500, nil)
	}
	return response.Success(c, "Payload scored successfully", result, nil)
}
