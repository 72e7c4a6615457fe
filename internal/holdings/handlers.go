package holdings

import (
	"errors"

	"finwatch-backend/internal/guard"
	"finwatch-backend/internal/middleware"
	"finwatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles holding handlers.
type Handlers struct {
	Service *Service
}

// List GET /api/v1/portfolio/:portfolioId/holdings?page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	portfolioID, err := uuid.Parse(c.Params("portfolioId"))
	if err != nil {
		return response.Error(c, "Invalid portfolio ID format (must be a valid UUID)", 400, nil)
	}
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 5)

	holdings, meta, err := h.Service.ListByPortfolio(c.Context(), userID, portfolioID, page, limit)
	if err != nil {
		if errors.Is(err, ErrPortfolioNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.Error(c, "Error fetching holdings", 500, nil)
	}
	return response.Success(c, "Holdings fetched successfully", fiber.Map{"holdings": holdings}, meta)
}

type createRequest struct {
	PortfolioID string  `json:"portfolio_id"`
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AvgPrice    float64 `json:"avg_price"`
	Currency    string  `json:"currency"`
}

// Create POST /api/v1/holdings/create
func (h *Handlers) Create(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil || req.PortfolioID == "" || req.Symbol == "" {
		return response.Error(c, ErrFieldsRequired.Error(), 400, nil)
	}
	portfolioID, err := uuid.Parse(req.PortfolioID)
	if err != nil {
		return response.Error(c, "Invalid portfolio ID format (must be a valid UUID)", 400, nil)
	}

	holding, err := h.Service.Create(c.Context(), userID, CreateInput{
		PortfolioID: portfolioID,
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		AvgPrice:    req.AvgPrice,
		Currency:    req.Currency,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrFieldsRequired):
			return response.Error(c, err.Error(), 400, nil)
		case errors.Is(err, ErrPortfolioNotFound):
			return response.NotFound(c, err.Error())
		default:
			return response.Error(c, "Error adding holding", 500, nil)
		}
	}
	return response.SuccessCreated(c, "Holding created", fiber.Map{"holding": holding}, nil)
}

// Delete DELETE /api/v1/holdings/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	holdingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid Holding ID format (must be a valid UUID)", 400, nil)
	}

	if err := h.Service.Delete(c.Context(), userID, holdingID); err != nil {
		switch {
		case errors.Is(err, ErrHoldingNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, guard.ErrHoldingHasTransactions):
			return response.Error(c, err.Error(), 400, nil)
		default:
			return response.Error(c, "Error deleting holding", 500, nil)
		}
	}
	return response.Success(c, "Holding deleted", fiber.Map{"success": true}, nil)
}
