package portfolios

import (
	"errors"

	"finwatch-backend/internal/events"
	"finwatch-backend/internal/guard"
	"finwatch-backend/internal/middleware"
	"finwatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles portfolio handlers.
type Handlers struct {
	Service *Service
	Events  *events.Publisher
}

// List GET /api/v1/portfolio/list?page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 5)

	portfolios, meta, err := h.Service.List(c.Context(), userID, page, limit)
	if err != nil {
		return response.Error(c, "Server error fetching portfolios.", 500, nil)
	}
	return response.Success(c, "Portfolios fetched successfully", fiber.Map{"portfolios": portfolios}, meta)
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create POST /api/v1/portfolio/create
func (h *Handlers) Create(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, ErrNameRequired.Error(), 400, nil)
	}

	portfolio, err := h.Service.Create(c.Context(), userID, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, ErrNameRequired) {
			return response.Error(c, err.Error(), 400, nil)
		}
		return response.Error(c, "Server error creating portfolio.", 500, nil)
	}

	h.Events.Publish(c.Context(), userID.String(), events.TypePortfolioNew, portfolio)
	return response.SuccessCreated(c, "Portfolio created", fiber.Map{"portfolio": portfolio}, nil)
}

// Delete DELETE /api/v1/portfolio/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	portfolioID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid portfolio ID format (must be a valid UUID)", 400, nil)
	}

	if err := h.Service.Delete(c.Context(), userID, portfolioID); err != nil {
		switch {
		case errors.Is(err, ErrPortfolioNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, guard.ErrPortfolioHasHoldings):
			return response.Error(c, err.Error(), 400, nil)
		default:
			return response.Error(c, "Server error deleting portfolio.", 500, nil)
		}
	}
	return response.Success(c, "Portfolio deleted", fiber.Map{"success": true}, nil)
}
