package transactions

import (
	"errors"

	"finwatch-backend/internal/ledger"
	"finwatch-backend/internal/middleware"
	"finwatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles trade transaction handlers.
type Handlers struct {
	Service *Service
}

type addRequest struct {
	HoldingID string  `json:"holdingId"`
	Symbol    string  `json:"symbol"`
	Qty       float64 `json:"qty"`
	Price     float64 `json:"price"`
	TxnType   string  `json:"txn_type"`
}

// Add POST /api/v1/transactions/add
func (h *Handlers) Add(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req addRequest
	if err := c.BodyParser(&req); err != nil ||
		req.HoldingID == "" || req.Symbol == "" || req.Qty == 0 || req.Price == 0 || req.TxnType == "" {
		return response.Error(c, ErrFieldsRequired.Error(), 400, nil)
	}
	holdingID, err := uuid.Parse(req.HoldingID)
	if err != nil {
		return response.Error(c, "Invalid Holding ID format (must be a valid UUID)", 400, nil)
	}

	result, err := h.Service.Add(c.Context(), userID, middleware.GetUserCountry(c), AddInput{
		HoldingID: holdingID,
		TxnType:   req.TxnType,
		Qty:       req.Qty,
		Price:     req.Price,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrHoldingNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, ledger.ErrInsufficientQuantity),
			errors.Is(err, ledger.ErrInvalidTxnType),
			errors.Is(err, ledger.ErrInvalidAmount):
			return response.Error(c, err.Error(), 400, nil)
		default:
			return response.Error(c, "Error adding transaction", 500, nil)
		}
	}

	var meta interface{}
	if len(result.Fraud.Warnings) > 0 {
		meta = fiber.Map{"warnings": result.Fraud.Warnings}
	}
	return response.SuccessCreated(c, "Transaction added", fiber.Map{
		"transaction": result.Transaction,
		"updatedHolding": fiber.Map{
			"id":        result.UpdatedHolding.HoldingID,
			"quantity":  result.UpdatedHolding.Quantity,
			"avg_price": result.UpdatedHolding.AvgPrice,
		},
		"fraudScore": result.Fraud.FraudScore,
		"label":      result.Fraud.Label,
		"reasons":    result.Fraud.Reasons,
	}, meta)
}

// List GET /api/v1/holdings/:holdingId/transactions?page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	holdingID, err := uuid.Parse(c.Params("holdingId"))
	if err != nil {
		return response.Error(c, "Invalid Holding ID format (must be a valid UUID)", 400, nil)
	}
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 5)

	txns, meta, err := h.Service.ListByHolding(c.Context(), userID, holdingID, page, limit)
	if err != nil {
		if errors.Is(err, ErrHoldingNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.Error(c, "Error fetching transactions", 500, nil)
	}
	return response.Success(c, "Transactions fetched successfully", fiber.Map{"transactions": txns}, meta)
}

// Delete DELETE /api/v1/transactions/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	txnID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid transaction ID format (must be a valid UUID)", 400, nil)
	}

	updated, err := h.Service.Delete(c.Context(), userID, txnID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.Error(c, "Error deleting transaction", 500, nil)
	}
	return response.Success(c, "Transaction deleted", fiber.Map{
		"success": true,
		"updatedHolding": fiber.Map{
			"id":        updated.HoldingID,
			"quantity":  updated.Quantity,
			"avg_price": updated.AvgPrice,
		},
	}, nil)
}
