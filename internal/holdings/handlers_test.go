package holdings

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"finwatch-backend/internal/domain"
	"finwatch-backend/internal/guard"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHoldingsTest(t *testing.T) (*Handlers, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Portfolio{}, &domain.Holding{}, &domain.TradeTransaction{},
	))
	svc := &Service{DB: db, Guard: &guard.DeletionGuard{DB: db}}
	return &Handlers{Service: svc}, db
}

func appWithUser(userID uuid.UUID, h *Handlers) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"user_id": userID.String()})
		return c.Next()
	})
	app.Get("/portfolio/:portfolioId/holdings", h.List)
	app.Post("/holdings/create", h.Create)
	app.Delete("/holdings/:id", h.Delete)
	return app
}

func TestCreateHolding(t *testing.T) {
	h, db := setupHoldingsTest(t)
	userID := uuid.New()
	portfolio := domain.Portfolio{UserID: userID, Name: "Main"}
	require.NoError(t, db.Create(&portfolio).Error)

	app := appWithUser(userID, h)
	body, _ := json.Marshal(map[string]interface{}{
		"portfolio_id": portfolio.PortfolioID.String(),
		"symbol":       "TCS",
		"quantity":     10,
		"avg_price":    3500.5,
	})
	req := httptest.NewRequest("POST", "/holdings/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	var saved domain.Holding
	require.NoError(t, db.First(&saved).Error)
	assert.Equal(t, "TCS", saved.Symbol)
	assert.InDelta(t, 3500.5, saved.AvgPrice, 1e-6)
}

func TestCreateHolding_OtherUsersPortfolio(t *testing.T) {
	h, db := setupHoldingsTest(t)
	portfolio := domain.Portfolio{UserID: uuid.New(), Name: "Theirs"}
	require.NoError(t, db.Create(&portfolio).Error)

	app := appWithUser(uuid.New(), h)
	body, _ := json.Marshal(map[string]interface{}{
		"portfolio_id": portfolio.PortfolioID.String(),
		"symbol":       "TCS",
	})
	req := httptest.NewRequest("POST", "/holdings/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestListHoldings(t *testing.T) {
	h, db := setupHoldingsTest(t)
	userID := uuid.New()
	portfolio := domain.Portfolio{UserID: userID, Name: "Main"}
	require.NoError(t, db.Create(&portfolio).Error)
	for _, sym := range []string{"TCS", "INFY", "HDFC"} {
		require.NoError(t, db.Create(&domain.Holding{PortfolioID: portfolio.PortfolioID, Symbol: sym}).Error)
	}

	app := appWithUser(userID, h)
	resp, err := app.Test(httptest.NewRequest("GET", "/portfolio/"+portfolio.PortfolioID.String()+"/holdings?page=1&limit=2", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	data, _ := body["data"].(map[string]interface{})
	list, _ := data["holdings"].([]interface{})
	assert.Len(t, list, 2)
	meta, _ := body["metadata"].(map[string]interface{})
	assert.Equal(t, float64(3), meta["total_items"])
	assert.Equal(t, float64(2), meta["total_pages"])
}

func TestDeleteHolding_GuardBlocksWithTransactions(t *testing.T) {
	h, db := setupHoldingsTest(t)
	userID := uuid.New()
	portfolio := domain.Portfolio{UserID: userID, Name: "Main"}
	require.NoError(t, db.Create(&portfolio).Error)
	holding := domain.Holding{PortfolioID: portfolio.PortfolioID, Symbol: "TCS"}
	require.NoError(t, db.Create(&holding).Error)
	txn := domain.TradeTransaction{
		HoldingID: holding.HoldingID, PortfolioID: portfolio.PortfolioID,
		TxnType: domain.TxnTypeBuy, Symbol: "TCS", Qty: 1, Price: 10, Total: 10,
		Status: "completed",
	}
	require.NoError(t, db.Create(&txn).Error)

	app := appWithUser(userID, h)
	resp, err := app.Test(httptest.NewRequest("DELETE", "/holdings/"+holding.HoldingID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	errObj, _ := body["error"].(map[string]interface{})
	assert.Equal(t, "Cannot delete holding with transactions.", errObj["message"])

	require.NoError(t, db.Delete(&domain.TradeTransaction{}, "txn_id = ?", txn.TxnID).Error)
	resp, err = app.Test(httptest.NewRequest("DELETE", "/holdings/"+holding.HoldingID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestDeleteHolding_NotOwnedIsNotFound(t *testing.T) {
	h, db := setupHoldingsTest(t)
	portfolio := domain.Portfolio{UserID: uuid.New(), Name: "Theirs"}
	require.NoError(t, db.Create(&portfolio).Error)
	holding := domain.Holding{PortfolioID: portfolio.PortfolioID, Symbol: "TCS"}
	require.NoError(t, db.Create(&holding).Error)

	app := appWithUser(uuid.New(), h)
	resp, err := app.Test(httptest.NewRequest("DELETE", "/holdings/"+holding.HoldingID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
