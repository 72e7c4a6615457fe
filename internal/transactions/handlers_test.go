package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"finwatch-backend/internal/domain"
	"finwatch-backend/internal/fraud"
	"finwatch-backend/internal/guard"
	"finwatch-backend/internal/holdings"
	"finwatch-backend/internal/ledger"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubProvider struct {
	score *fraud.Score
	err   error
}

func (s *stubProvider) Score(ctx context.Context, features interface{}) (*fraud.Score, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.score, nil
}

type fixture struct {
	handlers *Handlers
	db       *gorm.DB
	userID   uuid.UUID
	holding  domain.Holding
}

func setupTxnTest(t *testing.T, provider fraud.ScoreProvider) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Portfolio{}, &domain.Holding{}, &domain.TradeTransaction{},
		&domain.RiskAlert{}, &domain.FraudCase{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	userID := uuid.New()
	portfolio := domain.Portfolio{UserID: userID, Name: "Main"}
	require.NoError(t, db.Create(&portfolio).Error)
	holding := domain.Holding{PortfolioID: portfolio.PortfolioID, Symbol: "TCS"}
	require.NoError(t, db.Create(&holding).Error)

	svc := &Service{
		DB:     db,
		Ledger: ledger.NewService(db),
		Pipeline: &fraud.Pipeline{
			DB:            db,
			Provider:      provider,
			Outputs:       &fraud.OutputStore{Rdb: rdb},
			RiskThreshold: 0.10,
			CaseThreshold: 0.70,
			FailurePolicy: "fail-open-zero",
		},
		Holdings: &holdings.Service{DB: db, Guard: &guard.DeletionGuard{DB: db}},
	}
	return &fixture{
		handlers: &Handlers{Service: svc},
		db:       db,
		userID:   userID,
		holding:  holding,
	}
}

func (f *fixture) app() *fiber.App {
	app := fiber.New()
	uid := f.userID
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"user_id": uid.String(),
			"country": "IN",
		})
		return c.Next()
	})
	app.Post("/transactions/add", f.handlers.Add)
	app.Get("/holdings/:holdingId/transactions", f.handlers.List)
	app.Delete("/transactions/:id", f.handlers.Delete)
	return app
}

func postTxn(t *testing.T, app *fiber.App, holdingID uuid.UUID, txnType string, qty, price float64) (int, map[string]interface{}) {
	body, _ := json.Marshal(map[string]interface{}{
		"holdingId": holdingID.String(),
		"symbol":    "TCS",
		"qty":       qty,
		"price":     price,
		"txn_type":  txnType,
	})
	req := httptest.NewRequest("POST", "/transactions/add", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func holdingData(body map[string]interface{}) map[string]interface{} {
	data, _ := body["data"].(map[string]interface{})
	h, _ := data["updatedHolding"].(map[string]interface{})
	return h
}

func TestAddTransaction_MissingFields(t *testing.T) {
	f := setupTxnTest(t, &stubProvider{score: &fraud.Score{}})
	app := f.app()

	body, _ := json.Marshal(map[string]interface{}{"symbol": "TCS"})
	req := httptest.NewRequest("POST", "/transactions/add", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	var count int64
	f.db.Model(&domain.TradeTransaction{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestAddTransaction_NotOwnedHoldingIs404(t *testing.T) {
	f := setupTxnTest(t, &stubProvider{score: &fraud.Score{}})

	other := domain.Portfolio{UserID: uuid.New(), Name: "Theirs"}
	require.NoError(t, f.db.Create(&other).Error)
	theirs := domain.Holding{PortfolioID: other.PortfolioID, Symbol: "INFY"}
	require.NoError(t, f.db.Create(&theirs).Error)

	status, _ := postTxn(t, f.app(), theirs.HoldingID, domain.TxnTypeBuy, 1, 10)
	assert.Equal(t, 404, status)
}

func TestAddTransaction_OversellRejected(t *testing.T) {
	f := setupTxnTest(t, &stubProvider{score: &fraud.Score{}})
	app := f.app()

	status, _ := postTxn(t, app, f.holding.HoldingID, domain.TxnTypeBuy, 5, 100)
	require.Equal(t, 201, status)

	status, body := postTxn(t, app, f.holding.HoldingID, domain.TxnTypeSell, 6, 100)
	assert.Equal(t, 400, status)
	errObj, _ := body["error"].(map[string]interface{})
	assert.Equal(t, "Cannot sell more than you hold", errObj["message"])

	var reloaded domain.Holding
	require.NoError(t, f.db.First(&reloaded, "holding_id = ?", f.holding.HoldingID).Error)
	assert.InDelta(t, 5.0, reloaded.Quantity, 1e-6)
}

func TestAddTransaction_ScoringDownStillCommits(t *testing.T) {
	f := setupTxnTest(t, &stubProvider{err: errors.New("ml service unreachable")})
	app := f.app()

	status, body := postTxn(t, app, f.holding.HoldingID, domain.TxnTypeBuy, 10, 100)
	assert.Equal(t, 201, status)

	data, _ := body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["fraudScore"])
	h := holdingData(body)
	assert.InDelta(t, 10.0, h["quantity"].(float64), 1e-6)
	assert.InDelta(t, 100.0, h["avg_price"].(float64), 1e-6)

	var count int64
	f.db.Model(&domain.TradeTransaction{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAddTransaction_HighScoreSurfacesFraudFeedback(t *testing.T) {
	f := setupTxnTest(t, &stubProvider{score: &fraud.Score{
		FraudProbability: 0.82,
		Label:            1,
		Reasons:          []string{"amount_spike"},
	}})
	app := f.app()

	status, body := postTxn(t, app, f.holding.HoldingID, domain.TxnTypeBuy, 100, 9999)
	assert.Equal(t, 201, status)

	data, _ := body["data"].(map[string]interface{})
	assert.InDelta(t, 0.82, data["fraudScore"].(float64), 1e-9)
	assert.Equal(t, float64(1), data["label"])

	var alerts, cases int64
	f.db.Model(&domain.RiskAlert{}).Count(&alerts)
	f.db.Model(&domain.FraudCase{}).Count(&cases)
	assert.Equal(t, int64(1), alerts)
	assert.Equal(t, int64(1), cases)
}

func TestListTransactions(t *testing.T) {
	f := setupTxnTest(t, &stubProvider{score: &fraud.Score{}})
	app := f.app()

	for i := 0; i < 3; i++ {
		status, _ := postTxn(t, app, f.holding.HoldingID, domain.TxnTypeBuy, 1, 100)
		require.Equal(t, 201, status)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/holdings/"+f.holding.HoldingID.String()+"/transactions?page=1&limit=2", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	data, _ := body["data"].(map[string]interface{})
	list, _ := data["transactions"].([]interface{})
	assert.Len(t, list, 2)
	meta, _ := body["metadata"].(map[string]interface{})
	assert.Equal(t, float64(3), meta["total_items"])
}

func TestDeleteTransaction_NotFound(t *testing.T) {
	f := setupTxnTest(t, &stubProvider{score: &fraud.Score{}})
	resp, err := f.app().Test(httptest.NewRequest("DELETE", "/transactions/"+uuid.New().String(), nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

// Full lifecycle: two buys and a sell, then deleting the sell restores the
// holding to the pre-sell state via replay.
func TestTransactionLifecycle(t *testing.T) {
	f := setupTxnTest(t, &stubProvider{score: &fraud.Score{}})
	app := f.app()

	status, body := postTxn(t, app, f.holding.HoldingID, domain.TxnTypeBuy, 10, 100)
	require.Equal(t, 201, status)
	h := holdingData(body)
	assert.InDelta(t, 10.0, h["quantity"].(float64), 1e-6)
	assert.InDelta(t, 100.0, h["avg_price"].(float64), 1e-6)

	status, body = postTxn(t, app, f.holding.HoldingID, domain.TxnTypeBuy, 10, 200)
	require.Equal(t, 201, status)
	h = holdingData(body)
	assert.InDelta(t, 20.0, h["quantity"].(float64), 1e-6)
	assert.InDelta(t, 150.0, h["avg_price"].(float64), 1e-6)

	status, body = postTxn(t, app, f.holding.HoldingID, domain.TxnTypeSell, 5, 180)
	require.Equal(t, 201, status)
	h = holdingData(body)
	assert.InDelta(t, 15.0, h["quantity"].(float64), 1e-6)
	assert.InDelta(t, 150.0, h["avg_price"].(float64), 1e-6)

	data, _ := body["data"].(map[string]interface{})
	txnObj, _ := data["transaction"].(map[string]interface{})
	sellID, _ := txnObj["txn_id"].(string)
	require.NotEmpty(t, sellID)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/transactions/"+sellID, nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var delBody map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&delBody)
	h = holdingData(delBody)
	assert.InDelta(t, 20.0, h["quantity"].(float64), 1e-6)
	assert.InDelta(t, 150.0, h["avg_price"].(float64), 1e-6)

	var reloaded domain.Holding
	require.NoError(t, f.db.First(&reloaded, "holding_id = ?", f.holding.HoldingID).Error)
	assert.InDelta(t, 20.0, reloaded.Quantity, 1e-6)
	assert.InDelta(t, 150.0, reloaded.AvgPrice, 1e-6)
}
