package ledger

import (
	"context"
	"sync"
	"testing"

	"finwatch-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLedgerTest(t *testing.T) (*Service, domain.Holding) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Portfolio{}, &domain.Holding{}, &domain.TradeTransaction{},
	))

	portfolio := domain.Portfolio{UserID: uuid.New(), Name: "Main"}
	require.NoError(t, db.Create(&portfolio).Error)

	holding := domain.Holding{
		PortfolioID: portfolio.PortfolioID,
		Symbol:      "TCS",
		Quantity:    0,
		AvgPrice:    0,
	}
	require.NoError(t, db.Create(&holding).Error)

	return NewService(db), holding
}

func TestApplyTransaction_BuyWeightedAverage(t *testing.T) {
	svc, h := setupLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()

	buys := []struct{ qty, price float64 }{
		{10, 100}, {10, 200}, {5, 300},
	}
	var sumQty, sumCost float64
	for _, b := range buys {
		res, err := svc.ApplyTransaction(ctx, userID, ApplyInput{
			HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: b.qty, Price: b.price,
		})
		require.NoError(t, err)
		sumQty += b.qty
		sumCost += b.qty * b.price
		assert.InDelta(t, sumQty, res.Holding.Quantity, 1e-6)
		assert.InDelta(t, sumCost/sumQty, res.Holding.AvgPrice, 1e-6)
	}
}

func TestApplyTransaction_SellLeavesAvgUnchanged(t *testing.T) {
	svc, h := setupLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.ApplyTransaction(ctx, userID, ApplyInput{
		HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 10, Price: 100,
	})
	require.NoError(t, err)

	res, err := svc.ApplyTransaction(ctx, userID, ApplyInput{
		HoldingID: h.HoldingID, TxnType: domain.TxnTypeSell, Qty: 4, Price: 120,
	})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, res.Holding.Quantity, 1e-6)
	assert.InDelta(t, 100.0, res.Holding.AvgPrice, 1e-6)
}

func TestApplyTransaction_OversellRejected(t *testing.T) {
	svc, h := setupLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.ApplyTransaction(ctx, userID, ApplyInput{
		HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 5, Price: 50,
	})
	require.NoError(t, err)

	_, err = svc.ApplyTransaction(ctx, userID, ApplyInput{
		HoldingID: h.HoldingID, TxnType: domain.TxnTypeSell, Qty: 6, Price: 50,
	})
	require.ErrorIs(t, err, ErrInsufficientQuantity)

	// No partial write: holding unchanged, no SELL row persisted.
	var reloaded domain.Holding
	require.NoError(t, svc.DB.Where("holding_id = ?", h.HoldingID).First(&reloaded).Error)
	assert.InDelta(t, 5.0, reloaded.Quantity, 1e-6)
	assert.InDelta(t, 50.0, reloaded.AvgPrice, 1e-6)

	var count int64
	svc.DB.Model(&domain.TradeTransaction{}).
		Where("holding_id = ? AND txn_type = ?", h.HoldingID, domain.TxnTypeSell).
		Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestApplyTransaction_Validation(t *testing.T) {
	svc, h := setupLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.ApplyTransaction(ctx, userID, ApplyInput{
		HoldingID: h.HoldingID, TxnType: "SHORT", Qty: 1, Price: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidTxnType)

	_, err = svc.ApplyTransaction(ctx, userID, ApplyInput{
		HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 0, Price: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.ApplyTransaction(ctx, userID, ApplyInput{
		HoldingID: uuid.New(), TxnType: domain.TxnTypeBuy, Qty: 1, Price: 1,
	})
	assert.ErrorIs(t, err, ErrHoldingNotFound)
}

func TestApplyTransaction_FeatureSnapshot(t *testing.T) {
	svc, h := setupLedgerTest(t)
	userID := uuid.New()

	res, err := svc.ApplyTransaction(context.Background(), userID, ApplyInput{
		HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 3, Price: 7,
	})
	require.NoError(t, err)
	assert.InDelta(t, 21.0, res.Features.Amount, 1e-6)
	assert.Equal(t, "TCS", res.Features.Symbol)
	assert.Equal(t, userID.String(), res.Features.UserID)
	assert.Equal(t, h.HoldingID.String(), res.Features.HoldingID)
	assert.Equal(t, domain.TxnTypeBuy, res.Features.TxnType)
	assert.False(t, res.Features.Timestamp.IsZero())
}

func TestRecalculate_Idempotent(t *testing.T) {
	svc, h := setupLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()

	for _, in := range []ApplyInput{
		{HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 10, Price: 100},
		{HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 10, Price: 200},
		{HoldingID: h.HoldingID, TxnType: domain.TxnTypeSell, Qty: 5, Price: 180},
	} {
		_, err := svc.ApplyTransaction(ctx, userID, in)
		require.NoError(t, err)
	}

	first, err := svc.Recalculate(ctx, h.HoldingID)
	require.NoError(t, err)
	second, err := svc.Recalculate(ctx, h.HoldingID)
	require.NoError(t, err)
	assert.Equal(t, first.Quantity, second.Quantity)
	assert.Equal(t, first.AvgPrice, second.AvgPrice)
}

func TestRecalculate_AfterDeleteMatchesFreshReplay(t *testing.T) {
	svc, h := setupLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()

	// BUY 10@100 -> {10, 100}; BUY 10@200 -> {20, 150}; SELL 5@180 -> {15, 150}
	var last domain.TradeTransaction
	for _, in := range []ApplyInput{
		{HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 10, Price: 100},
		{HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 10, Price: 200},
		{HoldingID: h.HoldingID, TxnType: domain.TxnTypeSell, Qty: 5, Price: 180},
	} {
		res, err := svc.ApplyTransaction(ctx, userID, in)
		require.NoError(t, err)
		last = res.Transaction
	}

	var current domain.Holding
	require.NoError(t, svc.DB.Where("holding_id = ?", h.HoldingID).First(&current).Error)
	assert.InDelta(t, 15.0, current.Quantity, 1e-6)
	assert.InDelta(t, 150.0, current.AvgPrice, 1e-6)

	// Delete the SELL and recalculate: state as if it had never applied.
	require.NoError(t, svc.DB.Delete(&domain.TradeTransaction{}, "txn_id = ?", last.TxnID).Error)
	updated, err := svc.Recalculate(ctx, h.HoldingID)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, updated.Quantity, 1e-6)
	assert.InDelta(t, 150.0, updated.AvgPrice, 1e-6)
}

func TestRecalculate_NoTransactionsResetsHolding(t *testing.T) {
	svc, h := setupLedgerTest(t)
	ctx := context.Background()

	require.NoError(t, svc.DB.Model(&domain.Holding{}).
		Where("holding_id = ?", h.HoldingID).
		Updates(map[string]interface{}{"quantity": 12.0, "avg_price": 34.0}).Error)

	updated, err := svc.Recalculate(ctx, h.HoldingID)
	require.NoError(t, err)
	assert.Zero(t, updated.Quantity)
	assert.Zero(t, updated.AvgPrice)
}

func TestApplyTransaction_ConcurrentBuysDoNotLoseUpdates(t *testing.T) {
	svc, h := setupLedgerTest(t)
	userID := uuid.New()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.ApplyTransaction(context.Background(), userID, ApplyInput{
				HoldingID: h.HoldingID, TxnType: domain.TxnTypeBuy, Qty: 1, Price: 100,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var reloaded domain.Holding
	require.NoError(t, svc.DB.Where("holding_id = ?", h.HoldingID).First(&reloaded).Error)
	assert.InDelta(t, float64(n), reloaded.Quantity, 1e-6)
	assert.InDelta(t, 100.0, reloaded.AvgPrice, 1e-6)
}
