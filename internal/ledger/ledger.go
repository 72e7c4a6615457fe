// Package ledger owns the BUY/SELL application algorithm and the full-history
// recalculation of holding aggregates. It is the only writer of the holdings
// table.
package ledger

import (
	"context"
	"errors"
	"time"

	"finwatch-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrHoldingNotFound      = errors.New("Holding not found")
	ErrInvalidTxnType       = errors.New("txn_type must be BUY or SELL")
	ErrInvalidAmount        = errors.New("qty and price must be greater than zero")
	ErrInsufficientQuantity = errors.New("Cannot sell more than you hold")
)

// quantities and prices are persisted as decimal(18,8)
const scale = 8

// Service applies trade transactions to holdings and recalculates holding
// aggregates from transaction history. All mutations of one holding run under
// that holding's mutex and inside a single DB transaction.
type Service struct {
	DB    *gorm.DB
	locks *holdingLocks
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db, locks: newHoldingLocks()}
}

// ApplyInput is a validated BUY/SELL request against one holding.
type ApplyInput struct {
	HoldingID uuid.UUID
	TxnType   string
	Qty       float64
	Price     float64
}

// FeatureSnapshot is the input sent to the fraud scorer, captured at apply
// time so the exact scored features can be audited later.
type FeatureSnapshot struct {
	Amount      float64   `json:"amount"`
	Qty         float64   `json:"qty"`
	Price       float64   `json:"price"`
	TxnType     string    `json:"txn_type"`
	Symbol      string    `json:"symbol"`
	UserID      string    `json:"user_id"`
	PortfolioID string    `json:"portfolio_id"`
	HoldingID   string    `json:"holding_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// ApplyResult carries the committed transaction, the holding after the
// update, and the feature snapshot for fraud scoring.
type ApplyResult struct {
	Transaction domain.TradeTransaction
	Holding     domain.Holding
	Features    FeatureSnapshot
}

// ApplyTransaction records a trade transaction and updates the parent
// holding's quantity and weighted-average cost in one durable unit:
//
//	BUY:  newQty = oldQty + qty; newAvg = (oldQty*oldAvg + qty*price) / newQty
//	SELL: newQty = oldQty - qty; avg unchanged (cost basis of remaining
//	      shares does not change on a sale)
//
// A SELL exceeding the held quantity is rejected before any write. Ownership
// of the holding is the caller's concern; the ledger checks existence only.
// Scoring is not invoked here — the caller feeds Features into the fraud
// pipeline after this returns.
func (s *Service) ApplyTransaction(ctx context.Context, userID uuid.UUID, in ApplyInput) (*ApplyResult, error) {
	if in.TxnType != domain.TxnTypeBuy && in.TxnType != domain.TxnTypeSell {
		return nil, ErrInvalidTxnType
	}
	if in.Qty <= 0 || in.Price <= 0 {
		return nil, ErrInvalidAmount
	}

	lock := s.locks.get(in.HoldingID)
	lock.Lock()
	defer lock.Unlock()

	qty := decimal.NewFromFloat(in.Qty)
	price := decimal.NewFromFloat(in.Price)
	total := qty.Mul(price)

	var result ApplyResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holding domain.Holding
		if err := tx.Where("holding_id = ?", in.HoldingID).First(&holding).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHoldingNotFound
			}
			return err
		}

		oldQty := decimal.NewFromFloat(holding.Quantity)
		oldAvg := decimal.NewFromFloat(holding.AvgPrice)

		var newQty, newAvg decimal.Decimal
		switch in.TxnType {
		case domain.TxnTypeBuy:
			newQty = oldQty.Add(qty)
			newAvg = oldQty.Mul(oldAvg).Add(total).Div(newQty)
		case domain.TxnTypeSell:
			if qty.GreaterThan(oldQty) {
				return ErrInsufficientQuantity
			}
			newQty = oldQty.Sub(qty)
			newAvg = oldAvg
		}

		txn := domain.TradeTransaction{
			HoldingID:   holding.HoldingID,
			PortfolioID: holding.PortfolioID,
			TxnType:     in.TxnType,
			Symbol:      holding.Symbol,
			Qty:         round(qty),
			Price:       round(price),
			Total:       round(total),
			Status:      "completed",
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		holding.Quantity = round(newQty)
		holding.AvgPrice = round(newAvg)
		if err := tx.Model(&domain.Holding{}).
			Where("holding_id = ?", holding.HoldingID).
			Updates(map[string]interface{}{
				"quantity":  holding.Quantity,
				"avg_price": holding.AvgPrice,
			}).Error; err != nil {
			return err
		}

		result = ApplyResult{
			Transaction: txn,
			Holding:     holding,
			Features: FeatureSnapshot{
				Amount:      round(total),
				Qty:         round(qty),
				Price:       round(price),
				TxnType:     in.TxnType,
				Symbol:      holding.Symbol,
				UserID:      userID.String(),
				PortfolioID: holding.PortfolioID.String(),
				HoldingID:   holding.HoldingID.String(),
				Timestamp:   time.Now().UTC(),
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Recalculate rederives a holding's quantity and avg price by replaying its
// remaining transactions in creation order. Used after a transaction delete:
// a SELL does not record the avg price in effect at sale time, so reversing
// deltas is not generally correct — only a full replay is.
//
// The fold deliberately does not reduce accumulated cost on SELL; this
// mirrors ApplyTransaction's rule that avg price is unaffected by sells.
// Idempotent for a fixed transaction set.
func (s *Service) Recalculate(ctx context.Context, holdingID uuid.UUID) (*domain.Holding, error) {
	lock := s.locks.get(holdingID)
	lock.Lock()
	defer lock.Unlock()

	var holding domain.Holding
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("holding_id = ?", holdingID).First(&holding).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHoldingNotFound
			}
			return err
		}

		var txns []domain.TradeTransaction
		if err := tx.Where("holding_id = ?", holdingID).
			Order("created_at ASC").
			Find(&txns).Error; err != nil {
			return err
		}

		totalQty := decimal.Zero
		totalCost := decimal.Zero
		for _, t := range txns {
			q := decimal.NewFromFloat(t.Qty)
			switch t.TxnType {
			case domain.TxnTypeBuy:
				totalQty = totalQty.Add(q)
				totalCost = totalCost.Add(q.Mul(decimal.NewFromFloat(t.Price)))
			case domain.TxnTypeSell:
				totalQty = totalQty.Sub(q)
			}
		}

		// A consistent transaction set never goes negative; clamp if it does.
		if totalQty.IsNegative() {
			totalQty = decimal.Zero
		}
		newAvg := decimal.Zero
		if totalQty.IsPositive() {
			newAvg = totalCost.Div(totalQty)
		}

		holding.Quantity = round(totalQty)
		holding.AvgPrice = round(newAvg)
		return tx.Model(&domain.Holding{}).
			Where("holding_id = ?", holdingID).
			Updates(map[string]interface{}{
				"quantity":  holding.Quantity,
				"avg_price": holding.AvgPrice,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &holding, nil
}

func round(d decimal.Decimal) float64 {
	f, _ := d.Round(scale).Float64()
	return f
}
