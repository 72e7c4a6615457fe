// Package guard enforces the no-orphan-delete rule across
// portfolios → holdings → transactions. There is no cascade delete: callers
// must remove children first.
package guard

import (
	"context"
	"errors"

	"finwatch-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPortfolioHasHoldings   = errors.New("Cannot delete portfolio with holdings.")
	ErrHoldingHasTransactions = errors.New("Cannot delete holding with transactions.")
)

// DeletionGuard is a state-free predicate over the relational store.
type DeletionGuard struct {
	DB *gorm.DB
}

// CheckPortfolio returns ErrPortfolioHasHoldings when any holding still
// references the portfolio.
func (g *DeletionGuard) CheckPortfolio(ctx context.Context, portfolioID uuid.UUID) error {
	var count int64
	if err := g.DB.WithContext(ctx).Model(&domain.Holding{}).
		Where("portfolio_id = ?", portfolioID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrPortfolioHasHoldings
	}
	return nil
}

// CheckHolding returns ErrHoldingHasTransactions when any transaction still
// references the holding.
func (g *DeletionGuard) CheckHolding(ctx context.Context, holdingID uuid.UUID) error {
	var count int64
	if err := g.DB.WithContext(ctx).Model(&domain.TradeTransaction{}).
		Where("holding_id = ?", holdingID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrHoldingHasTransactions
	}
	return nil
}
