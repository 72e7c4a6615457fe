package holdings

import (
	"context"
	"errors"
	"math"

	"finwatch-backend/internal/domain"
	"finwatch-backend/internal/guard"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrFieldsRequired    = errors.New("All fields are required")
	ErrPortfolioNotFound = errors.New("Portfolio not found")
	ErrHoldingNotFound   = errors.New("Holding not found")
)

// Service manages holding CRUD. The aggregate fields (quantity, avg price)
// are written here only at creation; afterwards the ledger owns them.
type Service struct {
	DB    *gorm.DB
	Guard *guard.DeletionGuard
}

// CreateInput for a new holding with its initial position.
type CreateInput struct {
	PortfolioID uuid.UUID
	Symbol      string
	Quantity    float64
	AvgPrice    float64
	Currency    string
}

// ListByPortfolio returns a page of a portfolio's holdings after verifying
// the portfolio belongs to the user.
func (s *Service) ListByPortfolio(ctx context.Context, userID, portfolioID uuid.UUID, page, limit int) ([]domain.Holding, map[string]interface{}, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 5
	}

	if err := s.verifyPortfolio(ctx, userID, portfolioID); err != nil {
		return nil, nil, err
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.Holding{}).
		Where("portfolio_id = ?", portfolioID).Count(&count).Error; err != nil {
		return nil, nil, err
	}

	var holdings []domain.Holding
	if err := s.DB.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&holdings).Error; err != nil {
		return nil, nil, err
	}

	meta := map[string]interface{}{
		"page":        page,
		"limit":       limit,
		"total_items": count,
		"total_pages": int(math.Ceil(float64(count) / float64(limit))),
	}
	return holdings, meta, nil
}

// Create adds a holding to the user's portfolio.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*domain.Holding, error) {
	if in.Symbol == "" || in.Quantity < 0 || in.AvgPrice < 0 {
		return nil, ErrFieldsRequired
	}
	if err := s.verifyPortfolio(ctx, userID, in.PortfolioID); err != nil {
		return nil, err
	}

	holding := domain.Holding{
		PortfolioID: in.PortfolioID,
		Symbol:      in.Symbol,
		Quantity:    in.Quantity,
		AvgPrice:    in.AvgPrice,
	}
	if in.Currency != "" {
		holding.Currency = in.Currency
	}
	if err := s.DB.WithContext(ctx).Create(&holding).Error; err != nil {
		return nil, err
	}
	return &holding, nil
}

// Delete removes the user's holding if the deletion guard allows it. A
// holding guarded to have zero transactions needs no recalculation.
func (s *Service) Delete(ctx context.Context, userID, holdingID uuid.UUID) error {
	if _, err := s.findOwned(ctx, userID, holdingID); err != nil {
		return err
	}
	if err := s.Guard.CheckHolding(ctx, holdingID); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).
		Delete(&domain.Holding{}, "holding_id = ?", holdingID).Error
}

func (s *Service) verifyPortfolio(ctx context.Context, userID, portfolioID uuid.UUID) error {
	var portfolio domain.Portfolio
	err := s.DB.WithContext(ctx).
		Where("portfolio_id = ? AND user_id = ?", portfolioID, userID).
		First(&portfolio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPortfolioNotFound
	}
	return err
}

// findOwned resolves a holding through its portfolio's owner. Absent and
// not-owned are both reported as not-found.
func (s *Service) findOwned(ctx context.Context, userID, holdingID uuid.UUID) (*domain.Holding, error) {
	var holding domain.Holding
	err := s.DB.WithContext(ctx).
		Joins("JOIN portfolios ON portfolios.portfolio_id = holdings.portfolio_id").
		Where("holdings.holding_id = ? AND portfolios.user_id = ?", holdingID, userID).
		First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHoldingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &holding, nil
}

// FindOwned is the ownership check used by the transactions module before
// the ledger applies a trade.
func (s *Service) FindOwned(ctx context.Context, userID, holdingID uuid.UUID) (*domain.Holding, error) {
	return s.findOwned(ctx, userID, holdingID)
}
