package portfolios

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
	ErrNameRequired      = errors.New("Portfolio name is required.")
	ErrPortfolioNotFound = errors.New("Portfolio not found")
)

// Service manages portfolio CRUD. Deletes go through the deletion guard:
// a portfolio with holdings cannot be removed.
type Service struct {
	DB    *gorm.DB
	Guard *guard.DeletionGuard
}

// List returns a page of the user's portfolios, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]domain.Portfolio, map[string]interface{}, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 5
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.Portfolio{}).
		Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, nil, err
	}

	var portfolios []domain.Portfolio
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&portfolios).Error; err != nil {
		return nil, nil, err
	}

	meta := map[string]interface{}{
		"page":        page,
		"limit":       limit,
		"total_items": count,
		"total_pages": int(math.Ceil(float64(count) / float64(limit))),
	}
	return portfolios, meta, nil
}

// Create creates a portfolio for the user.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, name, description string) (*domain.Portfolio, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	portfolio := domain.Portfolio{
		UserID:      userID,
		Name:        name,
		Description: description,
	}
	if err := s.DB.WithContext(ctx).Create(&portfolio).Error; err != nil {
		return nil, err
	}
	return &portfolio, nil
}

// Delete removes the user's portfolio if the deletion guard allows it.
// Existence and ownership are indistinguishable: both return not-found.
func (s *Service) Delete(ctx context.Context, userID, portfolioID uuid.UUID) error {
	var portfolio domain.Portfolio
	err := s.DB.WithContext(ctx).
		Where("portfolio_id = ? AND user_id = ?", portfolioID, userID).
		First(&portfolio).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPortfolioNotFound
		}
		return err
	}

	if err := s.Guard.CheckPortfolio(ctx, portfolioID); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).
		Delete(&domain.Portfolio{}, "portfolio_id = ?", portfolioID).Error
}
