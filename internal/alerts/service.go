package alerts

import (
	"context"
	"errors"
	"time"

	"finwatch-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrAlertNotFound = errors.New("Alert not found")

// Service reads and resolves risk alerts. Alerts are written by the fraud
// pipeline; this service only exposes them to their owner.
type Service struct {
	DB *gorm.DB
}

// List returns the user's alerts, newest first. unresolvedOnly limits to
// alerts with no resolved_at.
func (s *Service) List(ctx context.Context, userID uuid.UUID, unresolvedOnly bool) ([]domain.RiskAlert, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if unresolvedOnly {
		q = q.Where("resolved_at IS NULL")
	}
	var alerts []domain.RiskAlert
	if err := q.Order("triggered_at DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// Resolve marks one alert resolved. Resolving an already-resolved alert is a
// no-op that still returns the alert.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID, alertID uint) (*domain.RiskAlert, error) {
	var alert domain.RiskAlert
	err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", alertID, userID).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	if alert.ResolvedAt == nil {
		now := time.Now().UTC()
		if err := s.DB.WithContext(ctx).Model(&alert).
			Update("resolved_at", now).Error; err != nil {
			return nil, err
		}
		alert.ResolvedAt = &now
	}
	return &alert, nil
}

// ResolveAll resolves every unresolved alert of the user and reports how many
// were affected.
func (s *Service) ResolveAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&domain.RiskAlert{}).
		Where("user_id = ? AND resolved_at IS NULL", userID).
		Update("resolved_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}
