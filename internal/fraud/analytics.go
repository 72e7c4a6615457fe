package fraud

import (
	"context"
	"fmt"
	"math"

	"finwatch-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const historyLimit = 50

// AnalyticsService serves the read side of the two fraud stores: case
// aggregates from the relational store and model outputs from the document
// store.
type AnalyticsService struct {
	DB      *gorm.DB
	Outputs *OutputStore
}

// StatsResult summarizes a user's fraud cases.
type StatsResult struct {
	DetectionRate     float64 `json:"detection_rate"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	TotalAnalyzed     int64   `json:"total_analyzed"`
	HighRiskCases     int64   `json:"high_risk_cases"`
}

func (s *AnalyticsService) Stats(ctx context.Context, userID uuid.UUID) (*StatsResult, error) {
	db := s.DB.WithContext(ctx).Model(&domain.FraudCase{})

	var total, detected, falsePositives, highRisk int64
	if err := db.Session(&gorm.Session{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("user_id = ? AND label = ?", userID, 1).Count(&detected).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("user_id = ? AND label = ?", userID, 0).Count(&falsePositives).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("user_id = ? AND priority = ?", userID, domain.CasePriorityHigh).Count(&highRisk).Error; err != nil {
		return nil, err
	}

	out := &StatsResult{TotalAnalyzed: total, HighRiskCases: highRisk}
	if total > 0 {
		out.DetectionRate = float64(detected) / float64(total) * 100
		out.FalsePositiveRate = float64(falsePositives) / float64(total) * 100
	}
	return out, nil
}

// Cases returns a page of the user's fraud cases, newest first.
func (s *AnalyticsService) Cases(ctx context.Context, userID uuid.UUID, page, limit int) ([]domain.FraudCase, map[string]interface{}, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.FraudCase{}).
		Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, nil, err
	}

	var cases []domain.FraudCase
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&cases).Error; err != nil {
		return nil, nil, err
	}

	meta := map[string]interface{}{
		"page":        page,
		"limit":       limit,
		"total_items": count,
		"total_pages": int(math.Ceil(float64(count) / float64(limit))),
	}
	return cases, meta, nil
}

// History returns the user's latest model outputs from the document store.
func (s *AnalyticsService) History(ctx context.Context, userID uuid.UUID) ([]ModelOutput, error) {
	return s.Outputs.ListByUser(ctx, userID.String(), historyLimit)
}

// Geo returns fraud case counts per country for the geo-risk map.
func (s *AnalyticsService) Geo(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	type row struct {
		Country string
		Count   int64
	}
	var rows []row
	if err := s.DB.WithContext(ctx).Model(&domain.FraudCase{}).
		Select("country, COUNT(country) as count").
		Where("user_id = ?", userID).
		Group("country").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	countries := make(map[string]int64, len(rows))
	for _, r := range rows {
		if r.Country != "" {
			countries[r.Country] = r.Count
		}
	}
	return countries, nil
}

// Detail returns the model output for one transaction reference.
func (s *AnalyticsService) Detail(ctx context.Context, userID uuid.UUID, transactionID string) (*ModelOutput, error) {
	return s.Outputs.Get(ctx, transactionID, userID.String())
}

// TestScoreResult is returned by ad-hoc scoring.
type TestScoreResult struct {
	Score
	SavedCaseID    string `json:"saved_case_id"`
	SavedToHistory bool   `json:"saved_to_history"`
}

// TestScore scores a caller-supplied feature payload and records the result
// in both stores. Unlike the transaction pipeline a case row is always
// written, so the geo map accumulates data even for clean payloads.
func (s *AnalyticsService) TestScore(ctx context.Context, provider ScoreProvider, userID uuid.UUID, country string, payload map[string]interface{}) (*TestScoreResult, error) {
	score, err := provider.Score(ctx, payload)
	if err != nil {
		score = &Score{FraudProbability: 0, Label: 0}
	}

	transactionID, _ := payload["transactionId"].(string)
	if transactionID == "" {
		transactionID = "ADHOC-" + uuid.New().String()
	}

	modelName := score.ModelName
	if modelName == "" {
		modelName = modelNameFallback
	}
	reasons := score.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	savedToHistory := true
	if err := s.Outputs.Put(ctx, &ModelOutput{
		TransactionID:  transactionID,
		UserID:         userID.String(),
		FraudScore:     score.FraudProbability,
		Label:          score.Label,
		ModelName:      modelName,
		ModelVersion:   score.ModelVersion,
		AnomalyReasons: reasons,
		Features:       payload,
	}); err != nil {
		savedToHistory = false
	}

	if country == "" {
		country = "IN"
	}
	priority := domain.CasePriorityLow
	if score.Label == 1 {
		priority = domain.CasePriorityHigh
	}
	fraudCase := domain.FraudCase{
		CaseID:               domain.NewCaseID(),
		UserID:               userID,
		RelatedTransactionID: transactionID,
		MongoTransactionRef:  transactionID,
		FraudScore:           score.FraudProbability,
		Label:                score.Label,
		Country:              country,
		Priority:             priority,
		Status:               domain.CaseStatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(&fraudCase).Error; err != nil {
		return nil, fmt.Errorf("save fraud case: %w", err)
	}

	return &TestScoreResult{
		Score:          *score,
		SavedCaseID:    fraudCase.CaseID,
		SavedToHistory: savedToHistory,
	}, nil
}
