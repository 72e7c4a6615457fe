// Package fraud scores trade transactions through the external ML service
// and fans the result out into the output document store, risk alerts, and
// fraud cases. The two stores are written in a best-effort sequence with no
// cross-store atomicity; a financial transaction is never rolled back for a
// fraud-side failure.
package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finwatch-backend/internal/config"
	"finwatch-backend/internal/domain"
	"finwatch-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	modelNameFallback = "ml-model"
	storeWriteRetries = 2
)

// Pipeline orchestrates score → output document → alert/case fan-out.
type Pipeline struct {
	DB       *gorm.DB
	Provider ScoreProvider
	Outputs  *OutputStore

	// An alert is raised above RiskThreshold; a case is additionally opened
	// at or above CaseThreshold. Every case-worthy score is alert-worthy.
	RiskThreshold float64
	CaseThreshold float64

	FailurePolicy string
}

// Result is returned to the transaction-add path so the response can surface
// fraud feedback without an extra round trip. Warnings collect fraud-side
// store failures that did not block the financial write.
type Result struct {
	FraudScore float64  `json:"fraudScore"`
	Label      int      `json:"label"`
	Reasons    []string `json:"reasons"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ScoreAndRecord scores one committed transaction. It must be called only
// after the transaction is durable. Every step is independently fallible:
// a scoring outage degrades to the fail-safe zero score, and store write
// failures become warnings on the result.
func (p *Pipeline) ScoreAndRecord(ctx context.Context, txn domain.TradeTransaction, userID uuid.UUID, country string, features ledger.FeatureSnapshot) *Result {
	result := &Result{Reasons: []string{}}

	score, err := p.Provider.Score(ctx, features)
	if err != nil {
		// Fail open: fraud is under-detected during provider outages rather
		// than transactions being blocked.
		log.Warn().Err(err).Str("txn_ref", txn.Ref()).Str("policy", p.FailurePolicy).
			Msg("fraud scoring unavailable, using fail-safe zero score")
		score = &Score{FraudProbability: 0, Label: 0}
	}
	result.FraudScore = score.FraudProbability
	result.Label = score.Label
	if score.Reasons != nil {
		result.Reasons = score.Reasons
	}

	ref := txn.Ref()
	modelName := score.ModelName
	if modelName == "" {
		modelName = modelNameFallback
	}
	output := &ModelOutput{
		TransactionID:  ref,
		UserID:         userID.String(),
		FraudScore:     score.FraudProbability,
		Label:          score.Label,
		ModelName:      modelName,
		ModelVersion:   score.ModelVersion,
		AnomalyReasons: result.Reasons,
		Features:       features,
		CreatedAt:      time.Now().UTC(),
	}
	if err := withRetry(func() error { return p.Outputs.Put(ctx, output) }); err != nil {
		log.Error().Err(err).Str("txn_ref", ref).Msg("fraud output write failed")
		result.Warnings = append(result.Warnings, "fraud model output was not persisted")
	}

	if score.FraudProbability > p.RiskThreshold {
		if err := p.createRiskAlert(ctx, txn, userID, score, ref); err != nil {
			log.Error().Err(err).Str("txn_ref", ref).Msg("risk alert write failed")
			result.Warnings = append(result.Warnings, "risk alert was not persisted")
		}
	}

	if score.FraudProbability >= p.CaseThreshold {
		if err := p.createFraudCase(ctx, txn, userID, country, score, ref); err != nil {
			log.Error().Err(err).Str("txn_ref", ref).Msg("fraud case write failed")
			result.Warnings = append(result.Warnings, "fraud case was not persisted")
		}
	}

	return result
}

func (p *Pipeline) createRiskAlert(ctx context.Context, txn domain.TradeTransaction, userID uuid.UUID, score *Score, ref string) error {
	meta, _ := json.Marshal(map[string]interface{}{
		"transaction_ref": ref,
		"reasons":         score.Reasons,
		"symbol":          txn.Symbol,
		"amount":          txn.Total,
	})
	alert := domain.RiskAlert{
		UserID:      userID,
		PortfolioID: &txn.PortfolioID,
		AlertType:   "suspicious_transaction",
		Severity:    severityFor(score.FraudProbability),
		Message: fmt.Sprintf("Suspicious %s of %s flagged with fraud score %.2f%%",
			txn.TxnType, txn.Symbol, score.FraudProbability*100),
		Metadata:    datatypes.JSON(meta),
		TriggeredAt: time.Now().UTC(),
	}
	return withRetry(func() error {
		return p.DB.WithContext(ctx).Create(&alert).Error
	})
}

func (p *Pipeline) createFraudCase(ctx context.Context, txn domain.TradeTransaction, userID uuid.UUID, country string, score *Score, ref string) error {
	if country == "" {
		country = "IN"
	}
	fraudCase := domain.FraudCase{
		CaseID:               domain.NewCaseID(),
		UserID:               userID,
		RelatedTransactionID: ref,
		MongoTransactionRef:  ref,
		FraudScore:           score.FraudProbability,
		Label:                1,
		Country:              country,
		Priority:             domain.CasePriorityHigh,
		Status:               domain.CaseStatusPending,
	}
	return withRetry(func() error {
		return p.DB.WithContext(ctx).Create(&fraudCase).Error
	})
}

// severityFor buckets a score into an alert severity.
func severityFor(score float64) string {
	switch {
	case score >= 0.9:
		return domain.AlertSeverityCritical
	case score >= 0.7:
		return domain.AlertSeverityHigh
	default:
		return domain.AlertSeverityMedium
	}
}

// withRetry retries transient store write failures a bounded number of times.
func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= storeWriteRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

// NewPipeline wires the pipeline from config.
func NewPipeline(db *gorm.DB, provider ScoreProvider, outputs *OutputStore, cfg *config.Config) *Pipeline {
	return &Pipeline{
		DB:            db,
		Provider:      provider,
		Outputs:       outputs,
		RiskThreshold: cfg.RiskThreshold,
		CaseThreshold: cfg.CaseThreshold,
		FailurePolicy: cfg.ScoringFailurePolicy,
	}
}
