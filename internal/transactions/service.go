package transactions

import (
	"context"
	"errors"
	"math"

	"finwatch-backend/internal/domain"
	"finwatch-backend/internal/events"
	"finwatch-backend/internal/fraud"
	"finwatch-backend/internal/holdings"
	"finwatch-backend/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrFieldsRequired      = errors.New("All fields are required")
	ErrHoldingNotFound     = errors.New("Holding not found")
	ErrTransactionNotFound = errors.New("Transaction not found")
)

// Service orchestrates the transaction write path: ownership check, ledger
// apply, post-commit fraud scoring, realtime events. The fraud pipeline runs
// strictly after the financial write commits and can only degrade the
// response with warnings, never fail it.
type Service struct {
	DB       *gorm.DB
	Ledger   *ledger.Service
	Pipeline *fraud.Pipeline
	Holdings *holdings.Service
	Events   *events.Publisher
}

// AddInput for recording a trade against a holding.
type AddInput struct {
	HoldingID uuid.UUID
	TxnType   string
	Qty       float64
	Price     float64
}

// AddResult carries everything the response needs in one round trip.
type AddResult struct {
	Transaction    domain.TradeTransaction
	UpdatedHolding domain.Holding
	Fraud          *fraud.Result
}

// Add records a BUY/SELL for the user and scores it.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, country string, in AddInput) (*AddResult, error) {
	if _, err := s.Holdings.FindOwned(ctx, userID, in.HoldingID); err != nil {
		if errors.Is(err, holdings.ErrHoldingNotFound) {
			return nil, ErrHoldingNotFound
		}
		return nil, err
	}

	applied, err := s.Ledger.ApplyTransaction(ctx, userID, ledger.ApplyInput{
		HoldingID: in.HoldingID,
		TxnType:   in.TxnType,
		Qty:       in.Qty,
		Price:     in.Price,
	})
	if err != nil {
		return nil, err
	}

	// The transaction is durable from here on; scoring cannot undo it.
	fraudRes := s.Pipeline.ScoreAndRecord(ctx, applied.Transaction, userID, country, applied.Features)

	uid := userID.String()
	s.Events.Publish(ctx, uid, events.TypeTransactionNew, applied.Transaction)
	s.Events.Publish(ctx, uid, events.TypeHoldingUpdated, applied.Holding)
	if fraudRes.FraudScore > s.Pipeline.RiskThreshold {
		s.Events.Publish(ctx, uid, events.TypeFraudAlert, map[string]interface{}{
			"transaction_ref": applied.Transaction.Ref(),
			"fraud_score":     fraudRes.FraudScore,
			"label":           fraudRes.Label,
		})
	}

	return &AddResult{
		Transaction:    applied.Transaction,
		UpdatedHolding: applied.Holding,
		Fraud:          fraudRes,
	}, nil
}

// ListByHolding returns a page of a holding's transactions, newest first.
func (s *Service) ListByHolding(ctx context.Context, userID, holdingID uuid.UUID, page, limit int) ([]domain.TradeTransaction, map[string]interface{}, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 5
	}

	if _, err := s.Holdings.FindOwned(ctx, userID, holdingID); err != nil {
		if errors.Is(err, holdings.ErrHoldingNotFound) {
			return nil, nil, ErrHoldingNotFound
		}
		return nil, nil, err
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.TradeTransaction{}).
		Where("holding_id = ?", holdingID).Count(&count).Error; err != nil {
		return nil, nil, err
	}

	var txns []domain.TradeTransaction
	if err := s.DB.WithContext(ctx).
		Where("holding_id = ?", holdingID).
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&txns).Error; err != nil {
		return nil, nil, err
	}

	meta := map[string]interface{}{
		"page":        page,
		"limit":       limit,
		"total_items": count,
		"total_pages": int(math.Ceil(float64(count) / float64(limit))),
	}
	return txns, meta, nil
}

// Delete removes one transaction and rederives the owning holding's
// aggregates by full replay of the remaining history. Reversing the deleted
// transaction's deltas would be wrong for sells, which do not record the avg
// price in effect at sale time.
func (s *Service) Delete(ctx context.Context, userID, txnID uuid.UUID) (*domain.Holding, error) {
	var txn domain.TradeTransaction
	err := s.DB.WithContext(ctx).
		Joins("JOIN portfolios ON portfolios.portfolio_id = trade_transactions.portfolio_id").
		Where("trade_transactions.txn_id = ? AND portfolios.user_id = ?", txnID, userID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).
		Delete(&domain.TradeTransaction{}, "txn_id = ?", txnID).Error; err != nil {
		return nil, err
	}

	updated, err := s.Ledger.Recalculate(ctx, txn.HoldingID)
	if err != nil {
		return nil, err
	}

	s.Events.Publish(ctx, userID.String(), events.TypeHoldingUpdated, updated)
	return updated, nil
}
