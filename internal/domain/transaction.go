package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Trade transaction types.
const (
	TxnTypeBuy  = "BUY"
	TxnTypeSell = "SELL"
)

// TradeTransaction is an immutable record of a single BUY or SELL against a
// holding. PortfolioID is denormalized for query convenience. CreatedAt
// defines replay order during recalculation.
type TradeTransaction struct {
	TxnID       uuid.UUID `gorm:"column:txn_id;type:uuid;primaryKey" json:"txn_id"`
	HoldingID   uuid.UUID `gorm:"column:holding_id;type:uuid;not null;index" json:"holding_id"`
	PortfolioID uuid.UUID `gorm:"column:portfolio_id;type:uuid;not null;index" json:"portfolio_id"`
	TxnType     string    `gorm:"column:txn_type;type:varchar(10);not null" json:"txn_type"`
	Symbol      string    `gorm:"column:symbol;type:varchar(20);not null" json:"symbol"`
	Qty         float64   `gorm:"column:qty;type:decimal(18,8);not null" json:"qty"`
	Price       float64   `gorm:"column:price;type:decimal(18,8);not null" json:"price"`
	Total       float64   `gorm:"column:total;type:decimal(18,8);not null" json:"total"`
	Status      string    `gorm:"column:status;type:varchar(20);not null;default:completed" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (TradeTransaction) TableName() string {
	return "trade_transactions"
}

func (t *TradeTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.TxnID == uuid.Nil {
		t.TxnID = uuid.New()
	}
	return nil
}

// Ref is the cross-store transaction reference ("TXN-<id>") used to correlate
// the relational row with its fraud model output document.
func (t *TradeTransaction) Ref() string {
	return "TXN-" + t.TxnID.String()
}
