package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Holding is a position in one symbol within one portfolio. Quantity and
// AvgPrice are always the fold of the holding's non-deleted transactions
// under the ledger's BUY/SELL accumulation rule; only the ledger writes them.
type Holding struct {
	HoldingID   uuid.UUID `gorm:"column:holding_id;type:uuid;primaryKey" json:"holding_id"`
	PortfolioID uuid.UUID `gorm:"column:portfolio_id;type:uuid;not null;index" json:"portfolio_id"`
	Symbol      string    `gorm:"column:symbol;type:varchar(20);not null" json:"symbol"`
	Quantity    float64   `gorm:"column:quantity;type:decimal(18,8);not null;default:0" json:"quantity"`
	AvgPrice    float64   `gorm:"column:avg_price;type:decimal(18,8);not null;default:0" json:"avg_price"`
	Currency    string    `gorm:"column:currency;type:varchar(5);not null;default:INR" json:"currency"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Holding) TableName() string {
	return "holdings"
}

func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.HoldingID == uuid.Nil {
		h.HoldingID = uuid.New()
	}
	return nil
}
