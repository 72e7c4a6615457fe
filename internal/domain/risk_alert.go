package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RiskAlert severities.
const (
	AlertSeverityLow      = "low"
	AlertSeverityMedium   = "medium"
	AlertSeverityHigh     = "high"
	AlertSeverityCritical = "critical"
)

// RiskAlert is a lower-threshold notification of suspicious activity. Every
// case-worthy transaction also produces an alert, but not vice versa.
// Metadata carries the structured anomaly reasons and the "TXN-<id>"
// correlation reference as JSON.
type RiskAlert struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	PortfolioID *uuid.UUID     `gorm:"column:portfolio_id;type:uuid;index" json:"portfolio_id"`
	AlertType   string         `gorm:"column:alert_type;type:varchar(50);not null" json:"alert_type"`
	Severity    string         `gorm:"column:severity;type:varchar(10);not null;index" json:"severity"`
	Message     string         `gorm:"column:message;type:text;not null" json:"message"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	TriggeredAt time.Time      `gorm:"column:triggered_at;not null" json:"triggered_at"`
	ResolvedAt  *time.Time     `gorm:"column:resolved_at" json:"resolved_at"`
}

func (RiskAlert) TableName() string {
	return "risk_alerts"
}
