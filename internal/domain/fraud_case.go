package domain

import (
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
)

// FraudCase priority and workflow values.
const (
	CasePriorityLow    = "low"
	CasePriorityMedium = "medium"
	CasePriorityHigh   = "high"

	CaseStatusPending    = "pending"
	CaseStatusInProgress = "in_progress"
	CaseStatusClosed     = "closed"
)

// FraudCase is an actionable record of a transaction whose fraud score
// crossed the case threshold. RelatedTransactionID carries the "TXN-<id>"
// reference and MongoTransactionRef the fraud-output document key, so a case
// can be correlated across both stores.
type FraudCase struct {
	ID                   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CaseID               string    `gorm:"column:case_id;type:varchar(50);uniqueIndex;not null" json:"case_id"`
	UserID               uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	RelatedTransactionID string    `gorm:"column:related_transaction_id;type:varchar(100)" json:"related_transaction_id"`
	MongoTransactionRef  string    `gorm:"column:mongo_transaction_ref;type:varchar(100)" json:"mongo_transaction_ref"`
	FraudScore           float64   `gorm:"column:fraud_score;type:decimal(5,3);not null" json:"fraud_score"`
	Label                int       `gorm:"column:label;default:0;index" json:"label"`
	Country              string    `gorm:"column:country;type:varchar(5);index" json:"country"`
	Priority             string    `gorm:"column:priority;type:varchar(10);not null;default:medium;index" json:"priority"`
	Status               string    `gorm:"column:status;type:varchar(20);not null;default:pending;index" json:"status"`
	AssignedTo           *uuid.UUID `gorm:"column:assigned_to;type:uuid" json:"assigned_to"`
	Notes                string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func (FraudCase) TableName() string {
	return "fraud_cases"
}

// NewCaseID builds a globally unique, human-inspectable case id.
func NewCaseID() string {
	return "CASE-" + uuid.New().String()
}

func (f *FraudCase) BeforeCreate(tx *gorm.DB) error {
	if f.CaseID == "" {
		f.CaseID = NewCaseID()
	}
	return nil
}
