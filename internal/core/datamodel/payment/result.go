package payment

import (
	"encoding/json"
	"time"
)

// PaymentResult is the persisted terminal outcome of one polled transaction.
type PaymentResult struct {
	ID            int64           `gorm:"primaryKey"`
	TransactionID string          `gorm:"column:transaction_id;not null;uniqueIndex"`
	Gateway       string          `gorm:"column:gateway;not null"`
	Status        string          `gorm:"column:status;not null"`
	RetryCount    int             `gorm:"column:retry_count;default:0"`
	ExtraParam    json.RawMessage `gorm:"column:extra_param;type:jsonb"`
	CompletedAt   time.Time       `gorm:"column:completed_at;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;default:now()"`
}

func (PaymentResult) TableName() string {
	return "payment_results"
}

func (r *PaymentResult) IsSuccessful() bool {
	return StatusKind(r.Status) == StatusSuccess
}
