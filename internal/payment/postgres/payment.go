package postgres

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	paymentpkg "github.com/furahitechstudio/furahitechpay/internal/payment"
)

const defaultListLimit = 50

type PaymentResultRepository struct {
	db *gorm.DB
}

func NewPaymentResultRepository(db *gorm.DB) paymentpkg.ResultRepository {
	return &PaymentResultRepository{
		db: db,
	}
}

// Save inserts the result. A second result for the same transaction is ignored.
func (r *PaymentResultRepository) Save(ctx context.Context, result *payment.PaymentResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(result).Error
}

func (r *PaymentResultRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.PaymentResult, error) {
	var result payment.PaymentResult
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&result).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *PaymentResultRepository) List(ctx context.Context, gateway payment.Gateway, limit int) ([]*payment.PaymentResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := r.db.WithContext(ctx).Order("completed_at DESC").Limit(limit)
	if gateway != "" {
		query = query.Where("gateway = ?", string(gateway))
	}

	var results []*payment.PaymentResult
	err := query.Find(&results).Error
	return results, err
}
