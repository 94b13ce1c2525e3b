package repository

import (
	"context"

	"github.com/kudulodge/reservation-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentEventRepository interface {
	Record(ctx context.Context, event *models.PaymentEvent) error
	DeleteByIntentID(ctx context.Context, tx *gorm.DB, intentID string) error
}

type paymentEventRepository struct {
	db *gorm.DB
}

func NewPaymentEventRepository(db *gorm.DB) PaymentEventRepository {
	return &paymentEventRepository{db: db}
}

// Record stores a webhook envelope. Redelivered events hit the unique
// index on event_id and are silently skipped.
func (r *paymentEventRepository) Record(ctx context.Context, event *models.PaymentEvent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(event).Error
}

// DeleteByIntentID removes dependent payment records when a reservation
// is hard-deleted by an admin.
func (r *paymentEventRepository) DeleteByIntentID(ctx context.Context, tx *gorm.DB, intentID string) error {
	if intentID == "" {
		return nil
	}
	return tx.WithContext(ctx).
		Where("payment_intent_id = ?", intentID).
		Delete(&models.PaymentEvent{}).Error
}
