package repository

import (
	"context"
	"time"

	"github.com/kudulodge/reservation-service/internal/models"
	"gorm.io/gorm"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error
	Save(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	FindByNumber(ctx context.Context, number int64) (*models.Reservation, error)
	FindByNumberForUpdate(ctx context.Context, tx *gorm.DB, number int64) (*models.Reservation, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Reservation, error)
	FindRecentIdentical(ctx context.Context, email string, checkIn, checkOut time.Time, packageID *uint, since time.Time) (*models.Reservation, error)
	FindOpenPayment(ctx context.Context, tx *gorm.DB, email string) (*models.Reservation, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Reservation, error)
	AttachPaymentIntent(ctx context.Context, number int64, intentID string) (int64, error)
	UpdatePaymentStatusByIntent(ctx context.Context, intentID string, status models.PaymentStatus) (int64, error)
	List(ctx context.Context, status *models.ReservationStatus) ([]models.Reservation, error)
	GetDB() *gorm.DB
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *reservationRepository) Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	return tx.WithContext(ctx).Create(reservation).Error
}

func (r *reservationRepository) Save(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	return tx.WithContext(ctx).Save(reservation).Error
}

func (r *reservationRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return tx.WithContext(ctx).Delete(&models.Reservation{}, id).Error
}

func (r *reservationRepository) FindByNumber(ctx context.Context, number int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Package").
		Where("reservation_number = ?", number).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindByNumberForUpdate acquires a row-level lock on the reservation
// within the given transaction, serializing concurrent cancel, update
// and delete attempts against the same record.
func (r *reservationRepository) FindByNumberForUpdate(ctx context.Context, tx *gorm.DB, number int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := tx.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		Where("reservation_number = ?", number).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindRecentIdentical looks for a reservation with the same guest, dates
// and package created after `since`. It backs the double-submit guard.
func (r *reservationRepository) FindRecentIdentical(ctx context.Context, email string, checkIn, checkOut time.Time, packageID *uint, since time.Time) (*models.Reservation, error) {
	q := r.db.WithContext(ctx).
		Where("guest_email = ? AND check_in = ? AND check_out = ?", email, checkIn, checkOut).
		Where("created_at >= ?", since).
		Where("status <> ?", models.StatusCancelled)
	if packageID != nil {
		q = q.Where("package_id = ?", *packageID)
	} else {
		q = q.Where("package_id IS NULL")
	}

	var reservation models.Reservation
	if err := q.Order("created_at DESC").First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindOpenPayment returns any reservation of the guest whose payment is
// still pending or processing. Pass GetDB() for the pre-check outside a
// transaction, or the transaction handle for the in-transaction recheck.
func (r *reservationRepository) FindOpenPayment(ctx context.Context, tx *gorm.DB, email string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := tx.WithContext(ctx).
		Where("guest_email = ? AND payment_status IN ?", email,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}).
		Order("created_at ASC").
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", intentID).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// AttachPaymentIntent stores the provider intent id and marks the
// payment processing, but only while the payment is still open. Zero
// rows means the payment settled or the reservation was cancelled
// while the provider call was in flight; callers must not overwrite
// that outcome with their pre-call read.
func (r *reservationRepository) AttachPaymentIntent(ctx context.Context, number int64, intentID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("reservation_number = ? AND payment_status IN ?", number,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentProcessing, models.PaymentFailed}).
		Updates(map[string]interface{}{
			"payment_intent_id": intentID,
			"payment_status":    models.PaymentProcessing,
		})
	return res.RowsAffected, res.Error
}

// UpdatePaymentStatusByIntent flips payment_status for the reservation
// matching the provider intent id. A plain overwrite keeps webhook
// redelivery a no-op. Returns the number of rows matched so callers can
// distinguish "unknown intent" from success.
func (r *reservationRepository) UpdatePaymentStatusByIntent(ctx context.Context, intentID string, status models.PaymentStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("payment_intent_id = ?", intentID).
		Update("payment_status", status)
	return res.RowsAffected, res.Error
}

func (r *reservationRepository) List(ctx context.Context, status *models.ReservationStatus) ([]models.Reservation, error) {
	var reservations []models.Reservation
	q := r.db.WithContext(ctx).Preload("Package").Order("created_at DESC")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}
