package database

import (
	"log"

	"github.com/kudulodge/reservation-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Room{},
		&models.Package{},
		&models.Reservation{},
		&models.Counter{},
		&models.PaymentEvent{},
	); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Partial unique index: at most one open reservation per
	// (guest, dates, package) while its payment is pending, processing
	// or settled. Cancelled and failed reservations don't block rebooking.
	db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reservation_open
		ON reservations (guest_email, check_in, check_out, package_id)
		WHERE payment_status IN ('pending', 'processing', 'paid')
	`)

	// Client idempotency keys are unique whenever present.
	db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reservation_idem_key
		ON reservations (idempotency_key)
		WHERE idempotency_key <> ''
	`)

	return db
}
