//go:build integration

package integration

import (
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/kudulodge/reservation-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("TEST_DB_HOST", "localhost"),
		getEnv("TEST_DB_PORT", "5434"),
		getEnv("TEST_DB_USER", "postgres"),
		getEnv("TEST_DB_PASSWORD", "postgres"),
		getEnv("TEST_DB_NAME", "reservation_test_db"),
	)

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to test database: %v", err)
	}

	// Drop and recreate tables for clean state
	dropTables()

	if err := testDB.AutoMigrate(
		&models.Room{},
		&models.Package{},
		&models.Reservation{},
		&models.Counter{},
		&models.PaymentEvent{},
	); err != nil {
		log.Fatalf("failed to auto-migrate test database: %v", err)
	}

	testDB.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reservation_open
		ON reservations (guest_email, check_in, check_out, package_id)
		WHERE payment_status IN ('pending', 'processing', 'paid')
	`)
	testDB.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reservation_idem_key
		ON reservations (idempotency_key)
		WHERE idempotency_key <> ''
	`)

	code := m.Run()

	dropTables()

	os.Exit(code)
}

func dropTables() {
	testDB.Exec("DROP TABLE IF EXISTS payment_events")
	testDB.Exec("DROP TABLE IF EXISTS reservations")
	testDB.Exec("DROP TABLE IF EXISTS counters")
	testDB.Exec("DROP TABLE IF EXISTS packages")
	testDB.Exec("DROP TABLE IF EXISTS rooms")
}

func cleanTables() {
	testDB.Exec("DELETE FROM payment_events")
	testDB.Exec("DELETE FROM reservations")
	testDB.Exec("DELETE FROM packages")
	testDB.Exec("DELETE FROM rooms")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
