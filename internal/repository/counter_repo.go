package repository

import (
	"context"

	"gorm.io/gorm"
)

// CounterRepository issues monotonically increasing sequence values from
// named counter rows.
type CounterRepository interface {
	Next(ctx context.Context, tx *gorm.DB, name string, seed int64) (int64, error)
}

type counterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

// Next atomically increments the named counter and returns the new
// value, creating the row at seed+1 on first use. The upsert keeps the
// increment atomic under concurrent callers; there is no read-then-write
// window even across server instances.
func (r *counterRepository) Next(ctx context.Context, tx *gorm.DB, name string, seed int64) (int64, error) {
	var seq int64
	err := tx.WithContext(ctx).Raw(`
		INSERT INTO counters (name, seq) VALUES (?, ? + 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq
	`, name, seed).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}
