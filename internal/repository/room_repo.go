package repository

import (
	"context"

	"github.com/kudulodge/reservation-service/internal/models"
	"gorm.io/gorm"
)

type RoomRepository interface {
	FindByRoomID(ctx context.Context, roomID string) (*models.Room, error)
	FindByRoomIDForUpdate(ctx context.Context, tx *gorm.DB, roomID string) (*models.Room, error)
	DecrementAvailability(ctx context.Context, tx *gorm.DB, roomID string, amount int) (int64, error)
	IncrementAvailability(ctx context.Context, tx *gorm.DB, roomID string, amount int) error
	CheckAvailability(ctx context.Context, roomID string) (int, error)
}

type roomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) FindByRoomID(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByRoomIDForUpdate acquires a row-level lock on the room within the
// given transaction.
func (r *roomRepository) FindByRoomIDForUpdate(ctx context.Context, tx *gorm.DB, roomID string) (*models.Room, error) {
	var room models.Room
	if err := tx.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		Where("room_id = ?", roomID).
		First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// DecrementAvailability subtracts amount from available_count only when
// enough units remain, and reports the number of rows touched. Zero rows
// means the room vanished or the stock ran out; the check and the write
// are one statement, so concurrent bookings cannot both take the last
// unit.
func (r *roomRepository) DecrementAvailability(ctx context.Context, tx *gorm.DB, roomID string, amount int) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&models.Room{}).
		Where("room_id = ? AND available_count >= ?", roomID, amount).
		Update("available_count", gorm.Expr("available_count - ?", amount))
	return res.RowsAffected, res.Error
}

func (r *roomRepository) IncrementAvailability(ctx context.Context, tx *gorm.DB, roomID string, amount int) error {
	return tx.WithContext(ctx).
		Model(&models.Room{}).
		Where("room_id = ?", roomID).
		Update("available_count", gorm.Expr("available_count + ?", amount)).Error
}

// CheckAvailability is the plain pre-validation read used before a
// transaction is opened. The authoritative check happens inside the
// transaction via DecrementAvailability.
func (r *roomRepository) CheckAvailability(ctx context.Context, roomID string) (int, error) {
	room, err := r.FindByRoomID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return room.AvailableCount, nil
}
