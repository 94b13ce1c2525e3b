package models

import "time"

// Room holds inventory for one bookable room category. RoomID is the
// business identifier used by packages and reservations; the numeric
// primary key never leaves the storage layer. AvailableCount is mutated
// only through the conditional increment/decrement in the repository.
type Room struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RoomID         string    `gorm:"uniqueIndex;not null" json:"room_id"`
	RoomType       string    `gorm:"not null" json:"room_type"`
	BedLabel       string    `json:"bed_label,omitempty"`
	MaxAdults      int       `json:"max_adults"`
	MaxChildren    int       `json:"max_children"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
	TotalCount     int       `gorm:"not null" json:"total_count"`
	AvailableCount int       `gorm:"not null;check:available_count >= 0" json:"available_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
