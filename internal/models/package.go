package models

import "time"

// Package is a pricing offer for a room. Several packages may point at
// the same RoomID. The three price fields form a fallback chain: the
// first positive one wins when a reservation is priced.
type Package struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"not null" json:"name"`
	RoomID         string     `gorm:"index;not null" json:"room_id"`
	PricePerNight  float64    `json:"price_per_night"`
	DiscountPrice  float64    `json:"discount_price"`
	BasePrice      float64    `json:"base_price"`
	Currency       string     `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	AdultsIncluded int        `json:"adults_included"`
	Active         bool       `gorm:"not null;default:true" json:"active"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
