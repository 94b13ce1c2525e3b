package models

import "time"

type ReservationStatus string

const (
	StatusBooked    ReservationStatus = "booked"
	StatusPending   ReservationStatus = "pending"
	StatusCancelled ReservationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

type Reservation struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ReservationNumber int64             `gorm:"uniqueIndex;not null" json:"reservation_number"`
	GuestName         string            `gorm:"not null" json:"guest_name"`
	GuestEmail        string            `gorm:"index;not null" json:"guest_email"`
	GuestPhone        string            `json:"guest_phone,omitempty"`
	GuestCountry      string            `json:"guest_country,omitempty"`
	PackageID         *uint             `json:"package_id,omitempty"`
	RoomID            string            `gorm:"index;not null" json:"room_id"`
	CheckIn           time.Time         `gorm:"not null" json:"check_in"`
	CheckOut          time.Time         `gorm:"not null" json:"check_out"`
	RoomsWanted       int               `gorm:"not null" json:"rooms_wanted"`
	Adults            int               `gorm:"not null" json:"adults"`
	Children          int               `json:"children"`
	Status            ReservationStatus `gorm:"type:varchar(20);not null;default:'booked'" json:"status"`
	TotalAmount       float64           `gorm:"not null" json:"total_amount"`
	Currency          string            `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentStatus     PaymentStatus     `gorm:"type:varchar(20);index;not null;default:'pending'" json:"payment_status"`
	PaymentIntentID   string            `gorm:"index" json:"payment_intent_id,omitempty"`
	IdempotencyKey    string            `json:"idempotency_key,omitempty"`

	// Admin override fields; set only when a reservation was created with
	// an inline package instead of a PackageID reference.
	AdminRoomID         string   `json:"admin_room_id,omitempty"`
	AdminPricePerNight  *float64 `json:"admin_price_per_night,omitempty"`
	AdminAdultsIncluded *int     `json:"admin_adults_included,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Package *Package `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

// Nights returns the reservation length as whole days. Check-in and
// check-out are stored normalized to midnight UTC, so a plain division
// is exact.
func (r *Reservation) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}
