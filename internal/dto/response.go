package dto

import (
	"time"

	"github.com/kudulodge/reservation-service/internal/models"
)

type ReservationResponse struct {
	ReservationNumber int64                    `json:"reservation_number"`
	GuestName         string                   `json:"guest_name"`
	GuestEmail        string                   `json:"guest_email"`
	GuestPhone        string                   `json:"guest_phone,omitempty"`
	GuestCountry      string                   `json:"guest_country,omitempty"`
	PackageID         *uint                    `json:"package_id,omitempty"`
	RoomID            string                   `json:"room_id"`
	CheckIn           string                   `json:"check_in"`
	CheckOut          string                   `json:"check_out"`
	Nights            int                      `json:"nights"`
	RoomsWanted       int                      `json:"rooms_wanted"`
	Adults            int                      `json:"adults"`
	Children          int                      `json:"children"`
	Status            models.ReservationStatus `json:"status"`
	TotalAmount       float64                  `json:"total_amount"`
	Currency          string                   `json:"currency"`
	PaymentStatus     models.PaymentStatus     `json:"payment_status"`
	PaymentIntentID   string                   `json:"payment_intent_id,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
}

type AvailabilityResponse struct {
	RoomID         string `json:"room_id"`
	AvailableCount int    `json:"available_count"`
}

type IntentResponse struct {
	IntentID          string `json:"intent_id"`
	ClientSecret      string `json:"client_secret"`
	Status            string `json:"status"`
	ReservationNumber int64  `json:"reservation_number,omitempty"`
}

// PendingPaymentResponse is the 409 body returned when a guest tries to
// book while an earlier payment is still open.
type PendingPaymentResponse struct {
	Message           string    `json:"message"`
	ReservationNumber int64     `json:"reservation_number"`
	CreatedAt         time.Time `json:"created_at"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToReservationResponse(r *models.Reservation) ReservationResponse {
	return ReservationResponse{
		ReservationNumber: r.ReservationNumber,
		GuestName:         r.GuestName,
		GuestEmail:        r.GuestEmail,
		GuestPhone:        r.GuestPhone,
		GuestCountry:      r.GuestCountry,
		PackageID:         r.PackageID,
		RoomID:            r.RoomID,
		CheckIn:           r.CheckIn.Format("2006-01-02"),
		CheckOut:          r.CheckOut.Format("2006-01-02"),
		Nights:            r.Nights(),
		RoomsWanted:       r.RoomsWanted,
		Adults:            r.Adults,
		Children:          r.Children,
		Status:            r.Status,
		TotalAmount:       r.TotalAmount,
		Currency:          r.Currency,
		PaymentStatus:     r.PaymentStatus,
		PaymentIntentID:   r.PaymentIntentID,
		CreatedAt:         r.CreatedAt,
	}
}
