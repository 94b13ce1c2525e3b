package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrPackageNotFound       = errors.New("package not found")
	ErrRoomNotFound          = errors.New("room not found")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrInsufficientInventory = errors.New("not enough rooms available")
	ErrAlreadyPaid           = errors.New("reservation is already paid; cancellation requires a refund")
	ErrAlreadyCancelled      = errors.New("reservation is already cancelled")
	ErrNotAuthorized         = errors.New("not authorized")
)

// validationError tags a field-level message with ErrValidation so
// handlers can map the whole family to one status code.
func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// PendingPaymentError rejects a new booking while the guest still has an
// unsettled payment. Unlike the idempotency and double-submit matches,
// which silently return the existing record, this is a hard business
// rule and carries enough detail for the guest to resolve the open
// payment first.
type PendingPaymentError struct {
	ReservationNumber int64     `json:"reservation_number"`
	CreatedAt         time.Time `json:"created_at"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
}

func (e *PendingPaymentError) Error() string {
	return fmt.Sprintf("guest has an unresolved payment on reservation %d", e.ReservationNumber)
}
