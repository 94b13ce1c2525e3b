package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentEvent is an audit record of every webhook envelope accepted
// from the payment provider. EventID is the provider's own event id;
// the unique index makes duplicate deliveries visible without making
// them errors.
type PaymentEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	EventID         string         `gorm:"uniqueIndex;not null" json:"event_id"`
	EventType       string         `gorm:"not null" json:"event_type"`
	PaymentIntentID string         `gorm:"index" json:"payment_intent_id"`
	Payload         datatypes.JSON `json:"payload"`
	ReceivedAt      time.Time      `json:"received_at"`
}
