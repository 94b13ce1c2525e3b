package dto

// AdminPackageRequest is an inline package attached directly to a
// reservation instead of referencing a stored one. Admin only.
type AdminPackageRequest struct {
	RoomID         string  `json:"room_id"`
	PricePerNight  float64 `json:"price_per_night"`
	AdultsIncluded int     `json:"adults_included"`
}

// CreateReservationRequest carries dates as "2006-01-02" strings; the
// handler parses and the service normalizes them to midnight UTC.
type CreateReservationRequest struct {
	GuestName    string `json:"guest_name"`
	GuestEmail   string `json:"guest_email"`
	GuestPhone   string `json:"guest_phone"`
	GuestCountry string `json:"guest_country"`

	PackageID    *uint                `json:"package_id"`
	AdminPackage *AdminPackageRequest `json:"admin_package"`

	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
	RoomsWanted int    `json:"rooms_wanted"`
	Adults      int    `json:"adults"`
	Children    int    `json:"children"`

	IdempotencyKey  string `json:"idempotency_key"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type UpdateReservationRequest struct {
	CheckIn     *string `json:"check_in"`
	CheckOut    *string `json:"check_out"`
	RoomsWanted *int    `json:"rooms_wanted"`
}

type CompleteReservationRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// CreateIntentRequest targets either an existing reservation by number
// or, with Reservation set to "NEW", a payment collected before the
// booking is submitted. Amount, Currency and GuestEmail are only read
// in the NEW case.
type CreateIntentRequest struct {
	Reservation string  `json:"reservation"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	GuestEmail  string  `json:"guest_email"`
}
