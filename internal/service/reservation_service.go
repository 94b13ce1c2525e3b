package service

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/kudulodge/reservation-service/internal/models"
	"github.com/kudulodge/reservation-service/internal/repository"
	"gorm.io/gorm"
)

const (
	// counterName is the sequence the allocator draws reservation
	// numbers from.
	counterName = "reservation_number"

	// recentDuplicateWindow guards against double-submits from network
	// retries and UI double-clicks.
	recentDuplicateWindow = 10 * time.Minute
)

// Identity is the authenticated caller as supplied by the auth
// middleware. Zero value means an anonymous guest.
type Identity struct {
	Email string
	Role  string
}

func (id Identity) IsAdmin() bool {
	return id.Role == "admin"
}

// InlinePackage is the admin-only alternative to a package reference:
// a custom room and nightly price attached directly to the reservation.
type InlinePackage struct {
	RoomID         string
	PricePerNight  float64
	AdultsIncluded int
}

type CreateReservationInput struct {
	GuestName    string
	GuestEmail   string
	GuestPhone   string
	GuestCountry string

	// Exactly one of PackageID and AdminPackage must be set.
	PackageID    *uint
	AdminPackage *InlinePackage

	CheckIn     time.Time
	CheckOut    time.Time
	RoomsWanted int
	Adults      int
	Children    int

	IdempotencyKey  string
	PaymentIntentID string
}

type UpdateReservationInput struct {
	CheckIn     *time.Time
	CheckOut    *time.Time
	RoomsWanted *int
}

// CreateReservationResult distinguishes a freshly created reservation
// from an existing one returned by the duplicate guard.
type CreateReservationResult struct {
	Reservation *models.Reservation
	Existing    bool
}

// pricing is the normalized form both package kinds resolve to; the
// rest of the creation pipeline never branches on where it came from.
type pricing struct {
	RoomID         string
	PricePerNight  float64
	Currency       string
	AdultsIncluded int
}

// EventPublisher decouples the service from the broker so tests can run
// without one. A nil publisher disables publishing.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type ReservationService interface {
	CreateReservation(ctx context.Context, input CreateReservationInput, caller Identity) (*CreateReservationResult, error)
	CancelReservation(ctx context.Context, number int64, caller Identity) (*models.Reservation, error)
	CompleteReservation(ctx context.Context, number int64, paymentIntentID string) (*models.Reservation, error)
	UpdateReservation(ctx context.Context, number int64, input UpdateReservationInput, caller Identity) (*models.Reservation, error)
	DeleteReservation(ctx context.Context, number int64, caller Identity) error
	GetReservation(ctx context.Context, number int64, caller Identity) (*models.Reservation, error)
	ListReservations(ctx context.Context, status *models.ReservationStatus) ([]models.Reservation, error)
	RoomAvailability(ctx context.Context, roomID string) (int, error)
}

type reservationService struct {
	reservationRepo  repository.ReservationRepository
	roomRepo         repository.RoomRepository
	packageRepo      repository.PackageRepository
	counterRepo      repository.CounterRepository
	paymentEventRepo repository.PaymentEventRepository
	publisher        EventPublisher
	numberSeed       int64
	minCharge        float64
}

func NewReservationService(
	reservationRepo repository.ReservationRepository,
	roomRepo repository.RoomRepository,
	packageRepo repository.PackageRepository,
	counterRepo repository.CounterRepository,
	paymentEventRepo repository.PaymentEventRepository,
	publisher EventPublisher,
	numberSeed int64,
	minCharge float64,
) ReservationService {
	return &reservationService{
		reservationRepo:  reservationRepo,
		roomRepo:         roomRepo,
		packageRepo:      packageRepo,
		counterRepo:      counterRepo,
		paymentEventRepo: paymentEventRepo,
		publisher:        publisher,
		numberSeed:       numberSeed,
		minCharge:        minCharge,
	}
}

// normalizeDate truncates a timestamp to midnight UTC. Reservations are
// date-granular; normalizing once here keeps every later comparison and
// the unique index exact.
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *reservationService) CreateReservation(ctx context.Context, input CreateReservationInput, caller Identity) (*CreateReservationResult, error) {
	if err := validateCreateInput(&input, caller); err != nil {
		return nil, err
	}

	input.CheckIn = normalizeDate(input.CheckIn)
	input.CheckOut = normalizeDate(input.CheckOut)
	nights := int(input.CheckOut.Sub(input.CheckIn).Hours() / 24)
	if nights < 1 {
		return nil, validationError("check_out must be after check_in")
	}

	// Duplicate guard, first match wins. It runs before pricing so a
	// replayed request still returns its reservation when the package
	// was deactivated after the original call.
	if existing, err := s.findDuplicate(ctx, &input); err != nil {
		return nil, err
	} else if existing != nil {
		return &CreateReservationResult{Reservation: existing, Existing: true}, nil
	}

	price, err := s.resolvePricing(ctx, &input)
	if err != nil {
		return nil, err
	}

	total := round2(price.PricePerNight * float64(nights) * float64(input.RoomsWanted))
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, validationError("computed total is not a positive amount")
	}

	// Fast-fail pre-check. The authoritative check is the conditional
	// decrement inside the transaction below.
	available, err := s.roomRepo.CheckAvailability(ctx, price.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if available < input.RoomsWanted {
		return nil, ErrInsufficientInventory
	}

	reservation := &models.Reservation{
		GuestName:       strings.TrimSpace(input.GuestName),
		GuestEmail:      strings.ToLower(strings.TrimSpace(input.GuestEmail)),
		GuestPhone:      input.GuestPhone,
		GuestCountry:    input.GuestCountry,
		PackageID:       input.PackageID,
		RoomID:          price.RoomID,
		CheckIn:         input.CheckIn,
		CheckOut:        input.CheckOut,
		RoomsWanted:     input.RoomsWanted,
		Adults:          input.Adults,
		Children:        input.Children,
		Status:          models.StatusBooked,
		TotalAmount:     total,
		Currency:        price.Currency,
		PaymentStatus:   models.PaymentPending,
		PaymentIntentID: input.PaymentIntentID,
		IdempotencyKey:  input.IdempotencyKey,
	}
	if input.PaymentIntentID != "" {
		reservation.PaymentStatus = models.PaymentProcessing
	}
	if input.AdminPackage != nil {
		p := input.AdminPackage.PricePerNight
		a := input.AdminPackage.AdultsIncluded
		reservation.AdminRoomID = input.AdminPackage.RoomID
		reservation.AdminPricePerNight = &p
		reservation.AdminAdultsIncluded = &a
	}

	err = s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Final safety net: the guard ran before the transaction, a
		// competing request may have slipped in since.
		if open, err := s.reservationRepo.FindOpenPayment(ctx, tx, reservation.GuestEmail); err == nil {
			return &PendingPaymentError{
				ReservationNumber: open.ReservationNumber,
				CreatedAt:         open.CreatedAt,
				Amount:            open.TotalAmount,
				Currency:          open.Currency,
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		number, err := s.counterRepo.Next(ctx, tx, counterName, s.numberSeed)
		if err != nil {
			return err
		}
		reservation.ReservationNumber = number

		// Conditional decrement: the availability check and the write
		// are one statement, so the last unit can only go to one of two
		// racing requests.
		rows, err := s.roomRepo.DecrementAvailability(ctx, tx, price.RoomID, input.RoomsWanted)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInsufficientInventory
		}

		return s.reservationRepo.Create(ctx, tx, reservation)
	})
	if err != nil {
		// A racing identical request may have won the partial unique
		// index; surface its reservation instead of a bare conflict.
		if isDuplicateKeyError(err) {
			if existing, derr := s.findDuplicate(ctx, &input); derr == nil && existing != nil {
				return &CreateReservationResult{Reservation: existing, Existing: true}, nil
			}
		}
		return nil, err
	}

	s.publish("reservation.created", reservation)
	return &CreateReservationResult{Reservation: reservation}, nil
}

// findDuplicate applies the three-step duplicate guard in order:
// idempotency-key match, recent-identical match, pending-payment block.
// The first two return the existing reservation; the third is a typed
// error the handler turns into a structured 409.
func (s *reservationService) findDuplicate(ctx context.Context, input *CreateReservationInput) (*models.Reservation, error) {
	email := strings.ToLower(strings.TrimSpace(input.GuestEmail))

	if input.IdempotencyKey != "" {
		existing, err := s.reservationRepo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	since := time.Now().UTC().Add(-recentDuplicateWindow)
	existing, err := s.reservationRepo.FindRecentIdentical(ctx, email, input.CheckIn, input.CheckOut, input.PackageID, since)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	open, err := s.reservationRepo.FindOpenPayment(ctx, s.reservationRepo.GetDB(), email)
	if err == nil {
		return nil, &PendingPaymentError{
			ReservationNumber: open.ReservationNumber,
			CreatedAt:         open.CreatedAt,
			Amount:            open.TotalAmount,
			Currency:          open.Currency,
		}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return nil, nil
}

// resolvePricing collapses the package reference or the admin inline
// package into one normalized pricing struct and verifies the room it
// points at still exists and is bookable.
func (s *reservationService) resolvePricing(ctx context.Context, input *CreateReservationInput) (*pricing, error) {
	var p pricing

	if input.AdminPackage != nil {
		p = pricing{
			RoomID:         input.AdminPackage.RoomID,
			PricePerNight:  input.AdminPackage.PricePerNight,
			Currency:       "USD",
			AdultsIncluded: input.AdminPackage.AdultsIncluded,
		}
	} else {
		pkg, err := s.packageRepo.FindByID(ctx, *input.PackageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPackageNotFound
			}
			return nil, err
		}
		if !pkg.Active {
			return nil, ErrPackageNotFound
		}
		p = pricing{
			RoomID:         pkg.RoomID,
			PricePerNight:  firstPositive(pkg.PricePerNight, pkg.DiscountPrice, pkg.BasePrice),
			Currency:       pkg.Currency,
			AdultsIncluded: pkg.AdultsIncluded,
		}
	}

	if p.Currency == "" {
		p.Currency = "USD"
	}
	// Provider-imposed floor: intents below the minimum charge are
	// rejected upstream, so price the reservation at the floor instead.
	if p.PricePerNight <= 0 {
		p.PricePerNight = s.minCharge
	}

	room, err := s.roomRepo.FindByRoomID(ctx, p.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if !room.Active {
		return nil, ErrRoomNotFound
	}

	return &p, nil
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func validateCreateInput(input *CreateReservationInput, caller Identity) error {
	if strings.TrimSpace(input.GuestName) == "" {
		return validationError("guest_name is required")
	}
	if strings.TrimSpace(input.GuestEmail) == "" {
		return validationError("guest_email is required")
	}
	if input.RoomsWanted < 1 {
		return validationError("rooms_wanted must be at least 1")
	}
	if input.Adults < 1 {
		return validationError("adults must be at least 1")
	}
	if input.Children < 0 {
		return validationError("children must not be negative")
	}
	if (input.PackageID == nil) == (input.AdminPackage == nil) {
		return validationError("exactly one of package_id and admin_package is required")
	}
	if input.AdminPackage != nil {
		if !caller.IsAdmin() {
			return ErrNotAuthorized
		}
		if strings.TrimSpace(input.AdminPackage.RoomID) == "" {
			return validationError("admin_package.room_id is required")
		}
	}
	return nil
}

func (s *reservationService) CancelReservation(ctx context.Context, number int64, caller Identity) (*models.Reservation, error) {
	var result *models.Reservation

	err := s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := s.reservationRepo.FindByNumberForUpdate(ctx, tx, number)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		if !caller.IsAdmin() && !strings.EqualFold(caller.Email, reservation.GuestEmail) {
			return ErrNotAuthorized
		}
		if reservation.PaymentStatus == models.PaymentPaid {
			return ErrAlreadyPaid
		}
		if reservation.Status == models.StatusCancelled {
			return ErrAlreadyCancelled
		}

		reservation.Status = models.StatusCancelled
		reservation.PaymentStatus = models.PaymentCancelled
		if err := s.reservationRepo.Save(ctx, tx, reservation); err != nil {
			return err
		}

		if err := s.roomRepo.IncrementAvailability(ctx, tx, reservation.RoomID, reservation.RoomsWanted); err != nil {
			return err
		}

		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("reservation.cancelled", result)
	return result, nil
}

func (s *reservationService) CompleteReservation(ctx context.Context, number int64, paymentIntentID string) (*models.Reservation, error) {
	var result *models.Reservation

	err := s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := s.reservationRepo.FindByNumberForUpdate(ctx, tx, number)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if reservation.Status == models.StatusCancelled {
			return ErrAlreadyCancelled
		}

		// Repeat completions are no-ops.
		if reservation.PaymentStatus != models.PaymentPaid {
			reservation.PaymentStatus = models.PaymentPaid
			if paymentIntentID != "" {
				reservation.PaymentIntentID = paymentIntentID
			}
			if err := s.reservationRepo.Save(ctx, tx, reservation); err != nil {
				return err
			}
		}

		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("payment.succeeded", result)
	return result, nil
}

func (s *reservationService) UpdateReservation(ctx context.Context, number int64, input UpdateReservationInput, caller Identity) (*models.Reservation, error) {
	if !caller.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	var result *models.Reservation

	err := s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := s.reservationRepo.FindByNumberForUpdate(ctx, tx, number)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if reservation.Status == models.StatusCancelled {
			return ErrAlreadyCancelled
		}

		checkIn := reservation.CheckIn
		checkOut := reservation.CheckOut
		roomsWanted := reservation.RoomsWanted
		if input.CheckIn != nil {
			checkIn = normalizeDate(*input.CheckIn)
		}
		if input.CheckOut != nil {
			checkOut = normalizeDate(*input.CheckOut)
		}
		if input.RoomsWanted != nil {
			roomsWanted = *input.RoomsWanted
		}

		nights := int(checkOut.Sub(checkIn).Hours() / 24)
		if nights < 1 {
			return validationError("check_out must be after check_in")
		}
		if roomsWanted < 1 {
			return validationError("rooms_wanted must be at least 1")
		}

		// Release the old hold, then re-acquire the new amount under the
		// same transaction so the room can't oversell in between.
		if err := s.roomRepo.IncrementAvailability(ctx, tx, reservation.RoomID, reservation.RoomsWanted); err != nil {
			return err
		}
		rows, err := s.roomRepo.DecrementAvailability(ctx, tx, reservation.RoomID, roomsWanted)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInsufficientInventory
		}

		pricePerNight := reservation.TotalAmount
		if oldNights := reservation.Nights(); oldNights > 0 && reservation.RoomsWanted > 0 {
			pricePerNight = reservation.TotalAmount / float64(oldNights) / float64(reservation.RoomsWanted)
		}

		reservation.CheckIn = checkIn
		reservation.CheckOut = checkOut
		reservation.RoomsWanted = roomsWanted
		reservation.TotalAmount = round2(pricePerNight * float64(nights) * float64(roomsWanted))
		if err := s.reservationRepo.Save(ctx, tx, reservation); err != nil {
			return err
		}

		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("reservation.updated", result)
	return result, nil
}

func (s *reservationService) DeleteReservation(ctx context.Context, number int64, caller Identity) error {
	if !caller.IsAdmin() {
		return ErrNotAuthorized
	}

	return s.reservationRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := s.reservationRepo.FindByNumberForUpdate(ctx, tx, number)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		// Cancelled reservations already gave their units back.
		if reservation.Status != models.StatusCancelled {
			if err := s.roomRepo.IncrementAvailability(ctx, tx, reservation.RoomID, reservation.RoomsWanted); err != nil {
				return err
			}
		}

		if err := s.paymentEventRepo.DeleteByIntentID(ctx, tx, reservation.PaymentIntentID); err != nil {
			return err
		}

		return s.reservationRepo.Delete(ctx, tx, reservation.ID)
	})
}

func (s *reservationService) GetReservation(ctx context.Context, number int64, caller Identity) (*models.Reservation, error) {
	reservation, err := s.reservationRepo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if !caller.IsAdmin() && !strings.EqualFold(caller.Email, reservation.GuestEmail) {
		return nil, ErrNotAuthorized
	}
	return reservation, nil
}

func (s *reservationService) ListReservations(ctx context.Context, status *models.ReservationStatus) ([]models.Reservation, error) {
	return s.reservationRepo.List(ctx, status)
}

func (s *reservationService) RoomAvailability(ctx context.Context, roomID string) (int, error) {
	available, err := s.roomRepo.CheckAvailability(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRoomNotFound
		}
		return 0, err
	}
	return available, nil
}

func (s *reservationService) publish(routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, payload); err != nil {
		log.Printf("[Publisher] %s: %v", routingKey, err)
	}
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
