package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kudulodge/reservation-service/internal/models"
	"github.com/kudulodge/reservation-service/internal/payment"
	"github.com/kudulodge/reservation-service/internal/repository"
)

const (
	// webhookDedupPrefix namespaces the Redis keys used to drop
	// redelivered webhook events.
	webhookDedupPrefix = "payment:event:"

	// webhookDedupTTL keeps dedup keys around long enough to outlast any
	// reasonable provider retry schedule.
	webhookDedupTTL = 24 * time.Hour
)

// CreateIntentInput describes an intent request. ReservationNumber is 0
// when the caller pays before the reservation exists; Amount, Currency
// and GuestEmail must then be supplied directly.
type CreateIntentInput struct {
	ReservationNumber int64
	GuestEmail        string
	Amount            float64
	Currency          string
}

// CreateIntentResult pairs the provider intent with the reservation it
// settles, if one exists yet.
type CreateIntentResult struct {
	Intent            *payment.Intent
	ReservationNumber int64
}

type PaymentService interface {
	CreateIntent(ctx context.Context, input CreateIntentInput, caller Identity) (*CreateIntentResult, error)
	HandleWebhook(ctx context.Context, body []byte, signatureHeader string) error
}

type paymentService struct {
	reservationRepo  repository.ReservationRepository
	paymentEventRepo repository.PaymentEventRepository
	provider         payment.Provider
	redis            *redis.Client
	publisher        EventPublisher
	webhookSecret    string
	minCharge        float64
}

func NewPaymentService(
	reservationRepo repository.ReservationRepository,
	paymentEventRepo repository.PaymentEventRepository,
	provider payment.Provider,
	redisClient *redis.Client,
	publisher EventPublisher,
	webhookSecret string,
	minCharge float64,
) PaymentService {
	return &paymentService{
		reservationRepo:  reservationRepo,
		paymentEventRepo: paymentEventRepo,
		provider:         provider,
		redis:            redisClient,
		publisher:        publisher,
		webhookSecret:    webhookSecret,
		minCharge:        minCharge,
	}
}

func (s *paymentService) CreateIntent(ctx context.Context, input CreateIntentInput, caller Identity) (*CreateIntentResult, error) {
	if input.ReservationNumber != 0 {
		return s.createIntentForReservation(ctx, input.ReservationNumber, caller)
	}
	return s.createStandaloneIntent(ctx, input)
}

// createIntentForReservation creates (or replays) the intent settling an
// existing reservation. The idempotency token is derived from the
// reservation itself, so repeated calls hit the provider's idempotency
// cache and come back with the same intent.
func (s *paymentService) createIntentForReservation(ctx context.Context, number int64, caller Identity) (*CreateIntentResult, error) {
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
	if reservation.Status == models.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if reservation.PaymentStatus == models.PaymentPaid {
		return nil, ErrAlreadyPaid
	}

	amountCents := toCents(reservation.TotalAmount)
	if amountCents < toCents(s.minCharge) {
		return nil, validationError(fmt.Sprintf("amount is below the minimum charge of %.2f", s.minCharge))
	}

	token := intentToken(reservation.ReservationNumber, reservation.GuestEmail, amountCents, reservation.Currency)
	intent, err := s.createWithRetry(ctx, amountCents, reservation.Currency, token)
	if err != nil {
		return nil, err
	}

	// The provider call blocks; the reservation may have settled or been
	// cancelled in the meantime. The conditional update only touches rows
	// whose payment is still open, so a concurrent webhook or cancel is
	// never overwritten with this pre-call read.
	rows, err := s.reservationRepo.AttachPaymentIntent(ctx, reservation.ReservationNumber, intent.ID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		current, err := s.reservationRepo.FindByNumber(ctx, reservation.ReservationNumber)
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusCancelled {
			return nil, ErrAlreadyCancelled
		}
		return nil, ErrAlreadyPaid
	}

	return &CreateIntentResult{Intent: intent, ReservationNumber: reservation.ReservationNumber}, nil
}

// createStandaloneIntent creates an intent before the reservation exists,
// for flows where the frontend collects payment first and submits the
// booking with the intent id attached.
func (s *paymentService) createStandaloneIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.GuestEmail))
	if email == "" {
		return nil, validationError("guest_email is required")
	}
	if input.Amount <= 0 || math.IsNaN(input.Amount) || math.IsInf(input.Amount, 0) {
		return nil, validationError("amount must be a positive number")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	amountCents := toCents(input.Amount)
	if amountCents < toCents(s.minCharge) {
		return nil, validationError(fmt.Sprintf("amount is below the minimum charge of %.2f", s.minCharge))
	}

	token := intentToken(0, email, amountCents, currency)
	intent, err := s.createWithRetry(ctx, amountCents, currency, token)
	if err != nil {
		return nil, err
	}
	return &CreateIntentResult{Intent: intent}, nil
}

// createWithRetry calls the provider once with the deterministic token
// and, if the provider reports the token was already used with different
// parameters, retries exactly once with a random-suffixed token. A
// second conflict is a genuine error.
func (s *paymentService) createWithRetry(ctx context.Context, amountCents int64, currency, token string) (*payment.Intent, error) {
	intent, err := s.provider.CreateIntent(ctx, amountCents, currency, token)
	if err == nil {
		return intent, nil
	}
	if !errors.Is(err, payment.ErrIdempotencyConflict) {
		return nil, err
	}

	log.Printf("[Payment] idempotency conflict on token %s, retrying with fresh token", token)
	return s.provider.CreateIntent(ctx, amountCents, currency, token+"-"+randomSuffix())
}

func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signatureHeader string) error {
	if err := payment.VerifySignature(body, signatureHeader, s.webhookSecret, payment.DefaultTolerance); err != nil {
		return err
	}

	var event payment.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return validationError("malformed webhook payload")
	}
	if event.ID == "" {
		return validationError("webhook event is missing an id")
	}

	if s.seenEvent(ctx, event.ID) {
		log.Printf("[Payment] duplicate webhook event %s, skipping", event.ID)
		return nil
	}

	record := &models.PaymentEvent{
		EventID:         event.ID,
		EventType:       event.Type,
		PaymentIntentID: event.Data.Object.ID,
		Payload:         datatypes.JSON(body),
		ReceivedAt:      time.Now().UTC(),
	}
	if err := s.paymentEventRepo.Record(ctx, record); err != nil {
		return err
	}

	switch event.Type {
	case "payment_intent.succeeded":
		return s.applyPaymentStatus(ctx, &event, models.PaymentPaid, "payment.succeeded")
	case "payment_intent.payment_failed":
		return s.applyPaymentStatus(ctx, &event, models.PaymentFailed, "payment.failed")
	default:
		log.Printf("[Payment] ignoring webhook event type %s", event.Type)
		return nil
	}
}

// applyPaymentStatus flips the reservation matched by intent id. An
// unknown intent is logged, not failed: the webhook may simply have
// arrived before the reservation was submitted, and the provider would
// otherwise retry forever.
func (s *paymentService) applyPaymentStatus(ctx context.Context, event *payment.Event, status models.PaymentStatus, routingKey string) error {
	intentID := event.Data.Object.ID
	if intentID == "" {
		return validationError("webhook event is missing a payment intent id")
	}

	rows, err := s.reservationRepo.UpdatePaymentStatusByIntent(ctx, intentID, status)
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Printf("[Payment] no reservation for intent %s (event %s), recorded for later", intentID, event.ID)
		return nil
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(routingKey, map[string]string{
			"payment_intent_id": intentID,
			"event_id":          event.ID,
			"status":            string(status),
		}); err != nil {
			log.Printf("[Publisher] %s: %v", routingKey, err)
		}
	}
	return nil
}

// seenEvent reports whether the event id was already processed. With no
// Redis configured it always reports false; the unique index on
// payment_events and the plain-overwrite status update keep redelivery
// harmless regardless.
func (s *paymentService) seenEvent(ctx context.Context, eventID string) bool {
	if s.redis == nil {
		return false
	}
	ok, err := s.redis.SetNX(ctx, webhookDedupPrefix+eventID, 1, webhookDedupTTL).Result()
	if err != nil {
		log.Printf("[Redis] dedup check failed for event %s: %v", eventID, err)
		return false
	}
	return !ok
}

// intentToken derives the deterministic idempotency token for an intent.
// The same reservation, guest and amount always map to the same token,
// so retries after a network failure replay the original provider call.
func intentToken(number int64, email string, amountCents int64, currency string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d|%s",
		number, strings.ToLower(strings.TrimSpace(email)), amountCents, strings.ToUpper(currency))))
	return hex.EncodeToString(sum[:])
}

func randomSuffix() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
