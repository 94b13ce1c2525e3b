package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kudulodge/reservation-service/internal/dto"
	"github.com/kudulodge/reservation-service/internal/middleware"
	"github.com/kudulodge/reservation-service/internal/payment"
	"github.com/kudulodge/reservation-service/internal/service"
)

// maxWebhookBody bounds how much of a webhook delivery is read before
// signature verification.
const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	svc       service.PaymentService
	jwtSecret string
}

func NewPaymentHandler(svc service.PaymentService, jwtSecret string) *PaymentHandler {
	return &PaymentHandler{svc: svc, jwtSecret: jwtSecret}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	payments := e.Group("/api/v1/payments")
	payments.POST("/intents", h.CreateIntent, middleware.OptionalJWTAuth(h.jwtSecret))
	payments.POST("/webhook", h.Webhook)
}

func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req dto.CreateIntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	input := service.CreateIntentInput{
		GuestEmail: req.GuestEmail,
		Amount:     req.Amount,
		Currency:   req.Currency,
	}
	if !strings.EqualFold(req.Reservation, "NEW") {
		number, err := strconv.ParseInt(req.Reservation, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, `reservation must be a reservation number or "NEW"`)
		}
		input.ReservationNumber = number
	}

	result, err := h.svc.CreateIntent(c.Request().Context(), input, callerIdentity(c))
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, dto.IntentResponse{
		IntentID:          result.Intent.ID,
		ClientSecret:      result.Intent.ClientSecret,
		Status:            result.Intent.Status,
		ReservationNumber: result.ReservationNumber,
	})
}

// Webhook reads the raw body before any decoding: the signature covers
// the exact bytes the provider sent.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	sig := c.Request().Header.Get(payment.SignatureHeader)
	if err := h.svc.HandleWebhook(c.Request().Context(), body, sig); err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidSignature),
			errors.Is(err, payment.ErrStaleTimestamp):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return mapServiceError(err)
		}
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
