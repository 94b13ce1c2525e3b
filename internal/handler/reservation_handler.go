package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kudulodge/reservation-service/internal/dto"
	"github.com/kudulodge/reservation-service/internal/middleware"
	"github.com/kudulodge/reservation-service/internal/models"
	"github.com/kudulodge/reservation-service/internal/service"
)

type ReservationHandler struct {
	svc       service.ReservationService
	jwtSecret string
}

func NewReservationHandler(svc service.ReservationService, jwtSecret string) *ReservationHandler {
	return &ReservationHandler{svc: svc, jwtSecret: jwtSecret}
}

func (h *ReservationHandler) RegisterRoutes(e *echo.Echo) {
	auth := middleware.JWTAuth(h.jwtSecret)
	optional := middleware.OptionalJWTAuth(h.jwtSecret)
	admin := middleware.RequireRole("admin")

	reservations := e.Group("/api/v1/reservations")
	reservations.POST("", h.CreateReservation, optional)
	reservations.GET("", h.ListReservations, auth, admin)
	reservations.GET("/:number", h.GetReservation, auth)
	reservations.PUT("/:number/cancel", h.CancelReservation, auth)
	reservations.PUT("/:number/complete", h.CompleteReservation, auth, admin)
	reservations.PUT("/:number", h.UpdateReservation, auth, admin)
	reservations.DELETE("/:number", h.DeleteReservation, auth, admin)

	e.GET("/api/v1/rooms/:roomId/availability", h.RoomAvailability)
}

func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	var req dto.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	checkIn, err := parseDate(req.CheckIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "check_in must be a YYYY-MM-DD date")
	}
	checkOut, err := parseDate(req.CheckOut)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "check_out must be a YYYY-MM-DD date")
	}

	input := service.CreateReservationInput{
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		GuestPhone:      req.GuestPhone,
		GuestCountry:    req.GuestCountry,
		PackageID:       req.PackageID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		RoomsWanted:     req.RoomsWanted,
		Adults:          req.Adults,
		Children:        req.Children,
		IdempotencyKey:  req.IdempotencyKey,
		PaymentIntentID: req.PaymentIntentID,
	}
	if req.AdminPackage != nil {
		input.AdminPackage = &service.InlinePackage{
			RoomID:         req.AdminPackage.RoomID,
			PricePerNight:  req.AdminPackage.PricePerNight,
			AdultsIncluded: req.AdminPackage.AdultsIncluded,
		}
	}

	result, err := h.svc.CreateReservation(c.Request().Context(), input, callerIdentity(c))
	if err != nil {
		return mapServiceError(err)
	}

	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	}
	return c.JSON(status, dto.ToReservationResponse(result.Reservation))
}

func (h *ReservationHandler) GetReservation(c echo.Context) error {
	number, err := parseNumber(c)
	if err != nil {
		return err
	}

	reservation, err := h.svc.GetReservation(c.Request().Context(), number, callerIdentity(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) ListReservations(c echo.Context) error {
	var status *models.ReservationStatus
	if s := c.QueryParam("status"); s != "" {
		rs := models.ReservationStatus(s)
		status = &rs
	}

	reservations, err := h.svc.ListReservations(c.Request().Context(), status)
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]dto.ReservationResponse, len(reservations))
	for i, r := range reservations {
		resp[i] = dto.ToReservationResponse(&r)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	number, err := parseNumber(c)
	if err != nil {
		return err
	}

	reservation, err := h.svc.CancelReservation(c.Request().Context(), number, callerIdentity(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) CompleteReservation(c echo.Context) error {
	number, err := parseNumber(c)
	if err != nil {
		return err
	}

	var req dto.CompleteReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reservation, err := h.svc.CompleteReservation(c.Request().Context(), number, req.PaymentIntentID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) UpdateReservation(c echo.Context) error {
	number, err := parseNumber(c)
	if err != nil {
		return err
	}

	var req dto.UpdateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var input service.UpdateReservationInput
	if req.CheckIn != nil {
		t, err := parseDate(*req.CheckIn)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "check_in must be a YYYY-MM-DD date")
		}
		input.CheckIn = &t
	}
	if req.CheckOut != nil {
		t, err := parseDate(*req.CheckOut)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "check_out must be a YYYY-MM-DD date")
		}
		input.CheckOut = &t
	}
	input.RoomsWanted = req.RoomsWanted

	reservation, err := h.svc.UpdateReservation(c.Request().Context(), number, input, callerIdentity(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(reservation))
}

func (h *ReservationHandler) DeleteReservation(c echo.Context) error {
	number, err := parseNumber(c)
	if err != nil {
		return err
	}

	if err := h.svc.DeleteReservation(c.Request().Context(), number, callerIdentity(c)); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReservationHandler) RoomAvailability(c echo.Context) error {
	roomID := c.Param("roomId")

	available, err := h.svc.RoomAvailability(c.Request().Context(), roomID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, dto.AvailabilityResponse{
		RoomID:         roomID,
		AvailableCount: available,
	})
}

func parseNumber(c echo.Context) (int64, error) {
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid reservation number")
	}
	return number, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func callerIdentity(c echo.Context) service.Identity {
	email, _ := c.Get(middleware.ContextEmail).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	return service.Identity{Email: email, Role: role}
}

// mapServiceError translates service-level errors into HTTP responses.
// The pending-payment conflict carries a structured body so the client
// can surface the blocking reservation.
func mapServiceError(err error) error {
	var pending *service.PendingPaymentError
	if errors.As(err, &pending) {
		return echo.NewHTTPError(http.StatusConflict, dto.PendingPaymentResponse{
			Message:           "guest has a reservation with an unresolved payment",
			ReservationNumber: pending.ReservationNumber,
			CreatedAt:         pending.CreatedAt,
			Amount:            pending.Amount,
			Currency:          pending.Currency,
		})
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPackageNotFound),
		errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrReservationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInsufficientInventory):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrAlreadyCancelled):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case isRetryableStorageError(err):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "temporary storage conflict, retry the request")
	default:
		// Storage and provider failures stay in the logs; their text is
		// not for clients.
		log.Printf("[Handler] internal error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// isRetryableStorageError reports whether the error is a transient
// database conflict (serialization failure or deadlock) that the client
// can resolve by retrying the request.
func isRetryableStorageError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlstate 40001") ||
		strings.Contains(msg, "sqlstate 40p01") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected")
}
