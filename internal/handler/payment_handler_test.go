package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudulodge/reservation-service/internal/dto"
	"github.com/kudulodge/reservation-service/internal/payment"
	"github.com/kudulodge/reservation-service/internal/service"
)

// --- Mock PaymentService ---

type mockPaymentService struct {
	createIntentFn func(ctx context.Context, input service.CreateIntentInput, caller service.Identity) (*service.CreateIntentResult, error)
	webhookFn      func(ctx context.Context, body []byte, signatureHeader string) error
}

func (m *mockPaymentService) CreateIntent(ctx context.Context, input service.CreateIntentInput, caller service.Identity) (*service.CreateIntentResult, error) {
	return m.createIntentFn(ctx, input, caller)
}
func (m *mockPaymentService) HandleWebhook(ctx context.Context, body []byte, signatureHeader string) error {
	return m.webhookFn(ctx, body, signatureHeader)
}

// --- CreateIntent ---

func TestCreateIntent_Handler_ForReservation(t *testing.T) {
	svc := &mockPaymentService{
		createIntentFn: func(ctx context.Context, input service.CreateIntentInput, caller service.Identity) (*service.CreateIntentResult, error) {
			assert.Equal(t, int64(1001), input.ReservationNumber)
			return &service.CreateIntentResult{
				Intent:            &payment.Intent{ID: "pi_123", ClientSecret: "pi_123_secret", Status: "requires_payment_method"},
				ReservationNumber: 1001,
			}, nil
		},
	}

	e := echo.New()
	body := `{"reservation":"1001"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intents", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewPaymentHandler(svc, "secret")
	require.NoError(t, h.CreateIntent(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.IntentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pi_123", resp.IntentID)
	assert.Equal(t, int64(1001), resp.ReservationNumber)
}

func TestCreateIntent_Handler_New(t *testing.T) {
	svc := &mockPaymentService{
		createIntentFn: func(ctx context.Context, input service.CreateIntentInput, caller service.Identity) (*service.CreateIntentResult, error) {
			assert.Zero(t, input.ReservationNumber)
			assert.Equal(t, "amara@example.com", input.GuestEmail)
			assert.Equal(t, 360.0, input.Amount)
			return &service.CreateIntentResult{
				Intent: &payment.Intent{ID: "pi_new", ClientSecret: "s", Status: "requires_payment_method"},
			}, nil
		},
	}

	e := echo.New()
	body := `{"reservation":"NEW","guest_email":"amara@example.com","amount":360,"currency":"USD"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intents", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewPaymentHandler(svc, "secret")
	require.NoError(t, h.CreateIntent(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateIntent_Handler_BadReservationRef(t *testing.T) {
	e := echo.New()
	body := `{"reservation":"soon"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intents", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewPaymentHandler(nil, "secret")
	err := h.CreateIntent(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestCreateIntent_Handler_AlreadyPaid(t *testing.T) {
	svc := &mockPaymentService{
		createIntentFn: func(ctx context.Context, input service.CreateIntentInput, caller service.Identity) (*service.CreateIntentResult, error) {
			return nil, service.ErrAlreadyPaid
		},
	}

	e := echo.New()
	body := `{"reservation":"1001"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intents", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewPaymentHandler(svc, "secret")
	err := h.CreateIntent(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

// --- Webhook ---

func TestWebhook_Handler_Success(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)
	sig := payment.Sign(body, "whsec", time.Now())

	var gotBody []byte
	var gotSig string
	svc := &mockPaymentService{
		webhookFn: func(ctx context.Context, b []byte, s string) error {
			gotBody = b
			gotSig = s
			return nil
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set(payment.SignatureHeader, sig)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewPaymentHandler(svc, "secret")
	require.NoError(t, h.Webhook(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, gotBody, "handler must pass the raw body through untouched")
	assert.Equal(t, sig, gotSig)
}

func TestWebhook_Handler_InvalidSignature(t *testing.T) {
	svc := &mockPaymentService{
		webhookFn: func(ctx context.Context, b []byte, s string) error {
			return payment.ErrInvalidSignature
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewPaymentHandler(svc, "secret")
	err := h.Webhook(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestWebhook_Handler_StaleTimestamp(t *testing.T) {
	svc := &mockPaymentService{
		webhookFn: func(ctx context.Context, b []byte, s string) error {
			return payment.ErrStaleTimestamp
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewPaymentHandler(svc, "secret")
	err := h.Webhook(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
