//go:build api

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end flow against a running service. Requires a seeded room and
// package; override the defaults with API_* env vars.

var (
	baseURL   = getEnv("API_BASE_URL", "http://localhost:8080")
	jwtSecret = getEnv("API_JWT_SECRET", "dev-secret")
	roomID    = getEnv("API_ROOM_ID", "room-savanna")
	packageID = getEnv("API_PACKAGE_ID", "1")
)

func TestAPI_ReservationFlow(t *testing.T) {
	waitForService(t)

	guestEmail := fmt.Sprintf("api-%d@example.com", time.Now().UnixNano())
	idemKey := fmt.Sprintf("api-key-%d", time.Now().UnixNano())
	var reservationNumber float64
	var availableBefore float64

	t.Run("Step1_RoomAvailability", func(t *testing.T) {
		resp := get(t, baseURL+"/api/v1/rooms/"+roomID+"/availability", "")
		require.Equal(t, 200, resp.StatusCode)

		var availability map[string]interface{}
		decodeJSON(t, resp, &availability)
		availableBefore = availability["available_count"].(float64)
		require.GreaterOrEqual(t, availableBefore, float64(1), "seeded room must have availability")
	})

	t.Run("Step2_CreateReservation", func(t *testing.T) {
		body := map[string]interface{}{
			"guest_name":      "API Guest",
			"guest_email":     guestEmail,
			"package_id":      json.Number(packageID),
			"check_in":        "2027-03-01",
			"check_out":       "2027-03-04",
			"rooms_wanted":    1,
			"adults":          2,
			"idempotency_key": idemKey,
		}

		resp := post(t, baseURL+"/api/v1/reservations", body, "")
		require.Equal(t, 201, resp.StatusCode)

		var created map[string]interface{}
		decodeJSON(t, resp, &created)
		reservationNumber = created["reservation_number"].(float64)
		assert.Greater(t, reservationNumber, float64(1000))
		assert.Equal(t, "booked", created["status"])
		assert.Equal(t, "pending", created["payment_status"])
		assert.Equal(t, float64(3), created["nights"])
	})

	t.Run("Step3_IdempotentReplay", func(t *testing.T) {
		body := map[string]interface{}{
			"guest_name":      "API Guest",
			"guest_email":     guestEmail,
			"package_id":      json.Number(packageID),
			"check_in":        "2027-03-01",
			"check_out":       "2027-03-04",
			"rooms_wanted":    1,
			"adults":          2,
			"idempotency_key": idemKey,
		}

		resp := post(t, baseURL+"/api/v1/reservations", body, "")
		require.Equal(t, 200, resp.StatusCode, "replay should return the existing reservation")

		var replayed map[string]interface{}
		decodeJSON(t, resp, &replayed)
		assert.Equal(t, reservationNumber, replayed["reservation_number"])
	})

	t.Run("Step4_PendingPaymentBlocksSecondBooking", func(t *testing.T) {
		body := map[string]interface{}{
			"guest_name":   "API Guest",
			"guest_email":  guestEmail,
			"package_id":   json.Number(packageID),
			"check_in":     "2027-04-01",
			"check_out":    "2027-04-03",
			"rooms_wanted": 1,
			"adults":       2,
		}

		resp := post(t, baseURL+"/api/v1/reservations", body, "")
		require.Equal(t, 409, resp.StatusCode)

		var conflict map[string]interface{}
		decodeJSON(t, resp, &conflict)
		assert.Equal(t, reservationNumber, conflict["reservation_number"])
	})

	t.Run("Step5_CancelRestoresAvailability", func(t *testing.T) {
		token := guestToken(t, guestEmail)
		url := fmt.Sprintf("%s/api/v1/reservations/%.0f/cancel", baseURL, reservationNumber)

		resp := put(t, url, nil, token)
		require.Equal(t, 200, resp.StatusCode)

		var cancelled map[string]interface{}
		decodeJSON(t, resp, &cancelled)
		assert.Equal(t, "cancelled", cancelled["status"])

		resp = get(t, baseURL+"/api/v1/rooms/"+roomID+"/availability", "")
		require.Equal(t, 200, resp.StatusCode)

		var availability map[string]interface{}
		decodeJSON(t, resp, &availability)
		assert.Equal(t, availableBefore, availability["available_count"].(float64))
	})
}

// Helper functions

func guestToken(t *testing.T, email string) string {
	claims := jwt.MapClaims{
		"sub": email,
		"exp": time.Now().Add(10 * time.Minute).Unix(),
		"iat": time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

func waitForService(t *testing.T) {
	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		resp, err := http.Get(baseURL + "/health")
		if err == nil && resp.StatusCode == 200 {
			resp.Body.Close()
			return
		}
		time.Sleep(1 * time.Second)
	}
	t.Fatal("service did not become ready in time")
}

func do(t *testing.T, method, url string, body interface{}, token string) *http.Response {
	var reader *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, url, token string) *http.Response {
	return do(t, http.MethodGet, url, nil, token)
}

func post(t *testing.T, url string, body interface{}, token string) *http.Response {
	return do(t, http.MethodPost, url, body, token)
}

func put(t *testing.T, url string, body interface{}, token string) *http.Response {
	return do(t, http.MethodPut, url, body, token)
}

func decodeJSON(t *testing.T, resp *http.Response, target interface{}) {
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMain(m *testing.M) {
	fmt.Println("Starting API tests against", baseURL)
	os.Exit(m.Run())
}
