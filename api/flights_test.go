package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFlightUseCase is a mock implementation of flights.FlightUseCase
type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) Resolve(ctx context.Context, flightNumber, date string) domain.FlightRecord {
	args := m.Called(ctx, flightNumber, date)
	return args.Get(0).(domain.FlightRecord)
}

func TestFlightHandler_check(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService, 299)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/flights/check", strings.NewReader(`{"flight_number":"LH401","date":"2025-01-10"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	record := domain.FlightRecord{
		FlightNumber:         "LH401",
		Date:                 "2025-01-10",
		Airline:              "Lufthansa",
		Status:               domain.FlightStatusDelayed,
		DelayDurationMinutes: 185,
		DistanceKm:           6200,
	}
	mockService.On("Resolve", c.Request.Context(), "LH401", "2025-01-10").Return(record)

	handler.check(c)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Flight domain.FlightRecord  `json:"flight"`
		Claim  domain.ClaimEstimate `json:"claim"`
		Payout *struct {
			CompetitorFee int `json:"competitor_fee"`
			Payout        int `json:"payout"`
		} `json:"payout"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, record, body.Flight)
	assert.Equal(t, domain.ClaimEstimate{Eligible: true, Amount: 600, Currency: "€", Regulation: "EU 261/2004"}, body.Claim)
	require.NotNil(t, body.Payout)
	assert.Equal(t, 210, body.Payout.CompetitorFee)
	assert.Equal(t, 600, body.Payout.Payout)

	mockService.AssertExpectations(t)
}

func TestFlightHandler_check_LookupFailed(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService, 299)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/flights/check", strings.NewReader(`{"flight_number":"XX1","date":"2025-01-10"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Resolve", mock.Anything, "XX1", "2025-01-10").Return(domain.FlightRecord{
		FlightNumber: "XX1",
		Date:         "2025-01-10",
		Airline:      "Check Failed (Simulated)",
		Status:       domain.FlightStatusOnTime,
		LookupFailed: true,
	})

	handler.check(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"lookup_failed":true`)
	assert.Contains(t, w.Body.String(), `"eligible":false`)
	assert.NotContains(t, w.Body.String(), `"payout"`)
}

func TestFlightHandler_check_BadRequest(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService, 299)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/flights/check", strings.NewReader(`{"flight_number":"LH401"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.check(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlightHandler_check_BlankInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "whitespace only", body: `{"flight_number":"   ","date":"  "}`},
		{name: "blank flight number", body: `{"flight_number":" ","date":"2025-01-10"}`},
		{name: "blank date", body: `{"flight_number":"LH401","date":"\t"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockFlightUseCase{}
			handler := NewFlightHandler(mockService, 299)

			gin.SetMode(gin.TestMode)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/flights/check", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			handler.check(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), domain.ErrInvalidInput.Error())
			mockService.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestFlightHandler_check_TrimsInput(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService, 299)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/flights/check", strings.NewReader(`{"flight_number":" LH401 ","date":" 2025-01-10 "}`))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Resolve", mock.Anything, "LH401", "2025-01-10").
		Return(domain.FlightRecord{FlightNumber: "LH401", Date: "2025-01-10", Status: domain.FlightStatusOnTime}).Once()

	handler.check(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}
