package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/eligibility"
	"github.com/Domenick1991/claimjet/internal/service/flights"
	"github.com/gin-gonic/gin"
)

// FlightHandler answers one-off eligibility checks without opening a claim.
type FlightHandler struct {
	service         flights.FlightUseCase
	serviceFeeCents int
}

type checkFlightRequest struct {
	FlightNumber string `json:"flight_number" binding:"required"`
	Date         string `json:"date" binding:"required"`
}

type checkFlightResponse struct {
	Flight domain.FlightRecord           `json:"flight"`
	Claim  domain.ClaimEstimate          `json:"claim"`
	Payout *eligibility.PayoutComparison `json:"payout,omitempty"`
}

func NewFlightHandler(service flights.FlightUseCase, serviceFeeCents int) *FlightHandler {
	return &FlightHandler{service: service, serviceFeeCents: serviceFeeCents}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.POST("/check", h.check)
}

func (h *FlightHandler) check(c *gin.Context) {
	var req checkFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.FlightNumber = strings.TrimSpace(req.FlightNumber)
	req.Date = strings.TrimSpace(req.Date)
	if req.FlightNumber == "" || req.Date == "" {
		abortWithError(c, fmt.Errorf("%w: flight number and date are required", domain.ErrInvalidInput))
		return
	}

	record := h.service.Resolve(c.Request.Context(), req.FlightNumber, req.Date)
	claim := eligibility.Calculate(record)

	resp := checkFlightResponse{Flight: record, Claim: claim}
	if claim.Eligible {
		payout := eligibility.ComparePayout(claim.Amount, h.serviceFeeCents)
		resp.Payout = &payout
	}
	c.JSON(http.StatusOK, resp)
}
