package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/eligibility"
	"github.com/Domenick1991/claimjet/internal/service/claims"
	"github.com/Domenick1991/claimjet/internal/workflow"
	"github.com/gin-gonic/gin"
)

type ClaimHandler struct {
	service claims.ClaimsUseCase
}

type searchRequest struct {
	FlightNumber string `json:"flight_number" binding:"required"`
	Date         string `json:"date" binding:"required"`
}

type paymentRequest struct {
	FirstName        string `json:"first_name" binding:"required"`
	LastName         string `json:"last_name" binding:"required"`
	BookingReference string `json:"booking_reference" binding:"required"`
	Email            string `json:"email" binding:"required,email"`
}

// claimResponse never echoes passenger details back; only whether they were
// recorded.
type claimResponse struct {
	ID           string                        `json:"id"`
	Step         string                        `json:"step"`
	Flight       *domain.FlightRecord          `json:"flight,omitempty"`
	Claim        *domain.ClaimEstimate         `json:"claim,omitempty"`
	Payout       *eligibility.PayoutComparison `json:"payout,omitempty"`
	PassengerSet bool                          `json:"passenger_set"`
	LetterStatus string                        `json:"letter_status,omitempty"`
	UpdatedAt    string                        `json:"updated_at"`
}

type letterResponse struct {
	Status  string   `json:"status"`
	Letter  string   `json:"letter,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Failed  bool     `json:"failed"`
}

func NewClaimHandler(service claims.ClaimsUseCase) *ClaimHandler {
	return &ClaimHandler{service: service}
}

func (h *ClaimHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/search", h.search)
	router.POST("/:id/proceed", h.proceed)
	router.POST("/:id/payment", h.payment)
	router.GET("/:id/letter", h.letter)
	router.GET("/:id/letter.txt", h.download)
	router.POST("/:id/reset", h.reset)
}

func (h *ClaimHandler) create(c *gin.Context) {
	session, err := h.service.Start(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toClaimResponse(session))
}

func (h *ClaimHandler) get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(session))
}

func (h *ClaimHandler) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.Search(c.Request.Context(), c.Param("id"), req.FlightNumber, req.Date)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(session))
}

func (h *ClaimHandler) proceed(c *gin.Context) {
	session, err := h.service.Proceed(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(session))
}

func (h *ClaimHandler) payment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.Pay(c.Request.Context(), c.Param("id"), domain.PassengerDetails{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		BookingReference: req.BookingReference,
		Email:            req.Email,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toClaimResponse(session))
}

func (h *ClaimHandler) letter(c *gin.Context) {
	wait, _ := strconv.ParseBool(c.Query("wait"))

	session, err := h.service.Letter(c.Request.Context(), c.Param("id"), wait)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := letterResponse{Status: string(session.State.LetterStatus)}
	if l := session.State.Letter; l != nil {
		resp.Letter = l.Body
		resp.Sources = l.Sources
		resp.Failed = l.Failed
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClaimHandler) download(c *gin.Context) {
	session, err := h.service.Letter(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if session.State.Letter == nil || session.State.Flight == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": string(session.State.LetterStatus)})
		return
	}

	name := domain.LetterFileName(session.State.Flight.FlightNumber)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(session.State.Letter.Text()))
}

func (h *ClaimHandler) reset(c *gin.Context) {
	session, err := h.service.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(session))
}

func toClaimResponse(s claims.Session) claimResponse {
	resp := claimResponse{
		ID:           s.ID,
		Step:         string(s.State.Step),
		Flight:       s.State.Flight,
		Claim:        s.State.Claim,
		Payout:       s.Payout,
		PassengerSet: s.State.Passenger != nil,
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
	}
	if s.State.Step == workflow.StepSuccess {
		resp.LetterStatus = string(s.State.LetterStatus)
	}
	return resp
}
