package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/service/payment"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service payment.PaymentUseCase
}

type processPaymentRequest struct {
	ReservationID string `json:"reservationId" binding:"required"`
	UserID        string `json:"userId" binding:"required"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

type paymentResponse struct {
	PaymentID     string `json:"paymentId"`
	ReservationID string `json:"reservationId"`
	UserID        string `json:"userId"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
}

func NewPaymentHandler(service payment.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.process)
	router.GET("/:id", h.get)
	router.POST("/:id/refund", h.refund)
}

// RegisterByReservation mounts the payment lookup under /reservations.
func (h *PaymentHandler) RegisterByReservation(router *gin.RouterGroup) {
	router.GET("/:id/payment", h.byReservation)
}

func (h *PaymentHandler) process(c *gin.Context) {
	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !requireOwner(c, req.UserID) {
		return
	}

	p, err := h.service.ProcessPayment(c.Request.Context(), payment.ProcessPaymentInput{
		ReservationID: req.ReservationID,
		UserID:        req.UserID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPaymentResponse(p))
}

func (h *PaymentHandler) get(c *gin.Context) {
	p, err := h.service.GetPaymentInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !requireOwner(c, p.UserID) {
		return
	}

	c.JSON(http.StatusOK, newPaymentResponse(p))
}

func (h *PaymentHandler) byReservation(c *gin.Context) {
	p, err := h.service.GetPaymentByReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !requireOwner(c, p.UserID) {
		return
	}

	c.JSON(http.StatusOK, newPaymentResponse(p))
}

func (h *PaymentHandler) refund(c *gin.Context) {
	var req refundRequest
	// The body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	p, err := h.service.RefundPayment(c.Request.Context(), payment.RefundPaymentInput{
		PaymentID: c.Param("id"),
		UserID:    tokenOwner(c),
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPaymentResponse(p))
}

func newPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:     p.ID,
		ReservationID: p.ReservationID,
		UserID:        p.UserID,
		Amount:        p.Amount.String(),
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}
