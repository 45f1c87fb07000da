package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
}

type reserveSeatRequest struct {
	UserID     string `json:"userId" binding:"required"`
	ConcertID  int64  `json:"concertId" binding:"required"`
	SeatNumber int    `json:"seatNumber" binding:"required,gt=0"`
}

type reservationResponse struct {
	ReservationID string        `json:"reservationId"`
	UserID        string        `json:"userId"`
	ConcertID     int64         `json:"concertId"`
	SeatID        int64         `json:"seatId"`
	SeatNumber    int           `json:"seatNumber"`
	Price         string        `json:"price"`
	Status        string        `json:"status"`
	CreatedAt     string        `json:"createdAt"`
	ExpiresAt     string        `json:"expiresAt"`
	ConfirmedAt   *string       `json:"confirmedAt,omitempty"`
	Seat          *seatResponse `json:"seat,omitempty"`
}

func NewReservationHandler(service reservation.ReservationUseCase) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.DELETE("/:id", h.cancel)
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req reserveSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !requireOwner(c, req.UserID) {
		return
	}

	res, err := h.service.ReserveSeat(c.Request.Context(), reservation.ReserveSeatInput{
		UserID:     req.UserID,
		ConcertID:  req.ConcertID,
		SeatNumber: req.SeatNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newReservationResponse(res))
}

func (h *ReservationHandler) get(c *gin.Context) {
	view, err := h.service.GetReservationStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !requireOwner(c, view.Reservation.UserID) {
		return
	}

	resp := newReservationResponse(&view.Reservation)
	seat := newSeatResponse(&view.Seat)
	resp.Seat = &seat
	c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	res, err := h.service.CancelReservation(c.Request.Context(), c.Param("id"), tokenOwner(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newReservationResponse(res))
}

func newReservationResponse(r *domain.Reservation) reservationResponse {
	return reservationResponse{
		ReservationID: r.ID,
		UserID:        r.UserID,
		ConcertID:     r.ConcertID,
		SeatID:        r.SeatID,
		SeatNumber:    r.SeatNumber,
		Price:         r.Price.String(),
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		ExpiresAt:     r.ExpiresAt.Format(time.RFC3339),
		ConfirmedAt:   formatTimePtr(r.ConfirmedAt),
	}
}
