package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/service/seats"
	"github.com/gin-gonic/gin"
)

type SeatHandler struct {
	service seats.SeatUseCase
}

type seatResponse struct {
	SeatID        int64   `json:"seatId"`
	ConcertID     int64   `json:"concertId"`
	SeatNumber    int     `json:"seatNumber"`
	Price         string  `json:"price"`
	Status        string  `json:"status"`
	AssignedUntil *string `json:"assignedUntil,omitempty"`
}

func NewSeatHandler(service seats.SeatUseCase) *SeatHandler {
	return &SeatHandler{service: service}
}

func (h *SeatHandler) Register(router *gin.RouterGroup) {
	router.GET("/:concertId/seats", h.list)
}

func (h *SeatHandler) list(c *gin.Context) {
	concertID, err := strconv.ParseInt(c.Param("concertId"), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid_input", "invalid concert id")
		return
	}
	onlyAvailable := c.Query("available") == "true"

	list, err := h.service.ListSeats(c.Request.Context(), concertID, onlyAvailable)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]seatResponse, 0, len(list))
	for i := range list {
		out = append(out, newSeatResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"concertId": concertID, "seats": out})
}

func newSeatResponse(s *domain.Seat) seatResponse {
	return seatResponse{
		SeatID:        s.ID,
		ConcertID:     s.ConcertID,
		SeatNumber:    s.SeatNumber,
		Price:         s.Price.String(),
		Status:        string(s.Status),
		AssignedUntil: formatTimePtr(s.AssignedUntil),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
