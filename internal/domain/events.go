package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const ReservationCompletedEvent = "reservation_completed"

// ReservationCompleted is emitted once a reservation has been paid.
type ReservationCompleted struct {
	Type          string          `json:"type"`
	ReservationID string          `json:"reservationId"`
	UserID        string          `json:"userId"`
	ConcertID     int64           `json:"concertId"`
	SeatID        int64           `json:"seatId"`
	SeatNumber    int             `json:"seatNumber"`
	Price         decimal.Decimal `json:"price"`
	ReservedAt    time.Time       `json:"reservedAt"`
}

func NewReservationCompleted(r *Reservation, reservedAt time.Time) ReservationCompleted {
	return ReservationCompleted{
		Type:          ReservationCompletedEvent,
		ReservationID: r.ID,
		UserID:        r.UserID,
		ConcertID:     r.ConcertID,
		SeatID:        r.SeatID,
		SeatNumber:    r.SeatNumber,
		Price:         r.Price,
		ReservedAt:    reservedAt,
	}
}
