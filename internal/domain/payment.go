package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

type Payment struct {
	ID            string
	ReservationID string
	UserID        string
	Amount        decimal.Decimal
	Status        PaymentStatus
	CreatedAt     time.Time
}

// NewCompletedPayment settles a reservation that has just been confirmed.
func NewCompletedPayment(reservation *Reservation, now time.Time) (*Payment, error) {
	if reservation.Status != ReservationStatusConfirmed {
		return nil, illegalState("reservation %s is %s, not confirmed", reservation.ID, reservation.Status)
	}
	return &Payment{
		ID:            uuid.NewString(),
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		Amount:        reservation.Price,
		Status:        PaymentStatusCompleted,
		CreatedAt:     now,
	}, nil
}

func (p *Payment) Refund() error {
	if p.Status != PaymentStatusCompleted {
		return illegalState("only completed payments can be refunded, payment %s is %s", p.ID, p.Status)
	}
	p.Status = PaymentStatusCancelled
	return nil
}
