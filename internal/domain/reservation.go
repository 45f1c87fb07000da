package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationStatusTemporarilyAssigned ReservationStatus = "TEMPORARILY_ASSIGNED"
	ReservationStatusConfirmed           ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled           ReservationStatus = "CANCELLED"
	ReservationStatusExpired             ReservationStatus = "EXPIRED"
)

type Reservation struct {
	ID          string
	UserID      string
	ConcertID   int64
	SeatID      int64
	SeatNumber  int
	Price       decimal.Decimal
	Status      ReservationStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
}

// NewReservation records a hold that seat has just been given for userID.
func NewReservation(userID string, seat *Seat, now time.Time) (*Reservation, error) {
	if seat.Status != SeatStatusTemporarilyAssigned || seat.AssignedUntil == nil {
		return nil, illegalState("seat %d is not held", seat.SeatNumber)
	}
	if seat.AssignedUserID == nil || *seat.AssignedUserID != userID {
		return nil, illegalState("seat %d is held by another user", seat.SeatNumber)
	}
	return &Reservation{
		ID:         uuid.NewString(),
		UserID:     userID,
		ConcertID:  seat.ConcertID,
		SeatID:     seat.ID,
		SeatNumber: seat.SeatNumber,
		Price:      seat.Price,
		Status:     ReservationStatusTemporarilyAssigned,
		CreatedAt:  now,
		ExpiresAt:  *seat.AssignedUntil,
	}, nil
}

func (r *Reservation) IsOwnedBy(userID string) bool {
	return r.UserID == userID
}

func (r *Reservation) IsTemporarilyAssigned() bool {
	return r.Status == ReservationStatusTemporarilyAssigned
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

func (r *Reservation) IsTerminal() bool {
	return r.Status != ReservationStatusTemporarilyAssigned
}

func (r *Reservation) Confirm(at time.Time) error {
	if r.Status != ReservationStatusTemporarilyAssigned {
		return illegalState("reservation %s is %s", r.ID, r.Status)
	}
	if r.IsExpired(at) {
		return ErrReservationExpired
	}
	r.Status = ReservationStatusConfirmed
	r.ConfirmedAt = &at
	return nil
}

func (r *Reservation) Cancel() error {
	if r.Status != ReservationStatusTemporarilyAssigned {
		return illegalState("reservation %s is %s", r.ID, r.Status)
	}
	r.Status = ReservationStatusCancelled
	return nil
}

func (r *Reservation) Expire() error {
	if r.Status != ReservationStatusTemporarilyAssigned {
		return illegalState("reservation %s is %s", r.ID, r.Status)
	}
	r.Status = ReservationStatusExpired
	return nil
}

// Revoke cancels a paid reservation after its payment was refunded. The seat
// stays sold.
func (r *Reservation) Revoke() error {
	if r.Status != ReservationStatusConfirmed {
		return illegalState("reservation %s is %s, not confirmed", r.ID, r.Status)
	}
	r.Status = ReservationStatusCancelled
	return nil
}
