package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SeatStatus string

const (
	SeatStatusAvailable           SeatStatus = "AVAILABLE"
	SeatStatusTemporarilyAssigned SeatStatus = "TEMPORARILY_ASSIGNED"
	SeatStatusReserved            SeatStatus = "RESERVED"
)

// Seat is a single sellable seat of a concert. AssignedUserID and
// AssignedUntil are set only while Status is TEMPORARILY_ASSIGNED.
type Seat struct {
	ID             int64
	ConcertID      int64
	SeatNumber     int
	Price          decimal.Decimal
	Status         SeatStatus
	AssignedUserID *string
	AssignedUntil  *time.Time
	ReservedAt     *time.Time
}

func NewSeat(concertID int64, seatNumber int, price decimal.Decimal) (*Seat, error) {
	if seatNumber <= 0 {
		return nil, illegalState("seat number must be positive, got %d", seatNumber)
	}
	if !price.IsPositive() {
		return nil, invalidAmount("seat price must be positive, got %s", price.String())
	}
	return &Seat{
		ConcertID:  concertID,
		SeatNumber: seatNumber,
		Price:      price,
		Status:     SeatStatusAvailable,
	}, nil
}

func (s *Seat) IsAvailable() bool {
	return s.Status == SeatStatusAvailable
}

// IsExpired reports whether a temporary hold has lapsed at now.
func (s *Seat) IsExpired(now time.Time) bool {
	return s.Status == SeatStatusTemporarilyAssigned && s.AssignedUntil != nil && now.After(*s.AssignedUntil)
}

// IsAvailableAt treats a lapsed hold as available.
func (s *Seat) IsAvailableAt(now time.Time) bool {
	return s.IsAvailable() || s.IsExpired(now)
}

// AssignTemporarily places a hold for userID until the given instant. A hold
// that already lapsed is released first.
func (s *Seat) AssignTemporarily(userID string, until, now time.Time) error {
	switch {
	case s.Status == SeatStatusAvailable:
	case s.IsExpired(now):
		s.clearAssignment()
	default:
		return illegalState("seat %d is %s", s.SeatNumber, s.Status)
	}
	if !until.After(now) {
		return illegalState("hold deadline %s is not in the future", until.Format(time.RFC3339))
	}

	s.Status = SeatStatusTemporarilyAssigned
	s.AssignedUserID = &userID
	s.AssignedUntil = &until
	return nil
}

func (s *Seat) ConfirmReservation(at time.Time) error {
	if s.Status != SeatStatusTemporarilyAssigned {
		return illegalState("seat %d is %s, not held", s.SeatNumber, s.Status)
	}
	if s.IsExpired(at) {
		return illegalState("hold on seat %d has expired", s.SeatNumber)
	}

	s.Status = SeatStatusReserved
	s.ReservedAt = &at
	s.AssignedUserID = nil
	s.AssignedUntil = nil
	return nil
}

func (s *Seat) ReleaseAssignment() error {
	if s.Status == SeatStatusReserved {
		return illegalState("seat %d is already reserved", s.SeatNumber)
	}
	s.clearAssignment()
	return nil
}

// IsHeldBy reports whether the seat carries exactly this hold.
func (s *Seat) IsHeldBy(userID string, until time.Time) bool {
	return s.Status == SeatStatusTemporarilyAssigned &&
		s.AssignedUserID != nil && *s.AssignedUserID == userID &&
		s.AssignedUntil != nil && s.AssignedUntil.Equal(until)
}

func (s *Seat) clearAssignment() {
	s.Status = SeatStatusAvailable
	s.AssignedUserID = nil
	s.AssignedUntil = nil
}
