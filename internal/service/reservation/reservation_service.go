package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/concertseats/internal/clock"
	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/lock"
	"github.com/Domenick1991/concertseats/internal/metrics"
	"github.com/Domenick1991/concertseats/internal/repository"
	"github.com/google/uuid"
)

type ReservationUseCase interface {
	ReserveSeat(ctx context.Context, input ReserveSeatInput) (*domain.Reservation, error)
	GetReservationStatus(ctx context.Context, id string) (*ReservationView, error)
	CancelReservation(ctx context.Context, id, userID string) (*domain.Reservation, error)
	ReleaseExpiredReservations(ctx context.Context) ([]domain.Reservation, error)
}

type Locker interface {
	TryLock(ctx context.Context, key, ownerID string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, ownerID string)
}

type ReserveSeatInput struct {
	UserID     string `json:"userId"`
	ConcertID  int64  `json:"concertId"`
	SeatNumber int    `json:"seatNumber"`
}

// SeatMapInvalidator drops a concert's cached seat map.
type SeatMapInvalidator interface {
	InvalidateSeats(ctx context.Context, concertID int64) error
}

// ReservationView is a reservation together with the seat it points at.
type ReservationView struct {
	Reservation domain.Reservation
	Seat        domain.Seat
}

type ReservationService struct {
	reservations repository.ReservationRepository
	seats        repository.SeatRepository
	tx           repository.Transactor
	locker       Locker
	clock        clock.Clock
	holdDuration time.Duration
	lockTTL      time.Duration
	sweepBatch   int
	newOwnerID   func() string
	seatMaps     SeatMapInvalidator
	logger       *slog.Logger
}

type ReservationServiceOption func(*ReservationService)

func WithHoldDuration(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		s.holdDuration = d
	}
}

func WithLockTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		s.lockTTL = d
	}
}

func WithSweepBatch(n int) ReservationServiceOption {
	return func(s *ReservationService) {
		s.sweepBatch = n
	}
}

func WithClock(c clock.Clock) ReservationServiceOption {
	return func(s *ReservationService) {
		s.clock = c
	}
}

func WithSeatMapInvalidator(inv SeatMapInvalidator) ReservationServiceOption {
	return func(s *ReservationService) {
		s.seatMaps = inv
	}
}

func WithLogger(logger *slog.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		s.logger = logger
	}
}

func NewReservationService(
	reservations repository.ReservationRepository,
	seats repository.SeatRepository,
	tx repository.Transactor,
	locker Locker,
	opts ...ReservationServiceOption,
) *ReservationService {
	s := &ReservationService{
		reservations: reservations,
		seats:        seats,
		tx:           tx,
		locker:       locker,
		clock:        clock.NewSystem(),
		holdDuration: 5 * time.Minute,
		lockTTL:      10 * time.Second,
		sweepBatch:   500,
		newOwnerID:   uuid.NewString,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReserveSeat gives userID a timed hold on one seat. The seat lock covers only
// the load-assign-persist step and is released on every return path.
func (s *ReservationService) ReserveSeat(ctx context.Context, input ReserveSeatInput) (*domain.Reservation, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if input.SeatNumber <= 0 {
		return nil, fmt.Errorf("%w: seat number must be positive", domain.ErrInvalidInput)
	}

	key := lock.SeatKey(input.ConcertID, input.SeatNumber)
	owner := s.newOwnerID()
	locked, err := s.locker.TryLock(ctx, key, owner, s.lockTTL)
	if err != nil {
		metrics.Reservations.WithLabelValues("error").Inc()
		return nil, err
	}
	if !locked {
		metrics.Reservations.WithLabelValues("busy").Inc()
		return nil, domain.ErrSeatLocked
	}
	defer s.locker.Unlock(context.WithoutCancel(ctx), key, owner)

	var reservation *domain.Reservation
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		seat, err := s.seats.GetByConcertAndNumberForUpdate(ctx, input.ConcertID, input.SeatNumber)
		if err != nil {
			return err
		}

		if !seat.IsAvailable() {
			if !seat.IsExpired(now) {
				return domain.ErrSeatTaken
			}
			// The lapsed holder's reservation must close before a new hold
			// on the same seat can exist.
			if _, err := s.reservations.ExpireHoldsForSeat(ctx, seat.ID, now); err != nil {
				return err
			}
		}

		until := now.Add(s.holdDuration).Truncate(time.Microsecond)
		if err := seat.AssignTemporarily(input.UserID, until, now); err != nil {
			return err
		}
		if err := s.seats.Update(ctx, seat); err != nil {
			return err
		}
		s.seatChanged(ctx, seat.ConcertID)

		reservation, err = domain.NewReservation(input.UserID, seat, now)
		if err != nil {
			return err
		}
		return s.reservations.Create(ctx, reservation)
	})
	if err != nil {
		metrics.Reservations.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	metrics.Reservations.WithLabelValues("success").Inc()
	s.logger.Info("seat held",
		slog.String("reservation_id", reservation.ID),
		slog.String("user_id", reservation.UserID),
		slog.Int64("concert_id", reservation.ConcertID),
		slog.Int("seat_number", reservation.SeatNumber),
		slog.Time("expires_at", reservation.ExpiresAt),
	)
	return reservation, nil
}

func (s *ReservationService) GetReservationStatus(ctx context.Context, id string) (*ReservationView, error) {
	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	seat, err := s.seats.GetByID(ctx, reservation.SeatID)
	if err != nil {
		return nil, err
	}
	return &ReservationView{Reservation: *reservation, Seat: *seat}, nil
}

func (s *ReservationService) CancelReservation(ctx context.Context, id, userID string) (*domain.Reservation, error) {
	var cancelled *domain.Reservation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		seat, reservation, err := s.lockHold(ctx, id)
		if err != nil {
			return err
		}
		if !reservation.IsOwnedBy(userID) {
			return domain.ErrNotReservationOwner
		}
		if err := reservation.Cancel(); err != nil {
			return err
		}
		if err := s.closeHold(ctx, seat, reservation); err != nil {
			return err
		}
		cancelled = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation cancelled", slog.String("reservation_id", id), slog.String("user_id", userID))
	return cancelled, nil
}

// ReleaseExpiredReservations expires lapsed holds and frees their seats. Each
// hold is closed in its own transaction; a failing item is logged and skipped.
func (s *ReservationService) ReleaseExpiredReservations(ctx context.Context) ([]domain.Reservation, error) {
	now := s.clock.Now()
	candidates, err := s.reservations.ListExpiredHolds(ctx, now, s.sweepBatch)
	if err != nil {
		return nil, err
	}

	released := make([]domain.Reservation, 0, len(candidates))
	for _, c := range candidates {
		reservation, err := s.expireHold(ctx, c.ID, now)
		if err != nil {
			s.logger.Error("release expired reservation",
				slog.String("reservation_id", c.ID),
				slog.Any("error", err),
			)
			continue
		}
		if reservation != nil {
			released = append(released, *reservation)
		}
	}

	if len(released) > 0 {
		metrics.ExpiredReservations.Add(float64(len(released)))
	}
	return released, nil
}

func (s *ReservationService) expireHold(ctx context.Context, id string, now time.Time) (*domain.Reservation, error) {
	var expired *domain.Reservation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		seat, reservation, err := s.lockHold(ctx, id)
		if err != nil {
			return err
		}
		// Already handled by a concurrent sweep, payment or cancel.
		if !reservation.IsTemporarilyAssigned() || !reservation.IsExpired(now) {
			return nil
		}
		if err := reservation.Expire(); err != nil {
			return err
		}
		if err := s.closeHold(ctx, seat, reservation); err != nil {
			return err
		}
		expired = reservation
		return nil
	})
	return expired, err
}

// lockHold locks the seat row and then the reservation row, the same order
// ReserveSeat uses.
func (s *ReservationService) lockHold(ctx context.Context, id string) (*domain.Seat, *domain.Reservation, error) {
	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	seat, err := s.seats.GetByIDForUpdate(ctx, current.SeatID)
	if err != nil {
		return nil, nil, err
	}
	reservation, err := s.reservations.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return seat, reservation, nil
}

// closeHold persists a reservation that just left TEMPORARILY_ASSIGNED and
// frees the seat if it still carries that reservation's hold.
func (s *ReservationService) closeHold(ctx context.Context, seat *domain.Seat, reservation *domain.Reservation) error {
	updated, err := s.reservations.UpdateStatus(ctx, reservation, domain.ReservationStatusTemporarilyAssigned)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: reservation %s changed concurrently", domain.ErrIllegalState, reservation.ID)
	}
	if !seat.IsHeldBy(reservation.UserID, reservation.ExpiresAt) {
		return nil
	}
	if err := seat.ReleaseAssignment(); err != nil {
		return err
	}
	if err := s.seats.Update(ctx, seat); err != nil {
		return err
	}
	s.seatChanged(ctx, seat.ConcertID)
	return nil
}

// seatChanged drops the concert's cached seat map once the surrounding
// transaction commits.
func (s *ReservationService) seatChanged(ctx context.Context, concertID int64) {
	if s.seatMaps == nil {
		return
	}
	repository.AfterCommit(ctx, func() {
		if err := s.seatMaps.InvalidateSeats(context.WithoutCancel(ctx), concertID); err != nil {
			s.logger.Warn("seat cache invalidation failed", slog.Int64("concert_id", concertID), slog.Any("error", err))
		}
	})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrSeatTaken):
		return "seat_taken"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

var _ ReservationUseCase = (*ReservationService)(nil)
