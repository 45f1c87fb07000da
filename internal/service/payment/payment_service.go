package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/concertseats/internal/clock"
	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/events"
	"github.com/Domenick1991/concertseats/internal/metrics"
	"github.com/Domenick1991/concertseats/internal/repository"
	"github.com/shopspring/decimal"
)

type PaymentUseCase interface {
	ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*domain.Payment, error)
	GetPaymentInfo(ctx context.Context, id string) (*domain.Payment, error)
	GetPaymentByReservation(ctx context.Context, reservationID string) (*domain.Payment, error)
	RefundPayment(ctx context.Context, input RefundPaymentInput) (*domain.Payment, error)
}

// Ledger is the part of the balance ledger payments need. Calls made inside
// a payment transaction join it.
type Ledger interface {
	DeductBalance(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*domain.BalanceTransaction, error)
	RefundBalance(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*domain.BalanceTransaction, error)
}

// SeatMapInvalidator drops a concert's cached seat map.
type SeatMapInvalidator interface {
	InvalidateSeats(ctx context.Context, concertID int64) error
}

type ProcessPaymentInput struct {
	ReservationID string `json:"reservationId"`
	UserID        string `json:"userId"`
}

type RefundPaymentInput struct {
	PaymentID string
	UserID    string
	Reason    string
}

type PaymentService struct {
	payments     repository.PaymentRepository
	reservations repository.ReservationRepository
	seats        repository.SeatRepository
	ledger       Ledger
	tx           repository.Transactor
	publisher    events.Publisher
	topic        string
	seatMaps     SeatMapInvalidator
	clock        clock.Clock
	logger       *slog.Logger
}

type PaymentServiceOption func(*PaymentService)

func WithClock(c clock.Clock) PaymentServiceOption {
	return func(s *PaymentService) {
		s.clock = c
	}
}

func WithLogger(logger *slog.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		s.logger = logger
	}
}

// WithPublisher sets where ReservationCompleted events go. The publisher
// should return quickly; wrap slow transports in events.Async.
func WithPublisher(p events.Publisher, topic string) PaymentServiceOption {
	return func(s *PaymentService) {
		s.publisher = p
		s.topic = topic
	}
}

func WithSeatMapInvalidator(inv SeatMapInvalidator) PaymentServiceOption {
	return func(s *PaymentService) {
		s.seatMaps = inv
	}
}

func NewPaymentService(
	payments repository.PaymentRepository,
	reservations repository.ReservationRepository,
	seats repository.SeatRepository,
	ledger Ledger,
	tx repository.Transactor,
	opts ...PaymentServiceOption,
) *PaymentService {
	s := &PaymentService{
		payments:     payments,
		reservations: reservations,
		seats:        seats,
		ledger:       ledger,
		tx:           tx,
		publisher:    events.Noop{},
		topic:        "reservation-events",
		clock:        clock.NewSystem(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment settles a held reservation from the user's balance. The
// deduction, both confirmations and the payment row commit together.
func (s *PaymentService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*domain.Payment, error) {
	if input.ReservationID == "" || input.UserID == "" {
		return nil, fmt.Errorf("%w: reservation id and user id are required", domain.ErrInvalidInput)
	}

	var (
		payment     *domain.Payment
		reservation *domain.Reservation
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.reservations.GetByID(ctx, input.ReservationID)
		if err != nil {
			return err
		}
		seat, err := s.seats.GetByIDForUpdate(ctx, current.SeatID)
		if err != nil {
			return err
		}
		reservation, err = s.reservations.GetByIDForUpdate(ctx, input.ReservationID)
		if err != nil {
			return err
		}

		if !reservation.IsOwnedBy(input.UserID) {
			return domain.ErrNotReservationOwner
		}
		if !reservation.IsTemporarilyAssigned() {
			return fmt.Errorf("%w: reservation %s is %s", domain.ErrIllegalState, reservation.ID, reservation.Status)
		}
		now := s.clock.Now()
		if reservation.IsExpired(now) {
			return domain.ErrReservationExpired
		}
		if !seat.IsHeldBy(reservation.UserID, reservation.ExpiresAt) {
			return fmt.Errorf("%w: seat %d no longer carries reservation %s", domain.ErrIllegalState, seat.SeatNumber, reservation.ID)
		}

		if _, err := s.ledger.DeductBalance(ctx, input.UserID, reservation.Price, reservation.ID); err != nil {
			return err
		}

		if err := reservation.Confirm(now); err != nil {
			return err
		}
		updated, err := s.reservations.UpdateStatus(ctx, reservation, domain.ReservationStatusTemporarilyAssigned)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("%w: reservation %s changed concurrently", domain.ErrIllegalState, reservation.ID)
		}

		if err := seat.ConfirmReservation(now); err != nil {
			return err
		}
		if err := s.seats.Update(ctx, seat); err != nil {
			return err
		}
		if s.seatMaps != nil {
			concertID := seat.ConcertID
			repository.AfterCommit(ctx, func() {
				if err := s.seatMaps.InvalidateSeats(context.WithoutCancel(ctx), concertID); err != nil {
					s.logger.Warn("seat cache invalidation failed", slog.Int64("concert_id", concertID), slog.Any("error", err))
				}
			})
		}

		payment, err = domain.NewCompletedPayment(reservation, now)
		if err != nil {
			return err
		}
		return s.payments.Create(ctx, payment)
	})
	if err != nil {
		metrics.Payments.WithLabelValues(metrics.Outcome(err, classify)).Inc()
		s.logger.Warn("payment rejected",
			slog.String("reservation_id", input.ReservationID),
			slog.String("user_id", input.UserID),
			slog.Any("error", err),
		)
		return nil, err
	}

	metrics.Payments.WithLabelValues("success").Inc()
	metrics.ReservationHoldDuration.Observe(payment.CreatedAt.Sub(reservation.CreatedAt).Seconds())
	s.logger.Info("payment completed",
		slog.String("payment_id", payment.ID),
		slog.String("reservation_id", reservation.ID),
		slog.String("amount", payment.Amount.String()),
	)

	event := domain.NewReservationCompleted(reservation, *reservation.ConfirmedAt)
	if err := s.publisher.Publish(ctx, s.topic, reservation.ID, event); err != nil {
		s.logger.Error("publish reservation completed",
			slog.String("reservation_id", reservation.ID),
			slog.Any("error", err),
		)
	}

	return payment, nil
}

func (s *PaymentService) GetPaymentInfo(ctx context.Context, id string) (*domain.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *PaymentService) GetPaymentByReservation(ctx context.Context, reservationID string) (*domain.Payment, error) {
	return s.payments.GetByReservationID(ctx, reservationID)
}

// RefundPayment returns a completed payment's amount to the payer and
// cancels the reservation it paid for.
func (s *PaymentService) RefundPayment(ctx context.Context, input RefundPaymentInput) (*domain.Payment, error) {
	reason := input.Reason
	if reason == "" {
		reason = "refund"
	}

	var refunded *domain.Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.payments.GetByID(ctx, input.PaymentID)
		if err != nil {
			return err
		}
		reservation, err := s.reservations.GetByIDForUpdate(ctx, current.ReservationID)
		if err != nil {
			return err
		}
		payment, err := s.payments.GetByIDForUpdate(ctx, input.PaymentID)
		if err != nil {
			return err
		}

		if payment.UserID != input.UserID {
			return fmt.Errorf("payment belongs to another user: %w", domain.ErrUnauthorized)
		}
		if err := payment.Refund(); err != nil {
			return err
		}

		if _, err := s.ledger.RefundBalance(ctx, payment.UserID, payment.Amount, reason); err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, payment); err != nil {
			return err
		}

		if err := reservation.Revoke(); err != nil {
			return err
		}
		updated, err := s.reservations.UpdateStatus(ctx, reservation, domain.ReservationStatusConfirmed)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("%w: reservation %s changed concurrently", domain.ErrIllegalState, reservation.ID)
		}

		refunded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment refunded",
		slog.String("payment_id", refunded.ID),
		slog.String("amount", refunded.Amount.String()),
		slog.String("reason", reason),
	)
	return refunded, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrIllegalState):
		return "illegal_state"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}

var _ PaymentUseCase = (*PaymentService)(nil)
