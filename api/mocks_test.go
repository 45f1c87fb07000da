package api

import (
	"context"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/queue"
	"github.com/Domenick1991/concertseats/internal/service/payment"
	"github.com/Domenick1991/concertseats/internal/service/reservation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockAdmissionQueue struct {
	mock.Mock
}

func (m *MockAdmissionQueue) IssueToken(ctx context.Context, userID string) (*domain.QueueToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueToken), args.Error(1)
}

func (m *MockAdmissionQueue) IssueTokenWithSession(ctx context.Context, userID string, client queue.ClientInfo) (*domain.QueueToken, error) {
	args := m.Called(ctx, userID, client)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueToken), args.Error(1)
}

func (m *MockAdmissionQueue) GetStatus(ctx context.Context, token string) (*domain.QueueToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueToken), args.Error(1)
}

func (m *MockAdmissionQueue) ValidateActiveToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdmissionQueue) ActivateWaitingUsers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

type MockSeatUseCase struct {
	mock.Mock
}

func (m *MockSeatUseCase) ListSeats(ctx context.Context, concertID int64, onlyAvailable bool) ([]domain.Seat, error) {
	args := m.Called(ctx, concertID, onlyAvailable)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

type MockReservationUseCase struct {
	mock.Mock
}

func (m *MockReservationUseCase) ReserveSeat(ctx context.Context, input reservation.ReserveSeatInput) (*domain.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) GetReservationStatus(ctx context.Context, id string) (*reservation.ReservationView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.ReservationView), args.Error(1)
}

func (m *MockReservationUseCase) CancelReservation(ctx context.Context, id, userID string) (*domain.Reservation, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) ReleaseExpiredReservations(ctx context.Context) ([]domain.Reservation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) ProcessPayment(ctx context.Context, input payment.ProcessPaymentInput) (*domain.Payment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) GetPaymentInfo(ctx context.Context, id string) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) GetPaymentByReservation(ctx context.Context, reservationID string) (*domain.Payment, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) RefundPayment(ctx context.Context, input payment.RefundPaymentInput) (*domain.Payment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

type MockLedgerUseCase struct {
	mock.Mock
}

func (m *MockLedgerUseCase) ChargeBalance(ctx context.Context, userID string, amount decimal.Decimal) (*domain.BalanceTransaction, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceTransaction), args.Error(1)
}

func (m *MockLedgerUseCase) DeductBalance(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*domain.BalanceTransaction, error) {
	args := m.Called(ctx, userID, amount, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceTransaction), args.Error(1)
}

func (m *MockLedgerUseCase) RefundBalance(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*domain.BalanceTransaction, error) {
	args := m.Called(ctx, userID, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceTransaction), args.Error(1)
}

func (m *MockLedgerUseCase) HasEnoughBalance(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerUseCase) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockLedgerUseCase) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.BalanceTransaction, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]domain.BalanceTransaction), args.Error(1)
}
