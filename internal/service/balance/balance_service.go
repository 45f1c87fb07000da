package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/concertseats/internal/clock"
	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/metrics"
	"github.com/Domenick1991/concertseats/internal/repository"
	"github.com/shopspring/decimal"
)

const defaultHistoryLimit = 50

type LedgerUseCase interface {
	ChargeBalance(ctx context.Context, userID string, amount decimal.Decimal) (*domain.BalanceTransaction, error)
	DeductBalance(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*domain.BalanceTransaction, error)
	RefundBalance(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*domain.BalanceTransaction, error)
	HasEnoughBalance(ctx context.Context, userID string, amount decimal.Decimal) (bool, error)
	GetBalance(ctx context.Context, userID string) (*domain.Balance, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.BalanceTransaction, error)
}

// LedgerService mutates balances only under a row lock taken inside a
// transaction, so check-and-write never races with another mutation.
type LedgerService struct {
	balances repository.BalanceRepository
	tx       repository.Transactor
	clock    clock.Clock
	logger   *slog.Logger
}

type LedgerServiceOption func(*LedgerService)

func WithClock(c clock.Clock) LedgerServiceOption {
	return func(s *LedgerService) {
		s.clock = c
	}
}

func WithLogger(logger *slog.Logger) LedgerServiceOption {
	return func(s *LedgerService) {
		s.logger = logger
	}
}

func NewLedgerService(balances repository.BalanceRepository, tx repository.Transactor, opts ...LedgerServiceOption) *LedgerService {
	s := &LedgerService{
		balances: balances,
		tx:       tx,
		clock:    clock.NewSystem(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) ChargeBalance(ctx context.Context, userID string, amount decimal.Decimal) (*domain.BalanceTransaction, error) {
	if err := domain.ValidateChargeAmount(amount); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, domain.TransactionTypeCharge, amount, "balance charge",
		func(b *domain.Balance, now time.Time) error { return b.Credit(amount, now) })
}

// DeductBalance re-checks the balance under the row lock; callers must not
// rely on HasEnoughBalance alone.
func (s *LedgerService) DeductBalance(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*domain.BalanceTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: deduct amount must be positive", domain.ErrInvalidAmount)
	}
	return s.mutate(ctx, userID, domain.TransactionTypePayment, amount, "payment for reservation "+reference,
		func(b *domain.Balance, now time.Time) error { return b.Debit(amount, now) })
}

func (s *LedgerService) RefundBalance(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*domain.BalanceTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidAmount)
	}
	if reason == "" {
		reason = "refund"
	}
	return s.mutate(ctx, userID, domain.TransactionTypeRefund, amount, reason,
		func(b *domain.Balance, now time.Time) error { return b.Credit(amount, now) })
}

func (s *LedgerService) HasEnoughBalance(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	b, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return b.HasEnough(amount), nil
}

// GetBalance returns a zero balance for users that never charged.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	b, err := s.balances.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return domain.NewBalance(userID, s.clock.Now()), nil
	}
	return b, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.BalanceTransaction, error) {
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	return s.balances.ListTransactions(ctx, userID, limit)
}

func (s *LedgerService) mutate(
	ctx context.Context,
	userID string,
	txType domain.TransactionType,
	amount decimal.Decimal,
	description string,
	apply func(b *domain.Balance, now time.Time) error,
) (*domain.BalanceTransaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	var entry *domain.BalanceTransaction
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		b, err := s.balances.GetForUpdate(ctx, userID, now)
		if err != nil {
			return err
		}
		if err := apply(b, now); err != nil {
			return err
		}
		if err := s.balances.Update(ctx, b); err != nil {
			return err
		}
		entry, err = domain.NewBalanceTransaction(b, txType, amount, description, now)
		if err != nil {
			return err
		}
		return s.balances.AppendTransaction(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	// Inside a caller's transaction the row is not durable yet.
	repository.AfterCommit(ctx, func() {
		metrics.LedgerMutations.WithLabelValues(string(txType)).Inc()
		s.logger.Info("balance updated",
			slog.String("user_id", userID),
			slog.String("type", string(txType)),
			slog.String("amount", amount.String()),
			slog.String("balance_after", entry.BalanceAfter.String()),
		)
	})
	return entry, nil
}

var _ LedgerUseCase = (*LedgerService)(nil)
