package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Charge limits in won.
var (
	MinChargeAmount  = decimal.NewFromInt(10_000)
	MaxChargeAmount  = decimal.NewFromInt(1_000_000)
	ChargeAmountUnit = decimal.NewFromInt(1_000)
)

type Balance struct {
	UserID    string
	Amount    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewBalance(userID string, now time.Time) *Balance {
	return &Balance{
		UserID:    userID,
		Amount:    decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateChargeAmount enforces the charge window and the 1,000 unit.
func ValidateChargeAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalidAmount("charge amount must be positive")
	}
	if amount.LessThan(MinChargeAmount) {
		return invalidAmount("minimum charge is %s", MinChargeAmount.String())
	}
	if amount.GreaterThan(MaxChargeAmount) {
		return invalidAmount("maximum charge is %s", MaxChargeAmount.String())
	}
	if !amount.Mod(ChargeAmountUnit).IsZero() {
		return invalidAmount("charge must be a multiple of %s", ChargeAmountUnit.String())
	}
	return nil
}

func (b *Balance) HasEnough(amount decimal.Decimal) bool {
	return b.Amount.GreaterThanOrEqual(amount)
}

func (b *Balance) Credit(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return invalidAmount("credit amount must be positive")
	}
	b.Amount = b.Amount.Add(amount)
	b.UpdatedAt = now
	return nil
}

func (b *Balance) Debit(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return invalidAmount("deduct amount must be positive")
	}
	if !b.HasEnough(amount) {
		return &InsufficientBalanceError{Current: b.Amount, Required: amount}
	}
	b.Amount = b.Amount.Sub(amount)
	b.UpdatedAt = now
	return nil
}

type TransactionType string

const (
	TransactionTypeCharge  TransactionType = "CHARGE"
	TransactionTypePayment TransactionType = "PAYMENT"
	TransactionTypeRefund  TransactionType = "REFUND"
)

// BalanceTransaction is an append-only ledger row.
type BalanceTransaction struct {
	ID           string
	UserID       string
	Type         TransactionType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Description  string
	CreatedAt    time.Time
}

// NewBalanceTransaction records a mutation that already left balance at its
// post-mutation amount.
func NewBalanceTransaction(balance *Balance, txType TransactionType, amount decimal.Decimal, description string, now time.Time) (*BalanceTransaction, error) {
	if !amount.IsPositive() {
		return nil, invalidAmount("transaction amount must be positive")
	}
	if balance.Amount.IsNegative() {
		return nil, illegalState("balance of %s is negative", balance.UserID)
	}
	return &BalanceTransaction{
		ID:           uuid.NewString(),
		UserID:       balance.UserID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balance.Amount,
		Description:  description,
		CreatedAt:    now,
	}, nil
}
