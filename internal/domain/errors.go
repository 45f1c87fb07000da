package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error categories. Callers classify with errors.Is against these.
var (
	ErrNotFound            = errors.New("not found")
	ErrExpired             = errors.New("expired")
	ErrBusy                = errors.New("resource busy, try again later")
	ErrSeatTaken           = errors.New("seat is already taken")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrIllegalState        = errors.New("illegal state")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAccessDenied        = errors.New("queue access denied")
)

var (
	ErrTokenNotFound       = fmt.Errorf("queue token %w", ErrNotFound)
	ErrSeatNotFound        = fmt.Errorf("seat %w", ErrNotFound)
	ErrConcertNotFound     = fmt.Errorf("concert %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)
	ErrPaymentNotFound     = fmt.Errorf("payment %w", ErrNotFound)

	ErrTokenExpired       = fmt.Errorf("queue token %w", ErrExpired)
	ErrReservationExpired = fmt.Errorf("reservation %w", ErrExpired)

	ErrSeatLocked = fmt.Errorf("seat lock held: %w", ErrBusy)

	ErrDeviceInUse = fmt.Errorf("device is bound to another user: %w", ErrAccessDenied)

	ErrNotReservationOwner = fmt.Errorf("reservation belongs to another user: %w", ErrUnauthorized)
)

// InsufficientBalanceError reports the balance a deduction was checked against.
type InsufficientBalanceError struct {
	Current  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: current %s, required %s", e.Current.String(), e.Required.String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

func illegalState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, fmt.Sprintf(format, args...))
}

func invalidAmount(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAmount, fmt.Sprintf(format, args...))
}
