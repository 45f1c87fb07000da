package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error)
	GetByReservationID(ctx context.Context, reservationID string) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, payment *domain.Payment) error
}

type PGPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) PaymentRepository {
	return &PGPaymentRepository{db: db}
}

const paymentColumns = `id, reservation_id, user_id, amount, status, created_at`

func (r *PGPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	const stmt = `
INSERT INTO payments (id, reservation_id, user_id, amount, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := conn(ctx, r.db).Exec(ctx, stmt, p.ID, p.ReservationID, p.UserID, p.Amount, p.Status, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reservation %s already has a payment", domain.ErrIllegalState, p.ReservationID)
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PGPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PGPaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PGPaymentRepository) GetByReservationID(ctx context.Context, reservationID string) (*domain.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = $1`
	return r.getOne(ctx, query, reservationID)
}

func (r *PGPaymentRepository) UpdateStatus(ctx context.Context, p *domain.Payment) error {
	const stmt = `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := conn(ctx, r.db).Exec(ctx, stmt, p.ID, p.Status)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PGPaymentRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Payment, error) {
	var p domain.Payment
	err := conn(ctx, r.db).QueryRow(ctx, query, args...).Scan(&p.ID, &p.ReservationID, &p.UserID, &p.Amount, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
