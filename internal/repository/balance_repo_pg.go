package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BalanceRepository interface {
	// GetForUpdate creates the balance row if missing and locks it for the
	// rest of the surrounding transaction.
	GetForUpdate(ctx context.Context, userID string, now time.Time) (*domain.Balance, error)
	// Get returns nil when the user has never had a balance.
	Get(ctx context.Context, userID string) (*domain.Balance, error)
	Update(ctx context.Context, balance *domain.Balance) error
	AppendTransaction(ctx context.Context, tx *domain.BalanceTransaction) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.BalanceTransaction, error)
}

type PGBalanceRepository struct {
	db *pgxpool.Pool
}

func NewBalanceRepository(db *pgxpool.Pool) BalanceRepository {
	return &PGBalanceRepository{db: db}
}

func (r *PGBalanceRepository) GetForUpdate(ctx context.Context, userID string, now time.Time) (*domain.Balance, error) {
	const upsert = `
INSERT INTO balances (user_id, amount, created_at, updated_at)
VALUES ($1, 0, $2, $2)
ON CONFLICT (user_id) DO NOTHING`
	const query = `SELECT user_id, amount, created_at, updated_at FROM balances WHERE user_id = $1 FOR UPDATE`

	db := conn(ctx, r.db)
	if _, err := db.Exec(ctx, upsert, userID, now); err != nil {
		return nil, fmt.Errorf("ensure balance: %w", err)
	}

	var b domain.Balance
	if err := db.QueryRow(ctx, query, userID).Scan(&b.UserID, &b.Amount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}
	return &b, nil
}

func (r *PGBalanceRepository) Get(ctx context.Context, userID string) (*domain.Balance, error) {
	const query = `SELECT user_id, amount, created_at, updated_at FROM balances WHERE user_id = $1`

	var b domain.Balance
	err := conn(ctx, r.db).QueryRow(ctx, query, userID).Scan(&b.UserID, &b.Amount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

func (r *PGBalanceRepository) Update(ctx context.Context, b *domain.Balance) error {
	const stmt = `UPDATE balances SET amount = $2, updated_at = $3 WHERE user_id = $1`

	tag, err := conn(ctx, r.db).Exec(ctx, stmt, b.UserID, b.Amount, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update balance: no row for user %s", b.UserID)
	}
	return nil
}

func (r *PGBalanceRepository) AppendTransaction(ctx context.Context, tx *domain.BalanceTransaction) error {
	const stmt = `
INSERT INTO balance_transactions (id, user_id, type, amount, balance_after, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := conn(ctx, r.db).Exec(ctx, stmt, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.BalanceAfter, tx.Description, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("append balance transaction: %w", err)
	}
	return nil
}

func (r *PGBalanceRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.BalanceTransaction, error) {
	const query = `
SELECT id, user_id, type, amount, balance_after, description, created_at
FROM balance_transactions
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2`

	rows, err := conn(ctx, r.db).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list balance transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]domain.BalanceTransaction, 0)
	for rows.Next() {
		var t domain.BalanceTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan balance transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

var _ BalanceRepository = (*PGBalanceRepository)(nil)
