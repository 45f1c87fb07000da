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

type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Reservation, error)
	// UpdateStatus moves a reservation out of fromStatus. It reports false when
	// the row is no longer in fromStatus.
	UpdateStatus(ctx context.Context, reservation *domain.Reservation, fromStatus domain.ReservationStatus) (bool, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
	// ExpireHoldsForSeat closes any lapsed hold left on seatID.
	ExpireHoldsForSeat(ctx context.Context, seatID int64, now time.Time) (int64, error)
}

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

const reservationColumns = `id, user_id, concert_id, seat_id, seat_number, price, status, created_at, expires_at, confirmed_at`

func (r *PGReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, user_id, concert_id, seat_id, seat_number, price, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := conn(ctx, r.db).Exec(ctx, stmt,
		res.ID,
		res.UserID,
		res.ConcertID,
		res.SeatID,
		res.SeatNumber,
		res.Price,
		res.Status,
		res.CreatedAt,
		res.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSeatTaken
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *PGReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PGReservationRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PGReservationRepository) UpdateStatus(ctx context.Context, res *domain.Reservation, fromStatus domain.ReservationStatus) (bool, error) {
	const stmt = `
UPDATE reservations
SET status = $2, confirmed_at = $3, updated_at = now()
WHERE id = $1 AND status = $4`

	tag, err := conn(ctx, r.db).Exec(ctx, stmt, res.ID, res.Status, res.ConfirmedAt, fromStatus)
	if err != nil {
		return false, fmt.Errorf("update reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGReservationRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE status = $1 AND expires_at < $2
ORDER BY expires_at
LIMIT $3`

	rows, err := conn(ctx, r.db).Query(ctx, query, domain.ReservationStatusTemporarilyAssigned, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	defer rows.Close()

	var expired []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		expired = append(expired, *res)
	}
	return expired, rows.Err()
}

func (r *PGReservationRepository) ExpireHoldsForSeat(ctx context.Context, seatID int64, now time.Time) (int64, error) {
	const stmt = `
UPDATE reservations
SET status = $1, updated_at = now()
WHERE seat_id = $2 AND status = $3 AND expires_at < $4`

	tag, err := conn(ctx, r.db).Exec(ctx, stmt, domain.ReservationStatusExpired, seatID, domain.ReservationStatusTemporarilyAssigned, now)
	if err != nil {
		return 0, fmt.Errorf("expire seat holds: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PGReservationRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Reservation, error) {
	res, err := scanReservation(conn(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := row.Scan(&res.ID, &res.UserID, &res.ConcertID, &res.SeatID, &res.SeatNumber, &res.Price, &res.Status, &res.CreatedAt, &res.ExpiresAt, &res.ConfirmedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
