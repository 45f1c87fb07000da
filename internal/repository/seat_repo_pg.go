package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeatRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Seat, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Seat, error)
	GetByConcertAndNumberForUpdate(ctx context.Context, concertID int64, seatNumber int) (*domain.Seat, error)
	ListByConcert(ctx context.Context, concertID int64) ([]domain.Seat, error)
	Update(ctx context.Context, seat *domain.Seat) error
}

type PGSeatRepository struct {
	db *pgxpool.Pool
}

func NewSeatRepository(db *pgxpool.Pool) SeatRepository {
	return &PGSeatRepository{db: db}
}

const seatColumns = `id, concert_id, seat_number, price, status, assigned_user_id, assigned_until, reserved_at`

func (r *PGSeatRepository) GetByID(ctx context.Context, id int64) (*domain.Seat, error) {
	const query = `SELECT ` + seatColumns + ` FROM seats WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PGSeatRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Seat, error) {
	const query = `SELECT ` + seatColumns + ` FROM seats WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PGSeatRepository) GetByConcertAndNumberForUpdate(ctx context.Context, concertID int64, seatNumber int) (*domain.Seat, error) {
	const query = `SELECT ` + seatColumns + ` FROM seats WHERE concert_id = $1 AND seat_number = $2 FOR UPDATE`
	return r.getOne(ctx, query, concertID, seatNumber)
}

func (r *PGSeatRepository) ListByConcert(ctx context.Context, concertID int64) ([]domain.Seat, error) {
	const query = `SELECT ` + seatColumns + ` FROM seats WHERE concert_id = $1 ORDER BY seat_number`
	rows, err := conn(ctx, r.db).Query(ctx, query, concertID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, *s)
	}
	return seats, rows.Err()
}

func (r *PGSeatRepository) Update(ctx context.Context, seat *domain.Seat) error {
	const stmt = `
UPDATE seats
SET status = $2, assigned_user_id = $3, assigned_until = $4, reserved_at = $5, updated_at = now()
WHERE id = $1`

	tag, err := conn(ctx, r.db).Exec(ctx, stmt, seat.ID, seat.Status, seat.AssignedUserID, seat.AssignedUntil, seat.ReservedAt)
	if err != nil {
		return fmt.Errorf("update seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSeatNotFound
	}
	return nil
}

func (r *PGSeatRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Seat, error) {
	s, err := scanSeat(conn(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSeatNotFound
		}
		return nil, fmt.Errorf("get seat: %w", err)
	}
	return s, nil
}

func scanSeat(row pgx.Row) (*domain.Seat, error) {
	var s domain.Seat
	if err := row.Scan(&s.ID, &s.ConcertID, &s.SeatNumber, &s.Price, &s.Status, &s.AssignedUserID, &s.AssignedUntil, &s.ReservedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

var _ SeatRepository = (*PGSeatRepository)(nil)
