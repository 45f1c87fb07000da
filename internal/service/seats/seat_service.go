package seats

import (
	"context"
	"log/slog"

	"github.com/Domenick1991/concertseats/internal/clock"
	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/repository"
)

type SeatUseCase interface {
	ListSeats(ctx context.Context, concertID int64, onlyAvailable bool) ([]domain.Seat, error)
}

type SeatCache interface {
	GetSeats(ctx context.Context, concertID int64) ([]domain.Seat, error)
	SetSeats(ctx context.Context, concertID int64, seats []domain.Seat) error
}

type SeatService struct {
	repo   repository.SeatRepository
	cache  SeatCache
	clock  clock.Clock
	logger *slog.Logger
}

type SeatServiceOption func(*SeatService)

// WithCache serves listings from cache when possible. Availability is
// recomputed on every read, so a cached map never shows a lapsed hold as taken.
func WithCache(cache SeatCache) SeatServiceOption {
	return func(s *SeatService) {
		s.cache = cache
	}
}

func WithClock(c clock.Clock) SeatServiceOption {
	return func(s *SeatService) {
		s.clock = c
	}
}

func WithLogger(logger *slog.Logger) SeatServiceOption {
	return func(s *SeatService) {
		s.logger = logger
	}
}

func NewSeatService(repo repository.SeatRepository, opts ...SeatServiceOption) *SeatService {
	s := &SeatService{repo: repo, clock: clock.NewSystem(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListSeats returns the concert's seat map ordered by seat number. Holds that
// have lapsed are reported as AVAILABLE.
func (s *SeatService) ListSeats(ctx context.Context, concertID int64, onlyAvailable bool) ([]domain.Seat, error) {
	seats, err := s.load(ctx, concertID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, domain.ErrConcertNotFound
	}

	now := s.clock.Now()
	out := make([]domain.Seat, 0, len(seats))
	for _, seat := range seats {
		if seat.IsExpired(now) {
			seat.Status = domain.SeatStatusAvailable
			seat.AssignedUserID = nil
			seat.AssignedUntil = nil
		}
		if onlyAvailable && !seat.IsAvailable() {
			continue
		}
		out = append(out, seat)
	}
	return out, nil
}

func (s *SeatService) load(ctx context.Context, concertID int64) ([]domain.Seat, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSeats(ctx, concertID)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			s.logger.Warn("seat cache read failed", slog.Int64("concert_id", concertID), slog.Any("error", err))
		}
	}

	seats, err := s.repo.ListByConcert(ctx, concertID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(seats) > 0 {
		if err := s.cache.SetSeats(ctx, concertID, seats); err != nil {
			s.logger.Warn("seat cache write failed", slog.Int64("concert_id", concertID), slog.Any("error", err))
		}
	}
	return seats, nil
}

var _ SeatUseCase = (*SeatService)(nil)
