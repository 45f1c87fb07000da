package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/concertseats/internal/domain"
)

type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

// Send tells the buyer their seat is confirmed. Delivery is a log line for now.
func (s *Sender) Send(ctx context.Context, event domain.ReservationCompleted) error {
	s.logger.InfoContext(ctx, "purchase confirmation",
		slog.String("user_id", event.UserID),
		slog.String("reservation_id", event.ReservationID),
		slog.Int64("concert_id", event.ConcertID),
		slog.Int("seat_number", event.SeatNumber),
		slog.String("price", event.Price.String()),
		slog.Time("reserved_at", event.ReservedAt),
	)
	return nil
}

// Handle decodes a raw event and sends it. Unknown event types are ignored.
func (s *Sender) Handle(ctx context.Context, data []byte) error {
	var event domain.ReservationCompleted
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if event.Type != domain.ReservationCompletedEvent {
		return nil
	}
	if event.ReservationID == "" || event.UserID == "" {
		return fmt.Errorf("%w: event without reservation or user", domain.ErrInvalidInput)
	}
	return s.Send(ctx, event)
}
