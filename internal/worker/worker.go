package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/metrics"
)

type ExpiryReleaser interface {
	ReleaseExpiredReservations(ctx context.Context) ([]domain.Reservation, error)
}

type QueueActivator interface {
	ActivateWaitingUsers(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (active, waiting int64, err error)
}

// Worker drives the periodic jobs: the expiry sweep and queue promotion.
// Both are safe to run on several instances at once.
type Worker struct {
	releaser      ExpiryReleaser
	activator     QueueActivator
	sweepEvery    time.Duration
	activateEvery time.Duration
	logger        *slog.Logger
}

type Option func(*Worker)

func WithSweepInterval(d time.Duration) Option {
	return func(w *Worker) {
		w.sweepEvery = d
	}
}

func WithActivationInterval(d time.Duration) Option {
	return func(w *Worker) {
		w.activateEvery = d
	}
}

// WithQueue enables periodic promotion of waiting users.
func WithQueue(activator QueueActivator) Option {
	return func(w *Worker) {
		w.activator = activator
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func New(releaser ExpiryReleaser, opts ...Option) *Worker {
	w := &Worker{
		releaser:      releaser,
		sweepEvery:    30 * time.Second,
		activateEvery: 5 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	sweepTicker := time.NewTicker(w.sweepEvery)
	defer sweepTicker.Stop()

	var activateC <-chan time.Time
	if w.activator != nil {
		activateTicker := time.NewTicker(w.activateEvery)
		defer activateTicker.Stop()
		activateC = activateTicker.C
	}

	w.logger.Info("worker started",
		slog.Duration("sweep_interval", w.sweepEvery),
		slog.Bool("queue_activation", w.activator != nil),
	)

	for {
		select {
		case <-sweepTicker.C:
			w.Sweep(ctx)
		case <-activateC:
			w.Activate(ctx)
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		}
	}
}

// Sweep runs one expiry pass and returns how many holds it released.
func (w *Worker) Sweep(ctx context.Context) int {
	expired, err := w.releaser.ReleaseExpiredReservations(ctx)
	if err != nil {
		w.logger.Error("release expired reservations", slog.Any("error", err))
		return 0
	}
	if len(expired) > 0 {
		w.logger.Info("released expired reservations", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Activate promotes waiting users and refreshes the queue gauges.
func (w *Worker) Activate(ctx context.Context) int {
	if w.activator == nil {
		return 0
	}

	promoted, err := w.activator.ActivateWaitingUsers(ctx)
	if err != nil {
		w.logger.Error("activate waiting users", slog.Any("error", err))
	}
	if len(promoted) > 0 {
		w.logger.Info("activated waiting users", slog.Int("count", len(promoted)))
	}

	active, waiting, err := w.activator.Stats(ctx)
	if err != nil {
		w.logger.Warn("read queue stats", slog.Any("error", err))
		return len(promoted)
	}
	metrics.QueueUsers.WithLabelValues("active").Set(float64(active))
	metrics.QueueUsers.WithLabelValues("waiting").Set(float64(waiting))
	return len(promoted)
}
