package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Domenick1991/concertseats/internal/metrics"
)

// Publisher delivers a payload to a named topic. key selects the partition
// or routing key where the transport supports one.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Noop discards every event. Used when no transport is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error {
	return nil
}

// Async hands each event to the wrapped publisher on its own goroutine and
// returns at once. Failures are logged and counted, never returned.
type Async struct {
	next    Publisher
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Publisher, timeout time.Duration, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, timeout: timeout, logger: logger}
}

func (a *Async) Publish(ctx context.Context, topic, key string, payload any) error {
	// The request that triggered the event may finish before delivery.
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		if err := a.next.Publish(ctx, topic, key, payload); err != nil {
			metrics.EventsPublished.WithLabelValues("error").Inc()
			a.logger.Error("publish event",
				slog.String("topic", topic),
				slog.String("key", key),
				slog.Any("error", err),
			)
			return
		}
		metrics.EventsPublished.WithLabelValues("success").Inc()
	}()
	return nil
}

// Wait blocks until every in-flight publish has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}
