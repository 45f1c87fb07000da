package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/Domenick1991/concertseats/internal/domain"
)

// MemorySeatCache is a seat-map cache without expiry. Entries stay until
// InvalidateSeats drops them.
type MemorySeatCache struct {
	mu            sync.Mutex
	seats         map[int64][]domain.Seat
	invalidations int
}

func NewMemorySeatCache() *MemorySeatCache {
	return &MemorySeatCache{seats: make(map[int64][]domain.Seat)}
}

func (c *MemorySeatCache) GetSeats(_ context.Context, concertID int64) ([]domain.Seat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.seats[concertID]), nil
}

func (c *MemorySeatCache) SetSeats(_ context.Context, concertID int64, seats []domain.Seat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seats[concertID] = slices.Clone(seats)
	return nil
}

func (c *MemorySeatCache) InvalidateSeats(_ context.Context, concertID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seats, concertID)
	c.invalidations++
	return nil
}

func (c *MemorySeatCache) Cached(concertID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seats[concertID]
	return ok
}

func (c *MemorySeatCache) Invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}
