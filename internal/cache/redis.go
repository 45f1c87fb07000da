package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps short-lived copies of per-concert seat maps.
type RedisCache struct {
	client   redis.Cmdable
	seatsTTL time.Duration
}

func NewRedisCache(client redis.Cmdable, seatsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, seatsTTL: seatsTTL}
}

// GetSeats returns nil without error on a miss.
func (c *RedisCache) GetSeats(ctx context.Context, concertID int64) ([]domain.Seat, error) {
	data, err := c.client.Get(ctx, seatsKey(concertID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get seat map: %w", err)
	}

	var seats []domain.Seat
	if err := json.Unmarshal(data, &seats); err != nil {
		return nil, fmt.Errorf("decode seat map: %w", err)
	}
	return seats, nil
}

func (c *RedisCache) SetSeats(ctx context.Context, concertID int64, seats []domain.Seat) error {
	payload, err := json.Marshal(seats)
	if err != nil {
		return fmt.Errorf("encode seat map: %w", err)
	}
	return c.client.Set(ctx, seatsKey(concertID), payload, c.seatsTTL).Err()
}

func (c *RedisCache) InvalidateSeats(ctx context.Context, concertID int64) error {
	return c.client.Del(ctx, seatsKey(concertID)).Err()
}

func seatsKey(concertID int64) string {
	return fmt.Sprintf("cache:concert:%d:seats", concertID)
}
