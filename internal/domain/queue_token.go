package domain

import "time"

type QueueStatus string

const (
	QueueStatusWaiting QueueStatus = "WAITING"
	QueueStatusActive  QueueStatus = "ACTIVE"
	QueueStatusExpired QueueStatus = "EXPIRED"
)

// QueueToken is the admission ticket a user presents on every seat operation.
type QueueToken struct {
	Token                string
	UserID               string
	Status               QueueStatus
	QueuePosition        *int
	EstimatedWaitMinutes int
	IssuedAt             time.Time
	ExpiresAt            time.Time
}

func (t *QueueToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *QueueToken) IsActive(now time.Time) bool {
	return t.Status == QueueStatusActive && !t.IsExpired(now)
}
