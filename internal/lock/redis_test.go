package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLock_TryLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLock(db)
	ctx := context.Background()

	mock.ExpectSetNX("seat:1:15", "owner-a", 10*time.Second).SetVal(true)
	ok, err := l.TryLock(ctx, "seat:1:15", "owner-a", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectSetNX("seat:1:15", "owner-b", 10*time.Second).SetVal(false)
	ok, err = l.TryLock(ctx, "seat:1:15", "owner-b", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_TryLock_StoreError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLock(db)

	mock.ExpectSetNX("seat:1:15", "owner-a", time.Second).SetErr(errors.New("connection refused"))
	ok, err := l.TryLock(context.Background(), "seat:1:15", "owner-a", time.Second)

	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_Unlock_OwnerChecked(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLock(db)
	ctx := context.Background()

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"seat:1:15"}, "owner-a").SetVal(int64(1))
	l.Unlock(ctx, "seat:1:15", "owner-a")

	// A lock taken over by someone else after TTL expiry is not deleted.
	mock.ExpectEvalSha(unlockScript.Hash(), []string{"seat:1:15"}, "owner-a").SetVal(int64(0))
	l.Unlock(ctx, "seat:1:15", "owner-a")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_Unlock_ErrorIsSwallowed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLock(db)

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"seat:1:15"}, "owner-a").SetErr(errors.New("timeout"))

	assert.NotPanics(t, func() { l.Unlock(context.Background(), "seat:1:15", "owner-a") })
}

func TestSeatKey(t *testing.T) {
	assert.Equal(t, "seat:1:15", SeatKey(1, 15))
}
