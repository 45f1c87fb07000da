package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/concertseats/internal/clock"
	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQueue_Integration_AdmissionLimit(t *testing.T) {
	client := testutil.NewTestRedis(t)
	ctx := context.Background()
	clk := clock.NewManual(time.Now())
	q := NewRedisQueue(client, WithClock(clk), WithMaxActive(100))

	for i := 1; i <= 100; i++ {
		tok, err := q.IssueToken(ctx, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		require.Equal(t, domain.QueueStatusActive, tok.Status)
	}

	tok, err := q.IssueToken(ctx, "user-101")
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusWaiting, tok.Status)
	require.NotNil(t, tok.QueuePosition)
	assert.Equal(t, 1, *tok.QueuePosition)

	again, err := q.IssueToken(ctx, "user-101")
	require.NoError(t, err)
	assert.Equal(t, tok.Token, again.Token)
}

func TestRedisQueue_Integration_ConcurrentIssueNeverExceedsLimit(t *testing.T) {
	client := testutil.NewTestRedis(t)
	ctx := context.Background()
	q := NewRedisQueue(client, WithMaxActive(10))

	var wg sync.WaitGroup
	var mu sync.Mutex
	active := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := q.IssueToken(ctx, fmt.Sprintf("user-%d", i))
			if !assert.NoError(t, err) {
				return
			}
			if tok.Status == domain.QueueStatusActive {
				mu.Lock()
				active++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, active)
	activeCount, waiting, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, activeCount)
	assert.EqualValues(t, 40, waiting)
}

func TestRedisQueue_Integration_ActivationIsFIFO(t *testing.T) {
	client := testutil.NewTestRedis(t)
	ctx := context.Background()
	clk := clock.NewManual(time.Now())
	q := NewRedisQueue(client, WithClock(clk), WithMaxActive(1), WithTokenTTL(time.Minute))

	first, err := q.IssueToken(ctx, "user-a")
	require.NoError(t, err)
	require.Equal(t, domain.QueueStatusActive, first.Status)

	clk.Advance(30 * time.Second)
	b, err := q.IssueToken(ctx, "user-b")
	require.NoError(t, err)
	c, err := q.IssueToken(ctx, "user-c")
	require.NoError(t, err)
	assert.Equal(t, 1, *b.QueuePosition)
	assert.Equal(t, 2, *c.QueuePosition)

	activated, err := q.ActivateWaitingUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, activated)

	// user-a's active slot lapses; the oldest waiter takes it.
	clk.Advance(31 * time.Second)
	activated, err = q.ActivateWaitingUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-b"}, activated)

	ok, err := q.ValidateActiveToken(ctx, b.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := q.GetStatus(ctx, c.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusWaiting, status.Status)
	assert.Equal(t, 1, *status.QueuePosition)
}

func TestRedisQueue_Integration_DeviceAndSession(t *testing.T) {
	client := testutil.NewTestRedis(t)
	ctx := context.Background()
	clk := clock.NewManual(time.Now())
	q := NewRedisQueue(client, WithClock(clk), WithMaxActive(1))

	laptop := ClientInfo{SessionID: "sess-1", DeviceFingerprint: "device-1"}
	first, err := q.IssueTokenWithSession(ctx, "user-a", laptop)
	require.NoError(t, err)
	require.Equal(t, domain.QueueStatusActive, first.Status)

	_, err = q.IssueTokenWithSession(ctx, "user-b", ClientInfo{SessionID: "sess-9", DeviceFingerprint: "device-1"})
	assert.ErrorIs(t, err, domain.ErrDeviceInUse)

	same, err := q.IssueTokenWithSession(ctx, "user-a", laptop)
	require.NoError(t, err)
	assert.Equal(t, first.Token, same.Token)

	waiting, err := q.IssueTokenWithSession(ctx, "user-c", ClientInfo{SessionID: "sess-3", DeviceFingerprint: "device-3"})
	require.NoError(t, err)
	require.Equal(t, domain.QueueStatusWaiting, waiting.Status)

	// A new session for user-a replaces the old token.
	moved, err := q.IssueTokenWithSession(ctx, "user-a", ClientInfo{SessionID: "sess-2", DeviceFingerprint: "device-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, moved.Token)

	_, err = q.GetStatus(ctx, first.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
