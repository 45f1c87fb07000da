package queue

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Domenick1991/concertseats/internal/clock"
	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestQueue(token string) (*RedisQueue, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	q := NewRedisQueue(db,
		WithClock(clock.NewFixed(testNow)),
		WithMaxActive(100),
		WithTokenTTL(30*time.Minute),
		WithWaitPerUser(10*time.Second),
	)
	q.newToken = func() string { return token }
	return q, mock
}

func ms(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func expectIssue(mock redismock.ClientMock, userID, token string) *redismock.ExpectedCmd {
	return expectIssueFrom(mock, userID, token, ClientInfo{})
}

func expectIssueFrom(mock redismock.ClientMock, userID, token string, client ClientInfo) *redismock.ExpectedCmd {
	keys := []string{
		activeKey, waitingKey, seqKey,
		userKeyPrefix + userID, tokenKeyPrefix + token,
		deviceKeyPrefix + client.DeviceFingerprint, sessionKeyPrefix + userID,
	}
	hasDevice := "0"
	if client.DeviceFingerprint != "" {
		hasDevice = "1"
	}
	return mock.ExpectEvalSha(issueScript.Hash(), keys,
		userID, testNow.UnixMilli(), 100, (30 * time.Minute).Milliseconds(), token, tokenKeyPrefix,
		sessionValue(client), hasDevice,
	)
}

func TestRedisQueue_IssueToken_Active(t *testing.T) {
	q, mock := setupTestQueue("tok-1")
	ctx := context.Background()

	expectIssue(mock, "user-1", "tok-1").SetVal([]interface{}{"tok-1", int64(1)})
	mock.ExpectHGetAll(tokenKeyPrefix + "tok-1").SetVal(map[string]string{
		"user_id":    "user-1",
		"status":     "ACTIVE",
		"issued_at":  ms(testNow),
		"expires_at": ms(testNow.Add(30 * time.Minute)),
	})

	tok, err := q.IssueToken(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.Token)
	assert.Equal(t, domain.QueueStatusActive, tok.Status)
	require.NotNil(t, tok.QueuePosition)
	assert.Equal(t, 0, *tok.QueuePosition)
	assert.Equal(t, 0, tok.EstimatedWaitMinutes)
	assert.Equal(t, testNow.Add(30*time.Minute), tok.ExpiresAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_IssueToken_WaitingWhenFull(t *testing.T) {
	q, mock := setupTestQueue("tok-101")
	ctx := context.Background()

	expectIssue(mock, "user-101", "tok-101").SetVal([]interface{}{"tok-101", int64(1)})
	mock.ExpectHGetAll(tokenKeyPrefix + "tok-101").SetVal(map[string]string{
		"user_id":    "user-101",
		"status":     "WAITING",
		"issued_at":  ms(testNow),
		"expires_at": ms(testNow.Add(30 * time.Minute)),
	})
	mock.ExpectZRank(waitingKey, "user-101").SetVal(0)

	tok, err := q.IssueToken(ctx, "user-101")
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusWaiting, tok.Status)
	require.NotNil(t, tok.QueuePosition)
	assert.Equal(t, 1, *tok.QueuePosition)
	assert.Equal(t, 0, tok.EstimatedWaitMinutes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_IssueToken_ReturnsExistingToken(t *testing.T) {
	q, mock := setupTestQueue("tok-new")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		expectIssue(mock, "user-1", "tok-new").SetVal([]interface{}{"tok-1", int64(0)})
		mock.ExpectHGetAll(tokenKeyPrefix + "tok-1").SetVal(map[string]string{
			"user_id":    "user-1",
			"status":     "ACTIVE",
			"issued_at":  ms(testNow),
			"expires_at": ms(testNow.Add(30 * time.Minute)),
		})
	}

	first, err := q.IssueToken(ctx, "user-1")
	require.NoError(t, err)
	second, err := q.IssueToken(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "tok-1", first.Token)
	assert.Equal(t, first.Token, second.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_IssueToken_RequiresUser(t *testing.T) {
	q, _ := setupTestQueue("tok-1")
	_, err := q.IssueToken(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRedisQueue_IssueTokenWithSession_DeviceBoundToOtherUser(t *testing.T) {
	q, mock := setupTestQueue("tok-2")
	client := ClientInfo{SessionID: "sess-2", DeviceFingerprint: "device-1"}

	expectIssueFrom(mock, "user-2", "tok-2", client).SetVal([]interface{}{"", int64(-1)})

	tok, err := q.IssueTokenWithSession(context.Background(), "user-2", client)
	assert.Nil(t, tok)
	assert.ErrorIs(t, err, domain.ErrDeviceInUse)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_IssueTokenWithSession_SessionChangeRequeues(t *testing.T) {
	q, mock := setupTestQueue("tok-new")
	client := ClientInfo{SessionID: "sess-b", DeviceFingerprint: "device-1"}

	expectIssueFrom(mock, "user-1", "tok-new", client).SetVal([]interface{}{"tok-new", int64(2)})
	mock.ExpectHGetAll(tokenKeyPrefix + "tok-new").SetVal(map[string]string{
		"user_id":    "user-1",
		"status":     "WAITING",
		"issued_at":  ms(testNow),
		"expires_at": ms(testNow.Add(30 * time.Minute)),
	})
	mock.ExpectZRank(waitingKey, "user-1").SetVal(6)

	tok, err := q.IssueTokenWithSession(context.Background(), "user-1", client)
	require.NoError(t, err)
	assert.Equal(t, "tok-new", tok.Token)
	assert.Equal(t, 7, *tok.QueuePosition)
	assert.Equal(t, 1, tok.EstimatedWaitMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionValue(t *testing.T) {
	assert.Empty(t, sessionValue(ClientInfo{DeviceFingerprint: "device-1"}))
	assert.Equal(t, "sess-1|device-1", sessionValue(ClientInfo{SessionID: "sess-1", DeviceFingerprint: "device-1"}))
	assert.Equal(t, "sess-1|", sessionValue(ClientInfo{SessionID: "sess-1"}))
}

func TestRedisQueue_GetStatus_NotFound(t *testing.T) {
	q, mock := setupTestQueue("")
	mock.ExpectHGetAll(tokenKeyPrefix + "missing").SetVal(map[string]string{})

	_, err := q.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_GetStatus_ExpiredIsEvicted(t *testing.T) {
	q, mock := setupTestQueue("")
	mock.ExpectHGetAll(tokenKeyPrefix + "tok-1").SetVal(map[string]string{
		"user_id":    "user-1",
		"status":     "ACTIVE",
		"issued_at":  ms(testNow.Add(-31 * time.Minute)),
		"expires_at": ms(testNow.Add(-time.Minute)),
	})
	mock.ExpectTxPipeline()
	mock.ExpectDel(tokenKeyPrefix + "tok-1").SetVal(1)
	mock.ExpectDel(userKeyPrefix + "user-1").SetVal(1)
	mock.ExpectZRem(activeKey, "user-1").SetVal(1)
	mock.ExpectZRem(waitingKey, "user-1").SetVal(0)
	mock.ExpectTxPipelineExec()

	_, err := q.GetStatus(context.Background(), "tok-1")
	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_GetStatus_RecomputesPosition(t *testing.T) {
	q, mock := setupTestQueue("")
	mock.ExpectHGetAll(tokenKeyPrefix + "tok-9").SetVal(map[string]string{
		"user_id":    "user-9",
		"status":     "WAITING",
		"issued_at":  ms(testNow),
		"expires_at": ms(testNow.Add(30 * time.Minute)),
	})
	mock.ExpectZRank(waitingKey, "user-9").SetVal(11)

	tok, err := q.GetStatus(context.Background(), "tok-9")
	require.NoError(t, err)
	assert.Equal(t, 12, *tok.QueuePosition)
	assert.Equal(t, 2, tok.EstimatedWaitMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_ValidateActiveToken(t *testing.T) {
	q, mock := setupTestQueue("")
	ctx := context.Background()

	mock.ExpectHGetAll(tokenKeyPrefix + "active").SetVal(map[string]string{
		"user_id": "user-1", "status": "ACTIVE",
		"issued_at": ms(testNow), "expires_at": ms(testNow.Add(time.Minute)),
	})
	ok, err := q.ValidateActiveToken(ctx, "active")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectHGetAll(tokenKeyPrefix + "waiting").SetVal(map[string]string{
		"user_id": "user-2", "status": "WAITING",
		"issued_at": ms(testNow), "expires_at": ms(testNow.Add(time.Minute)),
	})
	mock.ExpectZRank(waitingKey, "user-2").SetVal(3)
	ok, err = q.ValidateActiveToken(ctx, "waiting")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectHGetAll(tokenKeyPrefix + "unknown").SetVal(map[string]string{})
	ok, err = q.ValidateActiveToken(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_ActivateWaitingUsers(t *testing.T) {
	q, mock := setupTestQueue("")
	mock.ExpectEvalSha(activateScript.Hash(), []string{activeKey, waitingKey},
		testNow.UnixMilli(), 100, (30 * time.Minute).Milliseconds(), tokenKeyPrefix, userKeyPrefix,
	).SetVal([]interface{}{"user-101", "user-102"})

	activated, err := q.ActivateWaitingUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"user-101", "user-102"}, activated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_EstimateWait(t *testing.T) {
	q, _ := setupTestQueue("")
	assert.Equal(t, 0, q.estimateWait(1))
	assert.Equal(t, 0, q.estimateWait(5))
	assert.Equal(t, 1, q.estimateWait(6))
	assert.Equal(t, 1, q.estimateWait(11))
	assert.Equal(t, 16, q.estimateWait(100))
}
