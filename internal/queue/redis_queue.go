package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Domenick1991/concertseats/internal/clock"
	"github.com/Domenick1991/concertseats/internal/domain"
	"github.com/Domenick1991/concertseats/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	activeKey      = "queue:active"
	waitingKey     = "queue:waiting"
	seqKey         = "queue:seq"
	tokenKeyPrefix = "queue:token:"
	userKeyPrefix  = "queue:user:"

	deviceKeyPrefix  = "queue:device:"
	sessionKeyPrefix = "queue:session:"
)

// issueScript admits a user in one step: it prunes lapsed active members,
// compares the active count with the limit and either activates the user or
// appends them to the waiting set. A user that already holds a live token
// gets that token back unless the caller presents a different session, in
// which case the old token is dropped and the user rejoins at the tail. A
// device fingerprint may belong to one user at a time.
//
// KEYS: active, waiting, seq, user->token, new token, device->user, user->session
// ARGV: userId, nowMs, maxActive, ttlMs, token, tokenPrefix, session, hasDevice
//
// Reply: {token, 1} issued, {token, 0} existing, {token, 2} reissued after a
// session change, {"", -1} device bound to another user.
var issueScript = redis.NewScript(`
local ttl = tonumber(ARGV[4])
if ARGV[8] == '1' then
	local owner = redis.call('GET', KEYS[6])
	if owner and owner ~= ARGV[1] then
		return {'', -1}
	end
	redis.call('SET', KEYS[6], ARGV[1], 'PX', ttl)
end

local created = 1
local existing = redis.call('GET', KEYS[4])
if existing and redis.call('EXISTS', ARGV[6] .. existing) == 1 then
	local stored = redis.call('GET', KEYS[7])
	if ARGV[7] == '' or not stored or stored == ARGV[7] then
		if ARGV[7] ~= '' then
			redis.call('SET', KEYS[7], ARGV[7], 'PX', ttl)
		end
		return {existing, 0}
	end
	redis.call('DEL', ARGV[6] .. existing)
	redis.call('ZREM', KEYS[1], ARGV[1])
	redis.call('ZREM', KEYS[2], ARGV[1])
	created = 2
end

local now = tonumber(ARGV[2])
local expiresAt = now + ttl

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now)

local status = 'WAITING'
if redis.call('ZCARD', KEYS[1]) < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], expiresAt, ARGV[1])
	redis.call('ZREM', KEYS[2], ARGV[1])
	status = 'ACTIVE'
else
	local seq = redis.call('INCR', KEYS[3])
	redis.call('ZADD', KEYS[2], seq, ARGV[1])
end

redis.call('HSET', KEYS[5], 'user_id', ARGV[1], 'status', status, 'issued_at', now, 'expires_at', expiresAt)
redis.call('PEXPIRE', KEYS[5], ttl)
redis.call('SET', KEYS[4], ARGV[5], 'PX', ttl)
if ARGV[7] ~= '' then
	redis.call('SET', KEYS[7], ARGV[7], 'PX', ttl)
end
return {ARGV[5], created}
`)

// activateScript promotes the oldest waiters into free active slots.
//
// KEYS: active, waiting
// ARGV: nowMs, maxActive, ttlMs, tokenPrefix, userPrefix
var activateScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now)

local available = tonumber(ARGV[2]) - redis.call('ZCARD', KEYS[1])
local activated = {}
while available > 0 do
	local head = redis.call('ZPOPMIN', KEYS[2])
	if #head == 0 then
		break
	end
	local user = head[1]
	local token = redis.call('GET', ARGV[5] .. user)
	if token and redis.call('EXISTS', ARGV[4] .. token) == 1 then
		local expiresAt = now + ttl
		redis.call('ZADD', KEYS[1], expiresAt, user)
		redis.call('HSET', ARGV[4] .. token, 'status', 'ACTIVE', 'expires_at', expiresAt)
		redis.call('PEXPIRE', ARGV[4] .. token, ttl)
		redis.call('PEXPIRE', ARGV[5] .. user, ttl)
		table.insert(activated, user)
		available = available - 1
	end
end
return activated
`)

// ClientInfo identifies where a token request came from. Both fields are
// optional.
type ClientInfo struct {
	SessionID         string
	DeviceFingerprint string
}

type AdmissionQueue interface {
	IssueToken(ctx context.Context, userID string) (*domain.QueueToken, error)
	IssueTokenWithSession(ctx context.Context, userID string, client ClientInfo) (*domain.QueueToken, error)
	GetStatus(ctx context.Context, token string) (*domain.QueueToken, error)
	ValidateActiveToken(ctx context.Context, token string) (bool, error)
	ActivateWaitingUsers(ctx context.Context) ([]string, error)
}

type RedisQueue struct {
	client      redis.Cmdable
	clock       clock.Clock
	maxActive   int
	tokenTTL    time.Duration
	waitPerUser time.Duration
	newToken    func() string
	logger      *slog.Logger
}

type Option func(*RedisQueue)

func WithMaxActive(n int) Option {
	return func(q *RedisQueue) {
		q.maxActive = n
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(q *RedisQueue) {
		q.tokenTTL = ttl
	}
}

func WithWaitPerUser(d time.Duration) Option {
	return func(q *RedisQueue) {
		q.waitPerUser = d
	}
}

func WithClock(c clock.Clock) Option {
	return func(q *RedisQueue) {
		q.clock = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *RedisQueue) {
		q.logger = logger
	}
}

func NewRedisQueue(client redis.Cmdable, opts ...Option) *RedisQueue {
	q := &RedisQueue{
		client:      client,
		clock:       clock.NewSystem(),
		maxActive:   100,
		tokenTTL:    30 * time.Minute,
		waitPerUser: 10 * time.Second,
		newToken:    uuid.NewString,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) IssueToken(ctx context.Context, userID string) (*domain.QueueToken, error) {
	return q.IssueTokenWithSession(ctx, userID, ClientInfo{})
}

// IssueTokenWithSession is IssueToken with device and session checks. A
// fingerprint already bound to another live user is refused with
// ErrDeviceInUse; a session that differs from the one stored for the user
// sends them to the back of the queue with a fresh token.
func (q *RedisQueue) IssueTokenWithSession(ctx context.Context, userID string, client ClientInfo) (*domain.QueueToken, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	now := q.clock.Now()
	token := q.newToken()
	keys := []string{
		activeKey, waitingKey, seqKey,
		userKeyPrefix + userID, tokenKeyPrefix + token,
		deviceKeyPrefix + client.DeviceFingerprint, sessionKeyPrefix + userID,
	}
	hasDevice := "0"
	if client.DeviceFingerprint != "" {
		hasDevice = "1"
	}
	res, err := issueScript.Run(ctx, q.client, keys,
		userID, now.UnixMilli(), q.maxActive, q.tokenTTL.Milliseconds(), token, tokenKeyPrefix,
		sessionValue(client), hasDevice,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("issue queue token: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("issue queue token: unexpected script reply %v", res)
	}
	issued, _ := res[0].(string)
	outcome, _ := res[1].(int64)
	if outcome < 0 {
		metrics.QueueTokensIssued.WithLabelValues("denied").Inc()
		q.logger.Warn("queue token refused, device bound to another user",
			slog.String("user_id", userID),
			slog.String("device", client.DeviceFingerprint),
		)
		return nil, domain.ErrDeviceInUse
	}

	t, err := q.load(ctx, issued, now)
	if err != nil {
		return nil, err
	}
	if outcome > 0 {
		metrics.QueueTokensIssued.WithLabelValues(string(t.Status)).Inc()
		q.logger.Info("queue token issued",
			slog.String("user_id", userID),
			slog.String("status", string(t.Status)),
			slog.Bool("session_changed", outcome == 2),
		)
	}
	return t, nil
}

// sessionValue is what the issue script compares to detect a session change.
// An empty value skips the check.
func sessionValue(client ClientInfo) string {
	if client.SessionID == "" {
		return ""
	}
	return client.SessionID + "|" + client.DeviceFingerprint
}

func (q *RedisQueue) GetStatus(ctx context.Context, token string) (*domain.QueueToken, error) {
	now := q.clock.Now()
	t, err := q.load(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if t.IsExpired(now) {
		q.evict(ctx, t)
		return nil, domain.ErrTokenExpired
	}
	return t, nil
}

// ValidateActiveToken reports false for unknown, expired and waiting tokens.
// Only store failures are returned as errors.
func (q *RedisQueue) ValidateActiveToken(ctx context.Context, token string) (bool, error) {
	t, err := q.GetStatus(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExpired) {
			return false, nil
		}
		return false, err
	}
	return t.IsActive(q.clock.Now()), nil
}

func (q *RedisQueue) ActivateWaitingUsers(ctx context.Context) ([]string, error) {
	now := q.clock.Now()
	activated, err := activateScript.Run(ctx, q.client, []string{activeKey, waitingKey},
		now.UnixMilli(), q.maxActive, q.tokenTTL.Milliseconds(), tokenKeyPrefix, userKeyPrefix,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("activate waiting users: %w", err)
	}
	if len(activated) > 0 {
		metrics.QueueActivations.Add(float64(len(activated)))
	}
	return activated, nil
}

// Stats counts live active users and queued waiters.
func (q *RedisQueue) Stats(ctx context.Context) (active, waiting int64, err error) {
	now := q.clock.Now()
	active, err = q.client.ZCount(ctx, activeKey, "("+strconv.FormatInt(now.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, 0, fmt.Errorf("count active users: %w", err)
	}
	waiting, err = q.client.ZCard(ctx, waitingKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("count waiting users: %w", err)
	}
	return active, waiting, nil
}

func (q *RedisQueue) load(ctx context.Context, token string, now time.Time) (*domain.QueueToken, error) {
	fields, err := q.client.HGetAll(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		return nil, fmt.Errorf("load queue token: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrTokenNotFound
	}

	t, err := decodeToken(token, fields)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case domain.QueueStatusActive:
		zero := 0
		t.QueuePosition = &zero
	case domain.QueueStatusWaiting:
		rank, err := q.client.ZRank(ctx, waitingKey, t.UserID).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Popped by a concurrent activation whose status write we raced.
				return t, nil
			}
			return nil, fmt.Errorf("rank waiting user: %w", err)
		}
		position := int(rank) + 1
		t.QueuePosition = &position
		t.EstimatedWaitMinutes = q.estimateWait(position)
	}
	if t.IsExpired(now) {
		t.Status = domain.QueueStatusExpired
		t.QueuePosition = nil
		t.EstimatedWaitMinutes = 0
	}
	return t, nil
}

// estimateWait counts whole minutes; a wait under a minute reports 0.
func (q *RedisQueue) estimateWait(position int) int {
	return int(time.Duration(position) * q.waitPerUser / time.Minute)
}

func (q *RedisQueue) evict(ctx context.Context, t *domain.QueueToken) {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tokenKeyPrefix+t.Token)
		pipe.Del(ctx, userKeyPrefix+t.UserID)
		pipe.ZRem(ctx, activeKey, t.UserID)
		pipe.ZRem(ctx, waitingKey, t.UserID)
		return nil
	})
	if err != nil {
		q.logger.Warn("evict expired queue token", slog.String("user_id", t.UserID), slog.Any("error", err))
	}
}

func decodeToken(token string, fields map[string]string) (*domain.QueueToken, error) {
	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode queue token issued_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode queue token expires_at: %w", err)
	}
	return &domain.QueueToken{
		Token:     token,
		UserID:    fields["user_id"],
		Status:    domain.QueueStatus(fields["status"]),
		IssuedAt:  time.UnixMilli(issuedAt).UTC(),
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
	}, nil
}

var _ AdmissionQueue = (*RedisQueue)(nil)
