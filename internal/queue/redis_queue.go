// Package queue is a durable Redis-backed job queue with deterministic job
// identity, leases and delayed retries.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// Job states stored in the job hash.
const (
	StateWaiting   = "waiting"
	StateActive    = "active"
	StateDelayed   = "delayed"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

const DefaultPrefix = "similar:queue"

// ErrLeaseLost is returned by Complete and Fail when the job is no longer
// reserved under the caller's attempt, because the reaper requeued it or
// another worker holds it now.
var ErrLeaseLost = errors.New("job lease lost")

// IsOutstanding reports whether a job in state would absorb a new enqueue.
func IsOutstanding(state string) bool {
	return state == StateWaiting || state == StateActive || state == StateDelayed
}

// Job is a reserved unit of work.
type Job struct {
	ID          string
	Payload     models.SimilarJobPayload
	Attempts    int
	MaxAttempts int
}

// FailOutcome tells the caller what Fail did with the job.
type FailOutcome struct {
	Retrying  bool
	NextRunAt time.Time
}

// Options configures a RedisQueue.
type Options struct {
	Prefix      string
	MaxAttempts int
	BackoffBase time.Duration
	Lease       time.Duration
}

// RedisQueue keeps each job in a hash, waiting and delayed ids in a sorted set
// scored by run time, and reserved ids in a sorted set scored by lease expiry.
type RedisQueue struct {
	client redis.UniversalClient
	opts   Options
	now    func() time.Time
}

func NewRedisQueue(client redis.UniversalClient, opts Options) *RedisQueue {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 30 * time.Second
	}
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	return &RedisQueue{client: client, opts: opts, now: time.Now}
}

func (q *RedisQueue) jobKey(id string) string { return q.jobKeyPrefix() + id }
func (q *RedisQueue) jobKeyPrefix() string    { return q.opts.Prefix + ":job:" }
func (q *RedisQueue) waitingKey() string      { return q.opts.Prefix + ":waiting" }
func (q *RedisQueue) activeKey() string       { return q.opts.Prefix + ":active" }

var enqueueScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state == 'waiting' or state == 'active' or state == 'delayed' then
  return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'payload', ARGV[2], 'attempts', 0,
  'maxAttempts', ARGV[3], 'state', 'waiting', 'lastError', '', 'enqueuedAt', ARGV[4])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[1])
return 1
`)

var reserveScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)
redis.call('ZADD', KEYS[2], ARGV[2], id)
local key = ARGV[3] .. id
local attempts = redis.call('HINCRBY', key, 'attempts', 1)
redis.call('HSET', key, 'state', 'active')
return {id, redis.call('HGET', key, 'payload'), attempts, redis.call('HGET', key, 'maxAttempts')}
`)

var requeueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[1], id)
  redis.call('HSET', ARGV[2] .. id, 'state', 'waiting')
end
return #ids
`)

// A reservation is held while the id sits in the active set and the stored
// attempt count still matches the one the worker reserved.
const leaseGuard = `
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then
  return 0
end
if tonumber(redis.call('HGET', KEYS[2], 'attempts')) ~= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZREM', KEYS[1], ARGV[1])
`

var completeScript = redis.NewScript(leaseGuard + `
redis.call('HSET', KEYS[2], 'state', 'completed', 'lastError', '', 'completedAt', ARGV[3])
return 1
`)

var failScript = redis.NewScript(leaseGuard + `
if ARGV[3] == '1' then
  redis.call('ZADD', KEYS[3], ARGV[4], ARGV[1])
  redis.call('HSET', KEYS[2], 'state', 'delayed', 'lastError', ARGV[5])
else
  redis.call('HSET', KEYS[2], 'state', 'failed', 'lastError', ARGV[5])
end
return 1
`)

// Enqueue adds a job under jobID unless one is already waiting, delayed or
// active. A completed or failed job is replaced with a fresh attempt. It
// reports whether a new job was created.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string, payload models.SimilarJobPayload) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}
	created, err := enqueueScript.Run(ctx, q.client,
		[]string{q.jobKey(jobID), q.waitingKey()},
		jobID, string(body), q.opts.MaxAttempts, q.now().UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return created == 1, nil
}

// Reserve leases the next runnable job. It returns nil, nil when none is due.
func (q *RedisQueue) Reserve(ctx context.Context) (*Job, error) {
	now := q.now()
	res, err := reserveScript.Run(ctx, q.client,
		[]string{q.waitingKey(), q.activeKey()},
		now.UnixMilli(), now.Add(q.opts.Lease).UnixMilli(), q.jobKeyPrefix(),
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("reserve: unexpected reply %v", res)
	}

	job := &Job{ID: fmt.Sprint(res[0])}
	if err := json.Unmarshal([]byte(fmt.Sprint(res[1])), &job.Payload); err != nil {
		return nil, fmt.Errorf("reserve %s: decode payload: %w", job.ID, err)
	}
	job.Attempts = toInt(res[2])
	job.MaxAttempts = toInt(res[3])
	return job, nil
}

// Complete marks a reserved job done and releases its lease. It returns
// ErrLeaseLost when job is no longer held under this reservation.
func (q *RedisQueue) Complete(ctx context.Context, job *Job) error {
	held, err := completeScript.Run(ctx, q.client,
		[]string{q.activeKey(), q.jobKey(job.ID)},
		job.ID, job.Attempts, q.now().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("complete %s: %w", job.ID, err)
	}
	if held == 0 {
		return fmt.Errorf("complete %s: %w", job.ID, ErrLeaseLost)
	}
	return nil
}

// Fail records a failed attempt. Retryable causes with attempts left are
// scheduled again after BackoffBase * 2^(attempt-1); anything else is buried
// in the failed state. Like Complete it only acts on a held reservation.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, cause error) (FailOutcome, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	out := FailOutcome{Retrying: apperr.IsRetryable(cause) && job.Attempts < job.MaxAttempts}
	retry := "0"
	if out.Retrying {
		out.NextRunAt = q.now().Add(q.Backoff(job.Attempts))
		retry = "1"
	}

	held, err := failScript.Run(ctx, q.client,
		[]string{q.activeKey(), q.jobKey(job.ID), q.waitingKey()},
		job.ID, job.Attempts, retry, out.NextRunAt.UnixMilli(), msg,
	).Int()
	if err != nil {
		return out, fmt.Errorf("fail %s: %w", job.ID, err)
	}
	if held == 0 {
		return out, fmt.Errorf("fail %s: %w", job.ID, ErrLeaseLost)
	}
	return out, nil
}

// Backoff is the delay before the retry that follows attempt.
func (q *RedisQueue) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return q.opts.BackoffBase << (attempt - 1)
}

// RequeueExpired moves jobs whose lease ran out back to the waiting set.
func (q *RedisQueue) RequeueExpired(ctx context.Context) (int, error) {
	n, err := requeueScript.Run(ctx, q.client,
		[]string{q.activeKey(), q.waitingKey()},
		q.now().UnixMilli(), q.jobKeyPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("requeue expired: %w", err)
	}
	return n, nil
}

// State returns the stored state of a job, or "" when it does not exist.
func (q *RedisQueue) State(ctx context.Context, jobID string) (string, error) {
	state, err := q.client.HGet(ctx, q.jobKey(jobID), "state").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("state %s: %w", jobID, err)
	}
	return state, nil
}

// Ping checks the connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
