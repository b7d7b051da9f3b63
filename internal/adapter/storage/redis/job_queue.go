package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tutor-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// promoteScript moves up to ARGV[2] members with score <= ARGV[1] from the
// delayed set to the ready list in one step.
var promoteScript = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

const promoteBatch = 100

// JobQueue implements ports.SyncQueue on Redis. Jobs are LPUSHed onto a
// ready list and BRPOPed by workers; retries wait in a sorted set scored by
// due time in milliseconds.
type JobQueue struct {
	client  *goredis.Client
	ready   string
	delayed string
	dead    string
	now     func() time.Time
}

// NewJobQueue creates a queue whose keys share the given name.
func NewJobQueue(client *goredis.Client, name string) *JobQueue {
	return &JobQueue{
		client:  client,
		ready:   name + ":ready",
		delayed: name + ":delayed",
		dead:    name + ":dead",
		now:     time.Now,
	}
}

// Enqueue pushes a job onto the ready list.
func (q *JobQueue) Enqueue(ctx context.Context, job *domain.SyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode sync job: %w", err)
	}
	if err := q.client.LPush(ctx, q.ready, payload).Err(); err != nil {
		return fmt.Errorf("redis enqueue: %w", err)
	}
	return nil
}

// Dequeue pops the oldest ready job, waiting up to timeout (minimum 1s).
// It returns nil, nil when the wait elapsed without a job.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.SyncJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.ready).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis dequeue: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("redis dequeue: unexpected reply length %d", len(res))
	}

	var job domain.SyncJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode sync job: %w", err)
	}
	return &job, nil
}

// Retry parks the job in the delayed set until now+delay.
func (q *JobQueue) Retry(ctx context.Context, job *domain.SyncJob, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode sync job: %w", err)
	}
	due := q.now().Add(delay).UnixMilli()
	if err := q.client.ZAdd(ctx, q.delayed, goredis.Z{Score: float64(due), Member: payload}).Err(); err != nil {
		return fmt.Errorf("redis schedule retry: %w", err)
	}
	return nil
}

// PromoteDue moves retries due at or before now back to the ready list.
func (q *JobQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.delayed, q.ready},
		strconv.FormatInt(now.UnixMilli(), 10), promoteBatch,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("redis promote retries: %w", err)
	}
	return n, nil
}

// DeadLetter stores a job that exhausted its attempts.
func (q *JobQueue) DeadLetter(ctx context.Context, job *domain.SyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode sync job: %w", err)
	}
	if err := q.client.LPush(ctx, q.dead, payload).Err(); err != nil {
		return fmt.Errorf("redis dead letter: %w", err)
	}
	return nil
}

// QueueStats reports the length of each list.
type QueueStats struct {
	Ready   int64 `json:"ready"`
	Delayed int64 `json:"delayed"`
	Dead    int64 `json:"dead"`
}

// Stats returns current queue depths.
func (q *JobQueue) Stats(ctx context.Context) (*QueueStats, error) {
	var ready, delayed, dead *goredis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		ready = pipe.LLen(ctx, q.ready)
		delayed = pipe.ZCard(ctx, q.delayed)
		dead = pipe.LLen(ctx, q.dead)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis queue stats: %w", err)
	}
	return &QueueStats{Ready: ready.Val(), Delayed: delayed.Val(), Dead: dead.Val()}, nil
}
