package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key layout. Ready jobs live in a sorted set scored so ZPOPMIN
// yields highest priority first, FIFO within a priority. Delayed jobs sit
// in a second sorted set scored by their run time and are promoted by the
// consumer.
const (
	readyKey     = "foliowatch:queue:ready"
	delayedKey   = "foliowatch:queue:delayed"
	completedKey = "foliowatch:queue:completed"
	failedKey    = "foliowatch:queue:failed"
)

// priorityBand spaces priority levels far enough apart that enqueue
// timestamps (unix milliseconds) order jobs FIFO within one level without
// ever crossing into the next.
const priorityBand = float64(1 << 50)

// RedisQueue is a Redis-backed Queue for distributed deployments. Jobs
// survive process restarts.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a queue on the given client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func readyScore(priority int, enqueuedAt time.Time) float64 {
	return -float64(priority)*priorityBand + float64(enqueuedAt.UnixMilli())
}

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, jobType string, payload any, opts Options) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	now := time.Now()
	job := &Job{
		ID:       uuid.NewString(),
		Type:     jobType,
		Payload:  raw,
		Priority: opts.Priority,
		Attempts: attempts,
		Backoff:  opts.Backoff,
		RunAt:    now.Add(opts.Delay),
	}
	member, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	if opts.Delay > 0 {
		err = q.client.ZAdd(ctx, delayedKey, redis.Z{
			Score:  float64(job.RunAt.UnixMilli()),
			Member: member,
		}).Err()
	} else {
		err = q.client.ZAdd(ctx, readyKey, redis.Z{
			Score:  readyScore(job.Priority, now),
			Member: member,
		}).Err()
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}
	return job.ID, nil
}

// promoteDue moves delayed jobs whose run time has arrived to the ready
// set.
func (q *RedisQueue) promoteDue(ctx context.Context, now time.Time) error {
	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil || len(members) == 0 {
		return err
	}
	pipe := q.client.TxPipeline()
	for _, member := range members {
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			pipe.ZRem(ctx, delayedKey, member)
			continue
		}
		pipe.ZRem(ctx, delayedKey, member)
		pipe.ZAdd(ctx, readyKey, redis.Z{
			Score:  readyScore(job.Priority, now),
			Member: member,
		})
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Consume implements Queue. Runs until ctx is cancelled.
func (q *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := q.promoteDue(ctx, time.Now()); err != nil && ctx.Err() == nil {
			// Transient Redis failure; back off one poll interval.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}

		popped, err := q.client.ZPopMin(ctx, readyKey, 1).Result()
		if err != nil || len(popped) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}

		member, ok := popped[0].Member.(string)
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.client.Incr(ctx, failedKey)
			continue
		}

		job.Attempt++
		if handlerErr := handler(ctx, &job); handlerErr == nil {
			q.client.Incr(ctx, completedKey)
			continue
		}
		if job.Attempt >= job.Attempts {
			q.client.Incr(ctx, failedKey)
			continue
		}
		backoff := job.Backoff
		if backoff <= 0 {
			backoff = time.Second
		}
		job.RunAt = time.Now().Add(backoff * (1 << (job.Attempt - 1)))
		requeued, err := json.Marshal(&job)
		if err != nil {
			q.client.Incr(ctx, failedKey)
			continue
		}
		q.client.ZAdd(ctx, delayedKey, redis.Z{
			Score:  float64(job.RunAt.UnixMilli()),
			Member: requeued,
		})
	}
}

// Stats implements Queue.
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.ZCard(ctx, readyKey)
	delayed := pipe.ZCard(ctx, delayedKey)
	completed := pipe.Get(ctx, completedKey)
	failed := pipe.Get(ctx, failedKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}
	completedN, _ := completed.Int64()
	failedN, _ := failed.Int64()
	return Stats{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Completed: completedN,
		Failed:    failedN,
	}, nil
}
