package queue

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pollInterval is how often the consumer re-checks for ready jobs when
// the queue is idle.
const pollInterval = 100 * time.Millisecond

// queuedJob wraps a Job with an enqueue sequence for FIFO tie-breaks.
type queuedJob struct {
	job *Job
	seq uint64
}

// delayedHeap orders not-yet-due jobs by run time.
type delayedHeap []*queuedJob

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].job.RunAt.Before(h[j].job.RunAt) }
func (h delayedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *delayedHeap) Push(x any)        { *h = append(*h, x.(*queuedJob)) }
func (h *delayedHeap) Pop() any          { return popLast(h) }

// readyHeap orders due jobs by priority desc, then FIFO.
type readyHeap []*queuedJob

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)   { *h = append(*h, x.(*queuedJob)) }
func (h *readyHeap) Pop() any     { return popLast(h) }

func popLast[S ~[]*queuedJob](h *S) *queuedJob {
	old := *h
	n := len(old)
	qj := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return qj
}

// MemoryQueue is an in-process Queue for single-node deployments and
// tests. Jobs do not survive a restart.
type MemoryQueue struct {
	mu        sync.Mutex
	delayed   delayedHeap
	ready     readyHeap
	seq       uint64
	active    int64
	completed int64
	failed    int64
	wake      chan struct{}
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{wake: make(chan struct{}, 1)}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(_ context.Context, jobType string, payload any, opts Options) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	job := &Job{
		ID:       uuid.NewString(),
		Type:     jobType,
		Payload:  raw,
		Priority: opts.Priority,
		Attempts: attempts,
		Backoff:  opts.Backoff,
		RunAt:    time.Now().Add(opts.Delay),
	}

	q.mu.Lock()
	q.push(&queuedJob{job: job, seq: q.nextSeq()}, time.Now())
	q.mu.Unlock()
	q.notify()
	return job.ID, nil
}

// nextSeq and push require q.mu to be held.
func (q *MemoryQueue) nextSeq() uint64 {
	q.seq++
	return q.seq
}

func (q *MemoryQueue) push(qj *queuedJob, now time.Time) {
	if qj.job.RunAt.After(now) {
		heap.Push(&q.delayed, qj)
	} else {
		heap.Push(&q.ready, qj)
	}
}

func (q *MemoryQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// promote moves due delayed jobs into the ready heap. Requires q.mu.
func (q *MemoryQueue) promote(now time.Time) {
	for len(q.delayed) > 0 && !q.delayed[0].job.RunAt.After(now) {
		heap.Push(&q.ready, heap.Pop(&q.delayed).(*queuedJob))
	}
}

// popReady removes and returns the next ready job, or nil.
func (q *MemoryQueue) popReady(now time.Time) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.promote(now)
	if len(q.ready) == 0 {
		return nil
	}
	qj := heap.Pop(&q.ready).(*queuedJob)
	q.active++
	return qj.job
}

// Consume implements Queue. Runs until ctx is cancelled.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		job := q.popReady(time.Now())
		if job == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
			case <-ticker.C:
			}
			continue
		}

		job.Attempt++
		err := handler(ctx, job)

		q.mu.Lock()
		q.active--
		if err == nil {
			q.completed++
			q.mu.Unlock()
			continue
		}
		if job.Attempt >= job.Attempts {
			q.failed++
			q.mu.Unlock()
			continue
		}
		// Re-arm with the queue's own exponential backoff.
		backoff := job.Backoff
		if backoff <= 0 {
			backoff = time.Second
		}
		job.RunAt = time.Now().Add(backoff * (1 << (job.Attempt - 1)))
		heap.Push(&q.delayed, &queuedJob{job: job, seq: q.nextSeq()})
		q.mu.Unlock()
	}
}

// Stats implements Queue.
func (q *MemoryQueue) Stats(context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	waiting := int64(len(q.ready))
	var delayed int64
	for _, qj := range q.delayed {
		if qj.job.RunAt.After(now) {
			delayed++
		} else {
			waiting++
		}
	}
	return Stats{
		Waiting:   waiting,
		Active:    q.active,
		Completed: q.completed,
		Failed:    q.failed,
		Delayed:   delayed,
	}, nil
}
