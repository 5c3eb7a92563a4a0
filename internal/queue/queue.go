// Package queue provides the durable work-queue boundary the scheduler
// and delivery pipeline run on.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Job types handled by the worker.
const (
	JobEvaluateRules       = "rules.evaluate"
	JobProcessNotification = "notifications.process"
	JobSweepNotifications  = "notifications.sweep"
	JobMaintenanceCleanup  = "maintenance.cleanup"
)

// Options control a single enqueue.
type Options struct {
	// Priority orders ready jobs, higher first.
	Priority int
	// Delay defers the job's first execution.
	Delay time.Duration
	// Attempts caps handler executions including the first. Zero means 1.
	Attempts int
	// Backoff is the base delay between handler retries; each retry
	// doubles it.
	Backoff time.Duration
}

// Job is one unit of queued work.
type Job struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Priority int             `json:"priority"`
	Attempt  int             `json:"attempt"`
	Attempts int             `json:"attempts"`
	Backoff  time.Duration   `json:"backoff"`
	RunAt    time.Time       `json:"run_at"`
}

// Stats is a point-in-time queue census.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// Handler processes one job. A returned error fails the attempt; the
// queue re-runs the job with its own backoff until Attempts is spent.
type Handler func(ctx context.Context, job *Job) error

// Queue is the durable work-queue contract.
type Queue interface {
	// Enqueue submits a job and returns its ID.
	Enqueue(ctx context.Context, jobType string, payload any, opts Options) (string, error)
	// Consume runs handler over jobs until ctx is cancelled.
	Consume(ctx context.Context, handler Handler) error
	// Stats returns the current census.
	Stats(ctx context.Context) (Stats, error)
}
