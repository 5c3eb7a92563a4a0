// Package worker runs the queue consumer that drives the alerting and
// delivery pipeline: evaluation ticks, delivery attempts, retry sweeps,
// and maintenance.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/foliowatch/foliowatch-go/internal/alerting"
	"github.com/foliowatch/foliowatch-go/internal/errors"
	"github.com/foliowatch/foliowatch-go/internal/logger"
	"github.com/foliowatch/foliowatch-go/internal/notification"
	"github.com/foliowatch/foliowatch-go/internal/queue"
)

// EvaluatePayload is the queue payload for rule evaluation jobs.
type EvaluatePayload struct {
	RuleType string `json:"rule_type"`
}

// Worker dispatches queued jobs to the engine and processor.
type Worker struct {
	jobs          queue.Queue
	engine        *alerting.Engine
	processor     *notification.Processor
	retentionDays int
	log           logger.Logger
}

// New creates a worker over the given queue and collaborators.
func New(
	jobs queue.Queue,
	engine *alerting.Engine,
	processor *notification.Processor,
	retentionDays int,
	log logger.Logger,
) *Worker {
	if log == nil {
		log = logger.Default()
	}
	return &Worker{
		jobs:          jobs,
		engine:        engine,
		processor:     processor,
		retentionDays: retentionDays,
		log:           log,
	}
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.jobs.Consume(ctx, w.handle)
}

// handle runs one job and logs failures with their error category before
// handing them back to the queue's retry policy.
func (w *Worker) handle(ctx context.Context, job *queue.Job) error {
	err := w.dispatch(ctx, job)
	if err != nil {
		w.log.Error("job failed",
			logger.String("job_type", job.Type),
			logger.String("job_id", job.ID),
			logger.Int("attempt", job.Attempt),
			logger.String("category", string(errors.CategoryOf(err))),
			logger.Error(err),
		)
	}
	return err
}

func (w *Worker) dispatch(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobEvaluateRules:
		var p EvaluatePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decoding evaluate payload: %w", err)
		}
		fired, err := w.engine.EvaluateBatch(ctx, p.RuleType)
		if err != nil {
			return err
		}
		if fired > 0 {
			w.log.Info("evaluation tick fired alerts",
				logger.String("rule_type", p.RuleType),
				logger.Int("fired", fired),
			)
		}
		return nil

	case queue.JobProcessNotification:
		var p notification.ProcessPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decoding process payload: %w", err)
		}
		return w.processor.ProcessNotification(ctx, p.NotificationID)

	case queue.JobSweepNotifications:
		requeued, err := w.processor.SweepDue(ctx)
		if err != nil {
			return err
		}
		if requeued > 0 {
			w.log.Info("sweep resubmitted due notifications",
				logger.Int("requeued", requeued),
			)
		}
		return nil

	case queue.JobMaintenanceCleanup:
		return w.processor.Cleanup(ctx, w.retentionDays)

	default:
		// Unknown types are dropped rather than retried forever.
		w.log.Warn("dropping job of unknown type",
			logger.String("job_type", job.Type),
			logger.String("job_id", job.ID),
		)
		return nil
	}
}
