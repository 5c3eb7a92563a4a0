package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
	"github.com/foliowatch/foliowatch-go/internal/errors"
	"github.com/foliowatch/foliowatch-go/internal/logger"
	"github.com/foliowatch/foliowatch-go/internal/observability"
	"github.com/foliowatch/foliowatch-go/internal/queue"
)

// retryBackoff computes the delay before attempt retryCount: 2^retryCount
// minutes. Independent of the webhook sender's in-call backoff, which
// works in milliseconds.
func retryBackoff(retryCount int) time.Duration {
	return time.Duration(1<<retryCount) * time.Minute
}

// sweepBatchSize caps how many due notifications one sweep resubmits.
const sweepBatchSize = 200

// ProcessPayload is the queue payload for notification processing jobs.
type ProcessPayload struct {
	NotificationID string `json:"notification_id"`
}

// Processor owns notification status transitions: it claims, sends,
// records outcomes, and schedules retries with exponential backoff.
type Processor struct {
	notifications repository.NotificationRepository
	alerts        repository.AlertRepository
	registry      *Registry
	jobs          queue.Queue
	metrics       *observability.PipelineMetrics
	log           logger.Logger
}

// NewProcessor creates a delivery processor with explicit collaborators.
func NewProcessor(
	notifications repository.NotificationRepository,
	alerts repository.AlertRepository,
	registry *Registry,
	jobs queue.Queue,
	metrics *observability.PipelineMetrics,
	log logger.Logger,
) *Processor {
	return &Processor{
		notifications: notifications,
		alerts:        alerts,
		registry:      registry,
		jobs:          jobs,
		metrics:       metrics,
		log:           log,
	}
}

// ProcessNotification runs one delivery attempt for the notification with
// the given ID. Current entity state is always reloaded first: a
// notification deleted or completed since the job was scheduled is never
// revived from captured state.
func (p *Processor) ProcessNotification(ctx context.Context, id string) error {
	n, err := p.notifications.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			// Deleted since scheduling; nothing to do.
			return nil
		}
		return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
	}
	if n.Terminal() || n.Status == entities.NotificationStatusSending {
		return nil
	}

	claimed, err := p.notifications.ClaimForSending(ctx, id)
	if err != nil {
		return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
	}
	if !claimed {
		// Another worker holds this notification.
		return nil
	}

	sender, ok := p.registry.Lookup(n.Channel)
	if !ok {
		p.failTerminal(ctx, n, fmt.Sprintf("no sender registered for channel %q", n.Channel))
		return nil
	}

	result := sender.Send(ctx, n)
	now := time.Now()

	if result.Success {
		if err := p.notifications.MarkSent(ctx, id, result.Response, now); err != nil {
			return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
		}
		p.metrics.NotificationsSent.WithLabelValues(n.Channel).Inc()
		p.appendReceipt(ctx, n, entities.NotificationStatusSent, now)
		p.log.Info("notification sent",
			logger.String("notification_id", id),
			logger.String("channel", n.Channel))
		return nil
	}

	reason := "send failed"
	if result.Err != nil {
		reason = result.Err.Error()
	}

	if result.Permanent {
		// Exhaust the budget in the same write: a permanent failure on
		// the first attempt must still read as terminal, or retention
		// cleanup would keep the record forever.
		if err := p.notifications.MarkFailedTerminal(ctx, id, reason); err != nil {
			return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
		}
		p.metrics.NotificationsFailed.WithLabelValues(n.Channel, "true").Inc()
		p.appendReceipt(ctx, n, entities.NotificationStatusFailed, now)
		p.log.Error("notification delivery failed permanently",
			logger.String("notification_id", id),
			logger.String("channel", n.Channel),
			logger.String("reason", reason))
		return nil
	}

	if err := p.notifications.MarkFailed(ctx, id, reason); err != nil {
		return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
	}

	spent := n.RetryCount + 1
	if spent >= n.MaxRetries {
		p.metrics.NotificationsFailed.WithLabelValues(n.Channel, "true").Inc()
		p.appendReceipt(ctx, n, entities.NotificationStatusFailed, now)
		p.log.Error("notification delivery exhausted",
			logger.String("notification_id", id),
			logger.String("channel", n.Channel),
			logger.Int("retry_count", spent),
			logger.String("reason", reason))
		return nil
	}

	// Re-arm: the entity's next_retry_at and the queue's delayed job
	// carry the same backoff so neither runs ahead of the other.
	delay := retryBackoff(spent)
	nextRetryAt := now.Add(delay)
	requeued, err := p.notifications.RequeueForRetry(ctx, id, nextRetryAt)
	if err != nil {
		return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
	}
	if requeued {
		p.metrics.NotificationsRetried.WithLabelValues(n.Channel).Inc()
		p.enqueueProcess(ctx, n, delay)
		p.log.Warn("notification send failed, retry scheduled",
			logger.String("notification_id", id),
			logger.String("channel", n.Channel),
			logger.Int("retry_count", spent),
			logger.Duration("delay", delay),
			logger.String("reason", reason))
	}
	p.metrics.NotificationsFailed.WithLabelValues(n.Channel, "false").Inc()
	return nil
}

// failTerminal marks a notification failed with no retry budget left.
func (p *Processor) failTerminal(ctx context.Context, n *entities.Notification, reason string) {
	if err := p.notifications.MarkFailedTerminal(ctx, n.ID, reason); err != nil {
		p.log.Error("failed to persist terminal failure",
			logger.String("notification_id", n.ID),
			logger.Error(err))
		return
	}
	p.metrics.NotificationsFailed.WithLabelValues(n.Channel, "true").Inc()
	p.appendReceipt(ctx, n, entities.NotificationStatusFailed, time.Now())
}

// appendReceipt records the delivery outcome on the originating alert.
func (p *Processor) appendReceipt(ctx context.Context, n *entities.Notification, status string, at time.Time) {
	if n.AlertID == nil {
		return
	}
	receipt := &entities.DeliveryReceipt{
		AlertID:        *n.AlertID,
		Channel:        n.Channel,
		NotificationID: n.ID,
		Status:         status,
		SentAt:         at,
	}
	if err := p.alerts.AppendReceipt(ctx, receipt); err != nil {
		p.log.Error("failed to append delivery receipt",
			logger.String("alert_id", *n.AlertID),
			logger.String("notification_id", n.ID),
			logger.Error(err))
	}
}

// enqueueProcess schedules a processing job, inheriting the
// notification's priority.
func (p *Processor) enqueueProcess(ctx context.Context, n *entities.Notification, delay time.Duration) {
	_, err := p.jobs.Enqueue(ctx, queue.JobProcessNotification, ProcessPayload{NotificationID: n.ID}, queue.Options{
		Priority: entities.PriorityRank(n.Priority),
		Delay:    delay,
		Attempts: 3,
		Backoff:  2 * time.Second,
	})
	if err != nil {
		// The sweep picks the notification up from its next_retry_at,
		// so a lost job delays delivery rather than dropping it.
		p.log.Error("failed to enqueue notification job",
			logger.String("notification_id", n.ID),
			logger.Error(err))
	}
}

// SweepDue resubmits pending notifications whose retry time has arrived,
// highest priority first, oldest first within a priority. Returns the
// number resubmitted.
func (p *Processor) SweepDue(ctx context.Context) (int, error) {
	due, err := p.notifications.DuePending(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
	}
	for i := range due {
		p.enqueueProcess(ctx, &due[i], 0)
	}
	return len(due), nil
}

// Cleanup prunes terminal notifications older than retentionDays and
// expires overdue alerts. Only terminal-state records are touched, so
// cleanup never races active delivery.
func (p *Processor) Cleanup(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	pruned, err := p.notifications.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
	}
	expired, err := p.alerts.ExpireDue(ctx, time.Now())
	if err != nil {
		return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
	}
	if pruned > 0 || expired > 0 {
		p.log.Info("cleanup completed",
			logger.Int64("notifications_pruned", pruned),
			logger.Int64("alerts_expired", expired),
			logger.Int("retention_days", retentionDays))
	}
	return nil
}
