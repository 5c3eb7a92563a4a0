package notification

import (
	"context"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
	"github.com/foliowatch/foliowatch-go/internal/errors"
	"github.com/foliowatch/foliowatch-go/internal/logger"
	"github.com/foliowatch/foliowatch-go/internal/observability"
	"github.com/foliowatch/foliowatch-go/internal/queue"
)

// RateLimits are the server-wide fallbacks when a preference carries no
// explicit limits.
type RateLimits struct {
	MaxPerHour int
	MaxPerDay  int
}

// Dispatcher fans a materialized alert out into per-channel notifications,
// applying the preference gate and rate limits per channel.
type Dispatcher struct {
	notifications repository.NotificationRepository
	preferences   repository.PreferenceRepository
	processor     *Processor
	jobs          queue.Queue
	limits        RateLimits
	maxRetries    int
	metrics       *observability.PipelineMetrics
	log           logger.Logger
}

// NewDispatcher creates a dispatcher with explicit collaborators.
func NewDispatcher(
	notifications repository.NotificationRepository,
	preferences repository.PreferenceRepository,
	processor *Processor,
	jobs queue.Queue,
	limits RateLimits,
	maxRetries int,
	metrics *observability.PipelineMetrics,
	log logger.Logger,
) *Dispatcher {
	if maxRetries <= 0 {
		maxRetries = entities.DefaultMaxRetries
	}
	return &Dispatcher{
		notifications: notifications,
		preferences:   preferences,
		processor:     processor,
		jobs:          jobs,
		limits:        limits,
		maxRetries:    maxRetries,
		metrics:       metrics,
		log:           log,
	}
}

// Dispatch implements the alerting engine's AlertDispatcher contract.
// Each channel is isolated: a gate rejection or create failure on one
// channel never blocks the others. High and critical priority
// notifications are sent inline; the rest wait for the queue consumer.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *entities.Alert, rule *entities.AlertRule) error {
	channels := d.resolveChannels(rule)
	priority := d.resolvePriority(rule, alert)

	pref, err := d.preferences.GetByOwner(ctx, alert.OwnerID)
	if err != nil {
		return errors.New(err).Component("notification").Category(errors.CategoryPersistence).Build()
	}

	now := time.Now()
	limited, limitReason := d.rateLimited(ctx, pref, now)

	for _, channel := range channels {
		if limited {
			d.metrics.NotificationsGated.WithLabelValues(channel, string(limitReason)).Inc()
			continue
		}
		if gateErr := CanSend(pref, channel, alert.Type, now); gateErr != nil {
			d.metrics.NotificationsGated.WithLabelValues(channel, string(GateReasonOf(gateErr))).Inc()
			d.log.Debug("delivery gated",
				logger.String("alert_id", alert.ID),
				logger.String("channel", channel),
				logger.String("reason", string(GateReasonOf(gateErr))))
			continue
		}

		n := d.buildNotification(alert, rule, pref, channel, priority)
		if err := d.notifications.CreateNotification(ctx, n); err != nil {
			d.log.Error("failed to create notification",
				logger.String("alert_id", alert.ID),
				logger.String("channel", channel),
				logger.Error(err))
			continue
		}

		switch priority {
		case entities.PriorityHigh, entities.PriorityCritical:
			if err := d.processor.ProcessNotification(ctx, n.ID); err != nil {
				d.log.Error("inline notification processing failed",
					logger.String("notification_id", n.ID),
					logger.Error(err))
			}
		default:
			d.enqueue(ctx, n)
		}
	}
	return nil
}

// resolveChannels returns the rule's channel list, defaulting to in-app
// for rules without one and for manual alerts with no rule at all.
func (d *Dispatcher) resolveChannels(rule *entities.AlertRule) []string {
	if rule == nil || len(rule.Channels) == 0 {
		return []string{entities.ChannelInApp}
	}
	return rule.Channels
}

func (d *Dispatcher) resolvePriority(rule *entities.AlertRule, alert *entities.Alert) string {
	if rule != nil && rule.Priority != "" {
		return rule.Priority
	}
	if alert.Severity == entities.SeverityCritical {
		return entities.PriorityCritical
	}
	return entities.PriorityMedium
}

// rateLimited checks the owner's hourly and daily budgets.
func (d *Dispatcher) rateLimited(ctx context.Context, pref *entities.NotificationPreference, now time.Time) (bool, GateReason) {
	maxPerHour := pref.MaxPerHour
	if maxPerHour <= 0 {
		maxPerHour = d.limits.MaxPerHour
	}
	maxPerDay := pref.MaxPerDay
	if maxPerDay <= 0 {
		maxPerDay = d.limits.MaxPerDay
	}

	if maxPerHour > 0 {
		count, err := d.notifications.CountForOwnerSince(ctx, pref.OwnerID, now.Add(-time.Hour))
		if err == nil && count >= int64(maxPerHour) {
			return true, GateRateLimited
		}
	}
	if maxPerDay > 0 {
		count, err := d.notifications.CountForOwnerSince(ctx, pref.OwnerID, now.Add(-24*time.Hour))
		if err == nil && count >= int64(maxPerDay) {
			return true, GateRateLimited
		}
	}
	return false, ""
}

// buildNotification assembles the queued per-channel delivery unit.
func (d *Dispatcher) buildNotification(
	alert *entities.Alert,
	rule *entities.AlertRule,
	pref *entities.NotificationPreference,
	channel, priority string,
) *entities.Notification {
	alertID := alert.ID
	recipient := pref.Channel(channel).Address
	if recipient == "" {
		recipient = alert.OwnerID
	}

	subject := "Portfolio alert"
	if alert.Symbol != "" {
		subject = "Alert: " + alert.Symbol
	}
	if rule != nil && rule.Name != "" {
		subject = "Alert: " + rule.Name
	}

	data := entities.JSONMap{
		"alert_type": alert.Type,
		"severity":   alert.Severity,
		"symbol":     alert.Symbol,
		"value":      alert.TriggeredValue,
	}

	return &entities.Notification{
		OwnerID:      alert.OwnerID,
		AlertID:      &alertID,
		Channel:      channel,
		Status:       entities.NotificationStatusQueued,
		Subject:      subject,
		Message:      alert.Message,
		Template:     "alert_" + alert.Type,
		TemplateData: data,
		Recipient:    recipient,
		MaxRetries:   d.maxRetries,
		Priority:     priority,
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, n *entities.Notification) {
	_, err := d.jobs.Enqueue(ctx, queue.JobProcessNotification, ProcessPayload{NotificationID: n.ID}, queue.Options{
		Priority: entities.PriorityRank(n.Priority),
		Attempts: 3,
		Backoff:  2 * time.Second,
	})
	if err != nil {
		// The sweep resubmits queued work, so the notification is
		// delayed, not lost.
		d.log.Error("failed to enqueue notification",
			logger.String("notification_id", n.ID),
			logger.Error(err))
	}
}
