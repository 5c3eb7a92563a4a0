// Package observability registers the pipeline's Prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics holds the collectors for rule evaluation and delivery.
type PipelineMetrics struct {
	RulesEvaluated  *prometheus.CounterVec
	RuleFetchErrors *prometheus.CounterVec
	AlertsFired     *prometheus.CounterVec
	TriggerRaceLost prometheus.Counter

	NotificationsSent    *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	NotificationsRetried *prometheus.CounterVec
	NotificationsGated   *prometheus.CounterVec

	QueueDepth *prometheus.GaugeVec
}

// NewPipelineMetrics creates and registers the pipeline collectors on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		RulesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foliowatch_rules_evaluated_total",
			Help: "Rules evaluated per tick, by rule type and outcome.",
		}, []string{"rule_type", "outcome"}),
		RuleFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foliowatch_rule_fetch_errors_total",
			Help: "Value fetch failures, by rule type.",
		}, []string{"rule_type"}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foliowatch_alerts_fired_total",
			Help: "Alerts materialized from fired rules, by rule type.",
		}, []string{"rule_type"}),
		TriggerRaceLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foliowatch_trigger_race_lost_total",
			Help: "Trigger writes skipped because a concurrent evaluation won.",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foliowatch_notifications_sent_total",
			Help: "Notifications sent successfully, by channel.",
		}, []string{"channel"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foliowatch_notifications_failed_total",
			Help: "Notification send failures, by channel and finality.",
		}, []string{"channel", "terminal"}),
		NotificationsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foliowatch_notifications_retried_total",
			Help: "Notification retries scheduled, by channel.",
		}, []string{"channel"}),
		NotificationsGated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foliowatch_notifications_gated_total",
			Help: "Deliveries suppressed by the preference gate, by channel and reason.",
		}, []string{"channel", "reason"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "foliowatch_queue_depth",
			Help: "Work queue depth by state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.RulesEvaluated,
		m.RuleFetchErrors,
		m.AlertsFired,
		m.TriggerRaceLost,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.NotificationsRetried,
		m.NotificationsGated,
		m.QueueDepth,
	)
	return m
}

// NewUnregistered creates collectors without registering them, for tests.
func NewUnregistered() *PipelineMetrics {
	return NewPipelineMetrics(prometheus.NewRegistry())
}
