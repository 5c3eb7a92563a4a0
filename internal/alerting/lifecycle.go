package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
	"github.com/foliowatch/foliowatch-go/internal/logger"
)

// LifecycleManager creates alerts and owns their status transitions.
type LifecycleManager struct {
	alerts repository.AlertRepository
	log    logger.Logger
}

// NewLifecycleManager creates a LifecycleManager.
func NewLifecycleManager(alerts repository.AlertRepository, log logger.Logger) *LifecycleManager {
	return &LifecycleManager{alerts: alerts, log: log}
}

// CreateFromRule materializes a triggered alert from a fired rule. The
// triggered snapshot (value, threshold, operator, symbol) is captured here
// and never rewritten.
func (m *LifecycleManager) CreateFromRule(ctx context.Context, rule *entities.AlertRule, currentValue float64, now time.Time) (*entities.Alert, error) {
	ruleID := rule.ID
	alert := &entities.Alert{
		OwnerID:        rule.OwnerID,
		RuleID:         &ruleID,
		Type:           rule.Type,
		Status:         entities.AlertStatusTriggered,
		TriggeredValue: currentValue,
		Threshold:      rule.Threshold,
		Operator:       rule.Operator,
		Symbol:         rule.Subject(),
		TriggeredAt:    &now,
		Message:        BuildMessage(rule, currentValue),
		Severity:       Severity(rule.Priority),
		ExpiresAt:      rule.ExpiresAt,
	}
	if err := m.alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create alert from rule %s: %w", rule.ID, err)
	}
	return alert, nil
}

// ManualAlertInput is the payload for externally originated alerts that
// are not backed by a rule.
type ManualAlertInput struct {
	OwnerID  string
	Type     string
	Symbol   string
	Message  string
	Severity string
	Expires  *time.Time
}

// CreateManual accepts an externally originated alert in active status.
func (m *LifecycleManager) CreateManual(ctx context.Context, input ManualAlertInput) (*entities.Alert, error) {
	severity := input.Severity
	if severity == "" {
		severity = entities.SeverityInfo
	}
	alertType := input.Type
	if alertType == "" {
		alertType = entities.RuleTypeCustom
	}
	alert := &entities.Alert{
		OwnerID:   input.OwnerID,
		Type:      alertType,
		Status:    entities.AlertStatusActive,
		Symbol:    input.Symbol,
		Message:   input.Message,
		Severity:  severity,
		ExpiresAt: input.Expires,
	}
	if err := m.alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create manual alert: %w", err)
	}
	return alert, nil
}

// Acknowledge marks an alert acknowledged. Terminal for the UI, but it
// does not block further rule-driven triggers of the same rule.
func (m *LifecycleManager) Acknowledge(ctx context.Context, id string, now time.Time) error {
	return m.alerts.Acknowledge(ctx, id, now)
}

// AddDeliveryReceipt appends a receipt recording a per-channel delivery
// outcome. Receipts are append-only; failures here are logged but never
// fail the delivery itself.
func (m *LifecycleManager) AddDeliveryReceipt(ctx context.Context, alertID, channel, notificationID, status string, at time.Time) {
	receipt := &entities.DeliveryReceipt{
		AlertID:        alertID,
		Channel:        channel,
		NotificationID: notificationID,
		Status:         status,
		SentAt:         at,
	}
	if err := m.alerts.AppendReceipt(ctx, receipt); err != nil {
		m.log.Error("failed to append delivery receipt",
			logger.String("alert_id", alertID),
			logger.String("channel", channel),
			logger.Error(err))
	}
}

// ExpireDue expires alerts past their expiry time.
func (m *LifecycleManager) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	return m.alerts.ExpireDue(ctx, now)
}
