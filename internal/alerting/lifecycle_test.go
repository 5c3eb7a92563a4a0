package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

func newTestLifecycle(t *testing.T) (*LifecycleManager, *engineEnv) {
	t.Helper()
	_, env := newEngineEnv(t, staticValue(0))
	return NewLifecycleManager(env.alerts, testLogger()), env
}

func TestLifecycle_CreateFromRule(t *testing.T) {
	m, env := newTestLifecycle(t)
	now := time.Now()

	rule := createEnabledRule(t, env, func(r *entities.AlertRule) {
		r.Priority = entities.PriorityCritical
	})

	alert, err := m.CreateFromRule(t.Context(), rule, 151.25, now)
	require.NoError(t, err)

	got, err := env.alerts.GetAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStatusTriggered, got.Status)
	require.NotNil(t, got.RuleID)
	assert.Equal(t, rule.ID, *got.RuleID)
	assert.InDelta(t, 151.25, got.TriggeredValue, 0.0001)
	assert.InDelta(t, 150.0, got.Threshold, 0.0001)
	assert.Equal(t, entities.OperatorAbove, got.Operator)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, entities.SeverityCritical, got.Severity)
	require.NotNil(t, got.TriggeredAt)
}

func TestLifecycle_CreateManual(t *testing.T) {
	m, env := newTestLifecycle(t)

	t.Run("full input", func(t *testing.T) {
		expires := time.Now().Add(time.Hour)
		alert, err := m.CreateManual(t.Context(), ManualAlertInput{
			OwnerID:  "owner-1",
			Type:     entities.RuleTypeNews,
			Symbol:   "AAPL",
			Message:  "Earnings call moved to Thursday",
			Severity: entities.SeverityWarning,
			Expires:  &expires,
		})
		require.NoError(t, err)

		got, err := env.alerts.GetAlert(t.Context(), alert.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.AlertStatusActive, got.Status)
		assert.Equal(t, entities.RuleTypeNews, got.Type)
		assert.Equal(t, entities.SeverityWarning, got.Severity)
		assert.Nil(t, got.RuleID)
		require.NotNil(t, got.ExpiresAt)
	})

	t.Run("defaults fill type and severity", func(t *testing.T) {
		alert, err := m.CreateManual(t.Context(), ManualAlertInput{
			OwnerID: "owner-1",
			Message: "heads up",
		})
		require.NoError(t, err)

		got, err := env.alerts.GetAlert(t.Context(), alert.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.AlertStatusActive, got.Status)
		assert.Equal(t, entities.RuleTypeCustom, got.Type)
		assert.Equal(t, entities.SeverityInfo, got.Severity)
	})
}

func TestLifecycle_Acknowledge(t *testing.T) {
	m, env := newTestLifecycle(t)
	now := time.Now()

	rule := createEnabledRule(t, env, nil)
	alert, err := m.CreateFromRule(t.Context(), rule, 151.25, now)
	require.NoError(t, err)

	require.NoError(t, m.Acknowledge(t.Context(), alert.ID, now))

	got, err := env.alerts.GetAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStatusAcknowledged, got.Status)
	require.NotNil(t, got.AcknowledgedAt)
	// The triggered snapshot survives the transition.
	assert.InDelta(t, 151.25, got.TriggeredValue, 0.0001)
}

func TestLifecycle_AddDeliveryReceipt(t *testing.T) {
	m, env := newTestLifecycle(t)
	now := time.Now()

	rule := createEnabledRule(t, env, nil)
	alert, err := m.CreateFromRule(t.Context(), rule, 151.25, now)
	require.NoError(t, err)

	m.AddDeliveryReceipt(t.Context(), alert.ID, entities.ChannelEmail, "notif-1", entities.NotificationStatusSent, now)
	m.AddDeliveryReceipt(t.Context(), alert.ID, entities.ChannelWebhook, "notif-2", entities.NotificationStatusFailed, now)

	got, err := env.alerts.GetAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	require.Len(t, got.Receipts, 2)

	channels := []string{got.Receipts[0].Channel, got.Receipts[1].Channel}
	assert.ElementsMatch(t, []string{entities.ChannelEmail, entities.ChannelWebhook}, channels)
}

func TestLifecycle_ExpireDue(t *testing.T) {
	m, env := newTestLifecycle(t)
	now := time.Now()

	past := now.Add(-time.Minute)
	rule := createEnabledRule(t, env, func(r *entities.AlertRule) { r.ExpiresAt = &past })
	expired, err := m.CreateFromRule(t.Context(), rule, 151.25, now.Add(-time.Hour))
	require.NoError(t, err)

	fresh := createEnabledRule(t, env, nil)
	kept, err := m.CreateFromRule(t.Context(), fresh, 151.25, now)
	require.NoError(t, err)

	count, err := m.ExpireDue(t.Context(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := env.alerts.GetAlert(t.Context(), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStatusExpired, got.Status)

	got, err = env.alerts.GetAlert(t.Context(), kept.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStatusTriggered, got.Status)
}
