package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
	"github.com/foliowatch/foliowatch-go/internal/observability"
)

func newTestDispatcher(env *testEnv, limits RateLimits) *Dispatcher {
	return NewDispatcher(
		env.notifications, env.preferences, env.processor, env.jobs,
		limits, 3, observability.NewUnregistered(), testLogger(),
	)
}

func testAlert(t *testing.T, env *testEnv, ownerID string) *entities.Alert {
	t.Helper()
	now := time.Now()
	alert := &entities.Alert{
		OwnerID:        ownerID,
		Type:           entities.RuleTypePrice,
		Status:         entities.AlertStatusTriggered,
		TriggeredValue: 151.25,
		Threshold:      150,
		Operator:       entities.OperatorAbove,
		Symbol:         "AAPL",
		TriggeredAt:    &now,
		Message:        "AAPL rose above 150.00 (now 151.25)",
		Severity:       entities.SeverityInfo,
	}
	require.NoError(t, env.alerts.CreateAlert(t.Context(), alert))
	return alert
}

func TestDispatcher_FanOutPerChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	d := newTestDispatcher(env, RateLimits{})

	pref := allowAllPref()
	require.NoError(t, env.preferences.Upsert(ctx, pref))

	alert := testAlert(t, env, "owner-1")
	rule := &entities.AlertRule{
		ID:       "rule-1",
		OwnerID:  "owner-1",
		Name:     "AAPL above 150",
		Type:     entities.RuleTypePrice,
		Channels: entities.StringList{entities.ChannelEmail, entities.ChannelInApp},
		Priority: entities.PriorityMedium,
	}

	require.NoError(t, d.Dispatch(ctx, alert, rule))

	items, err := env.notifications.ListNotifications(ctx, repository.NotificationFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	channels := map[string]entities.Notification{}
	for _, n := range items {
		channels[n.Channel] = n
	}
	require.Contains(t, channels, entities.ChannelEmail)
	require.Contains(t, channels, entities.ChannelInApp)

	email := channels[entities.ChannelEmail]
	assert.Equal(t, entities.NotificationStatusQueued, email.Status)
	assert.Equal(t, "owner@example.com", email.Recipient)
	assert.Equal(t, "Alert: AAPL above 150", email.Subject)
	assert.Equal(t, "alert_price", email.Template)
	assert.Equal(t, alert.Message, email.Message)

	// Medium priority goes through the queue, not inline.
	stats, err := env.jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Waiting)
}

func TestDispatcher_DefaultsToInApp(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	d := newTestDispatcher(env, RateLimits{})

	alert := testAlert(t, env, "owner-1")

	// Manual alert with no backing rule at all.
	require.NoError(t, d.Dispatch(ctx, alert, nil))

	items, err := env.notifications.ListNotifications(ctx, repository.NotificationFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entities.ChannelInApp, items[0].Channel)
	// Without a stored address the owner id routes the in-app delivery.
	assert.Equal(t, "owner-1", items[0].Recipient)
}

func TestDispatcher_GatedChannelsAreSkippedIndividually(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	d := newTestDispatcher(env, RateLimits{})

	pref := allowAllPref()
	pref.EmailVerified = false
	require.NoError(t, env.preferences.Upsert(ctx, pref))

	alert := testAlert(t, env, "owner-1")
	rule := &entities.AlertRule{
		ID:       "rule-1",
		OwnerID:  "owner-1",
		Type:     entities.RuleTypePrice,
		Channels: entities.StringList{entities.ChannelEmail, entities.ChannelInApp},
		Priority: entities.PriorityMedium,
	}

	require.NoError(t, d.Dispatch(ctx, alert, rule))

	items, err := env.notifications.ListNotifications(ctx, repository.NotificationFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, items, 1, "unverified email is skipped, in-app still delivers")
	assert.Equal(t, entities.ChannelInApp, items[0].Channel)
}

func TestDispatcher_QuietHoursSuppressDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	d := newTestDispatcher(env, RateLimits{})

	pref := allowAllPref()
	// A window covering the whole day suppresses everything.
	pref.QuietHoursStart = "00:00"
	pref.QuietHoursEnd = "23:59"
	require.NoError(t, env.preferences.Upsert(ctx, pref))

	alert := testAlert(t, env, "owner-1")
	rule := &entities.AlertRule{
		ID:       "rule-1",
		OwnerID:  "owner-1",
		Type:     entities.RuleTypePrice,
		Channels: entities.StringList{entities.ChannelEmail},
		Priority: entities.PriorityMedium,
	}

	require.NoError(t, d.Dispatch(ctx, alert, rule))

	items, err := env.notifications.ListNotifications(ctx, repository.NotificationFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDispatcher_HighPriorityProcessesInline(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	d := newTestDispatcher(env, RateLimits{})

	sender := &fakeSender{
		channel: entities.ChannelInApp,
		results: []SendResult{{Success: true, Response: "stored"}},
	}
	env.registry.Register(sender)

	alert := testAlert(t, env, "owner-1")
	rule := &entities.AlertRule{
		ID:       "rule-1",
		OwnerID:  "owner-1",
		Type:     entities.RuleTypePrice,
		Channels: entities.StringList{entities.ChannelInApp},
		Priority: entities.PriorityCritical,
	}

	require.NoError(t, d.Dispatch(ctx, alert, rule))
	assert.Equal(t, 1, sender.calls, "critical delivery bypasses the queue")

	items, err := env.notifications.ListNotifications(ctx, repository.NotificationFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entities.NotificationStatusSent, items[0].Status)
}

func TestDispatcher_RateLimiting(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	d := newTestDispatcher(env, RateLimits{MaxPerHour: 2})

	pref := allowAllPref()
	require.NoError(t, env.preferences.Upsert(ctx, pref))

	rule := &entities.AlertRule{
		ID:       "rule-1",
		OwnerID:  "owner-1",
		Type:     entities.RuleTypePrice,
		Channels: entities.StringList{entities.ChannelInApp},
		Priority: entities.PriorityMedium,
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, d.Dispatch(ctx, testAlert(t, env, "owner-1"), rule))
	}

	items, err := env.notifications.ListNotifications(ctx, repository.NotificationFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Len(t, items, 2, "deliveries beyond the hourly budget are dropped")
}

func TestDispatcher_PreferenceLimitOverridesServerDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	d := newTestDispatcher(env, RateLimits{MaxPerHour: 100})

	pref := allowAllPref()
	pref.MaxPerHour = 1
	require.NoError(t, env.preferences.Upsert(ctx, pref))

	rule := &entities.AlertRule{
		ID:       "rule-1",
		OwnerID:  "owner-1",
		Type:     entities.RuleTypePrice,
		Channels: entities.StringList{entities.ChannelInApp},
		Priority: entities.PriorityMedium,
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Dispatch(ctx, testAlert(t, env, "owner-1"), rule))
	}

	items, err := env.notifications.ListNotifications(ctx, repository.NotificationFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
