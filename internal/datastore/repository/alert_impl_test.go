package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// createTestAlert persists a triggered alert with a snapshot.
func createTestAlert(t *testing.T, repo AlertRepository, ownerID string) *entities.Alert {
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
	require.NoError(t, repo.CreateAlert(t.Context(), alert))
	return alert
}

func TestAlertRepository_CreateAndGet(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	alert := createTestAlert(t, repo, "owner-1")
	assert.NotEmpty(t, alert.ID)

	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 151.25, got.TriggeredValue)
	assert.Equal(t, entities.OperatorAbove, got.Operator)
	assert.Empty(t, got.Receipts)

	_, err = repo.GetAlert(ctx, "missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAlertRepository_UpdateStatus(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	alert := createTestAlert(t, repo, "owner-1")

	require.NoError(t, repo.UpdateStatus(ctx, alert.ID, entities.AlertStatusCancelled))
	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStatusCancelled, got.Status)

	// A terminal alert cannot be reopened.
	assert.ErrorIs(t, repo.UpdateStatus(ctx, alert.ID, entities.AlertStatusActive), ErrImmutableAlert)

	// Triggered state is only ever written at fire time.
	other := createTestAlert(t, repo, "owner-1")
	assert.ErrorIs(t, repo.UpdateStatus(ctx, other.ID, entities.AlertStatusTriggered), ErrImmutableAlert)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", entities.AlertStatusCancelled), ErrAlertNotFound)
}

func TestAlertRepository_AppendReceipt(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	alert := createTestAlert(t, repo, "owner-1")
	now := time.Now()

	require.NoError(t, repo.AppendReceipt(ctx, &entities.DeliveryReceipt{
		AlertID:        alert.ID,
		Channel:        entities.ChannelEmail,
		NotificationID: "n-1",
		Status:         entities.NotificationStatusSent,
		SentAt:         now,
	}))
	require.NoError(t, repo.AppendReceipt(ctx, &entities.DeliveryReceipt{
		AlertID:        alert.ID,
		Channel:        entities.ChannelWebhook,
		NotificationID: "n-2",
		Status:         entities.NotificationStatusFailed,
		SentAt:         now,
	}))

	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	require.Len(t, got.Receipts, 2)
}

func TestAlertRepository_Acknowledge(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	alert := createTestAlert(t, repo, "owner-1")
	now := time.Now()
	require.NoError(t, repo.Acknowledge(ctx, alert.ID, now))

	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStatusAcknowledged, got.Status)
	assert.True(t, got.Terminal())

	// The triggered snapshot survives the transition.
	assert.Equal(t, 151.25, got.TriggeredValue)
	require.NotNil(t, got.TriggeredAt)

	assert.ErrorIs(t, repo.Acknowledge(ctx, "missing", now), ErrAlertNotFound)
}

func TestAlertRepository_ExpireDue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := t.Context()
	now := time.Now()

	due := createTestAlert(t, repo, "owner-1")
	require.NoError(t, db.Model(&entities.Alert{}).Where("id = ?", due.ID).
		Update("expires_at", now.Add(-time.Minute)).Error)

	notDue := createTestAlert(t, repo, "owner-1")
	require.NoError(t, db.Model(&entities.Alert{}).Where("id = ?", notDue.ID).
		Update("expires_at", now.Add(time.Hour)).Error)

	// Acknowledged alerts are terminal and never expire on top.
	acked := createTestAlert(t, repo, "owner-1")
	require.NoError(t, db.Model(&entities.Alert{}).Where("id = ?", acked.ID).
		Update("expires_at", now.Add(-time.Minute)).Error)
	require.NoError(t, repo.Acknowledge(ctx, acked.ID, now))

	expired, err := repo.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	got, err := repo.GetAlert(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStatusExpired, got.Status)

	got, err = repo.GetAlert(ctx, acked.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStatusAcknowledged, got.Status)
}

func TestAlertRepository_ListFilters(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := t.Context()

	createTestAlert(t, repo, "owner-1")
	createTestAlert(t, repo, "owner-1")
	other := createTestAlert(t, repo, "owner-2")
	require.NoError(t, repo.Acknowledge(ctx, other.ID, time.Now()))

	alerts, err := repo.ListAlerts(ctx, AlertFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)

	alerts, err = repo.ListAlerts(ctx, AlertFilter{Status: entities.AlertStatusAcknowledged})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, other.ID, alerts[0].ID)
}
