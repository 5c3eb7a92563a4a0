package notification

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
	"github.com/foliowatch/foliowatch-go/internal/logger"
	"github.com/foliowatch/foliowatch-go/internal/observability"
	"github.com/foliowatch/foliowatch-go/internal/queue"
)

// testEnv wires a processor and dispatcher over an in-memory database.
type testEnv struct {
	db            *gorm.DB
	notifications repository.NotificationRepository
	alerts        repository.AlertRepository
	preferences   repository.PreferenceRepository
	registry      *Registry
	jobs          *queue.MemoryQueue
	processor     *Processor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.AlertRule{},
		&entities.Alert{},
		&entities.DeliveryReceipt{},
		&entities.Notification{},
		&entities.NotificationPreference{},
	))

	env := &testEnv{
		db:            db,
		notifications: repository.NewNotificationRepository(db),
		alerts:        repository.NewAlertRepository(db),
		preferences:   repository.NewPreferenceRepository(db),
		registry:      NewRegistry(),
		jobs:          queue.NewMemoryQueue(),
	}
	env.processor = NewProcessor(
		env.notifications, env.alerts, env.registry, env.jobs,
		observability.NewUnregistered(), testLogger(),
	)
	return env
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

// fakeSender scripts per-call results and records what it was asked to
// send.
type fakeSender struct {
	channel string
	results []SendResult
	calls   int
	sent    []*entities.Notification
}

func (f *fakeSender) Channel() string { return f.channel }

func (f *fakeSender) Send(_ context.Context, n *entities.Notification) SendResult {
	f.sent = append(f.sent, n)
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx]
}

// createQueuedNotification persists a queued notification linked to a
// fresh alert.
func (env *testEnv) createQueuedNotification(t *testing.T, channel string, maxRetries int) *entities.Notification {
	t.Helper()
	alert := &entities.Alert{
		OwnerID:  "owner-1",
		Type:     entities.RuleTypePrice,
		Status:   entities.AlertStatusTriggered,
		Symbol:   "AAPL",
		Message:  "AAPL rose above 150.00",
		Severity: entities.SeverityInfo,
	}
	require.NoError(t, env.alerts.CreateAlert(t.Context(), alert))

	n := &entities.Notification{
		OwnerID:    "owner-1",
		AlertID:    &alert.ID,
		Channel:    channel,
		Status:     entities.NotificationStatusQueued,
		Subject:    "Alert: AAPL",
		Message:    "AAPL rose above 150.00",
		Recipient:  "owner@example.com",
		MaxRetries: maxRetries,
		Priority:   entities.PriorityMedium,
	}
	require.NoError(t, env.notifications.CreateNotification(t.Context(), n))
	return n
}
