package repository

import (
	"context"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// AlertRepository handles alert persistence and status transitions.
type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *entities.Alert) error
	GetAlert(ctx context.Context, id string) (*entities.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)

	// UpdateStatus transitions an alert's status. The triggered snapshot
	// (triggered_at, triggered_value) is never touched; reopening a
	// terminal alert or setting triggered directly returns
	// ErrImmutableAlert.
	UpdateStatus(ctx context.Context, id, status string) error

	// Acknowledge marks an alert acknowledged at the given time.
	Acknowledge(ctx context.Context, id string, at time.Time) error

	// AppendReceipt appends a delivery receipt. Receipts are append-only.
	AppendReceipt(ctx context.Context, receipt *entities.DeliveryReceipt) error

	// ExpireDue moves past-expiry non-terminal alerts to expired status
	// and returns the count.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// AlertFilter controls alert listing queries.
type AlertFilter struct {
	OwnerID string
	Status  string
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}
