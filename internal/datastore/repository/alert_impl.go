package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/errors"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// CreateAlert persists a new alert with its receipts.
func (r *alertRepository) CreateAlert(ctx context.Context, alert *entities.Alert) error {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetAlert returns a single alert with its delivery receipts.
// Returns ErrAlertNotFound if the alert does not exist.
func (r *alertRepository) GetAlert(ctx context.Context, id string) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).Preload("Receipts").First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return &alert, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func (r *alertRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	var alerts []entities.Alert
	query := r.db.WithContext(ctx).Preload("Receipts")

	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at < ?", filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// UpdateStatus transitions an alert's status without touching the
// triggered snapshot. Terminal alerts cannot be reopened and triggered
// status exists only as the snapshot written at fire time, so both
// transitions return ErrImmutableAlert.
func (r *alertRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if status == entities.AlertStatusTriggered {
		return ErrImmutableAlert
	}
	result := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ?", id).
		Where("status NOT IN ?", []string{
			entities.AlertStatusAcknowledged,
			entities.AlertStatusExpired,
			entities.AlertStatusCancelled,
		}).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update alert %s status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&entities.Alert{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to update alert %s status: %w", id, err)
		}
		if count > 0 {
			return ErrImmutableAlert
		}
		return ErrAlertNotFound
	}
	return nil
}

// Acknowledge marks an alert acknowledged at the given time.
func (r *alertRepository) Acknowledge(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.Alert{}).Where("id = ?", id).Updates(map[string]any{
		"status":          entities.AlertStatusAcknowledged,
		"acknowledged_at": at,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// AppendReceipt appends a delivery receipt row.
func (r *alertRepository) AppendReceipt(ctx context.Context, receipt *entities.DeliveryReceipt) error {
	if err := r.db.WithContext(ctx).Create(receipt).Error; err != nil {
		return fmt.Errorf("failed to append delivery receipt for alert %s: %w", receipt.AlertID, err)
	}
	return nil
}

// ExpireDue expires past-expiry alerts that are still active or triggered.
func (r *alertRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Where("status IN ?", []string{entities.AlertStatusActive, entities.AlertStatusTriggered}).
		Update("status", entities.AlertStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
