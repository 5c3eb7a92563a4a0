package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/errors"
)

// priorityOrderExpr sorts by priority weight, highest first.
const priorityOrderExpr = "CASE priority " +
	"WHEN 'critical' THEN 3 " +
	"WHEN 'high' THEN 2 " +
	"WHEN 'medium' THEN 1 " +
	"ELSE 0 END DESC"

// notificationRepository implements NotificationRepository.
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// CreateNotification persists a new notification.
func (r *notificationRepository) CreateNotification(ctx context.Context, n *entities.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetNotification returns a single notification by ID.
// Returns ErrNotificationNotFound if it does not exist.
func (r *notificationRepository) GetNotification(ctx context.Context, id string) (*entities.Notification, error) {
	var n entities.Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification %s: %w", id, err)
	}
	return &n, nil
}

// ListNotifications returns notifications matching the filter, newest first.
func (r *notificationRepository) ListNotifications(ctx context.Context, filter NotificationFilter) ([]entities.Notification, error) {
	var items []entities.Notification
	query := r.db.WithContext(ctx)

	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.AlertID != "" {
		query = query.Where("alert_id = ?", filter.AlertID)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
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

	if err := query.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, nil
}

// DeleteNotification removes a notification.
func (r *notificationRepository) DeleteNotification(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&entities.Notification{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ClaimForSending atomically transitions pending/queued → sending.
func (r *notificationRepository) ClaimForSending(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).
		Where("id = ? AND status IN ?", id, []string{
			entities.NotificationStatusPending,
			entities.NotificationStatusQueued,
		}).
		Update("status", entities.NotificationStatusSending)
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim notification %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkSent records a successful send and clears any scheduled retry.
func (r *notificationRepository) MarkSent(ctx context.Context, id, providerResponse string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("id = ?", id).Updates(map[string]any{
		"status":            entities.NotificationStatusSent,
		"provider_response": providerResponse,
		"sent_at":           at,
		"next_retry_at":     nil,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %s sent: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkFailed records a failed attempt. retry_count is incremented here so
// the backoff for the next attempt derives from the number of failures
// already spent.
func (r *notificationRepository) MarkFailed(ctx context.Context, id, reason string) error {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("id = ?", id).Updates(map[string]any{
		"status":      entities.NotificationStatusFailed,
		"last_error":  reason,
		"retry_count": gorm.Expr("retry_count + 1"),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %s failed: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkFailedTerminal records an unretryable failure. Setting retry_count
// to max_retries makes the record terminal regardless of how many
// attempts were actually spent.
func (r *notificationRepository) MarkFailedTerminal(ctx context.Context, id, reason string) error {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("id = ?", id).Updates(map[string]any{
		"status":        entities.NotificationStatusFailed,
		"last_error":    reason,
		"retry_count":   gorm.Expr("max_retries"),
		"next_retry_at": nil,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %s terminally failed: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkDelivered records a provider delivery confirmation.
func (r *notificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).
		Where("id = ? AND status = ?", id, entities.NotificationStatusSent).
		Updates(map[string]any{
			"status":  entities.NotificationStatusDelivered,
			"sent_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %s delivered: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkBounced records a provider bounce. Bounced is terminal.
func (r *notificationRepository) MarkBounced(ctx context.Context, id, reason string) error {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("id = ?", id).Updates(map[string]any{
		"status":        entities.NotificationStatusBounced,
		"last_error":    reason,
		"next_retry_at": nil,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %s bounced: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// RequeueForRetry re-arms a failed notification that still has budget.
func (r *notificationRepository) RequeueForRetry(ctx context.Context, id string, nextRetryAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).
		Where("id = ? AND status = ? AND retry_count < max_retries", id, entities.NotificationStatusFailed).
		Updates(map[string]any{
			"status":        entities.NotificationStatusPending,
			"next_retry_at": nextRetryAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to requeue notification %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DuePending returns pending notifications ready for processing.
func (r *notificationRepository) DuePending(ctx context.Context, now time.Time, limit int) ([]entities.Notification, error) {
	var items []entities.Notification
	query := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			entities.NotificationStatusPending,
			entities.NotificationStatusQueued,
		}).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Order(priorityOrderExpr).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to select due notifications: %w", err)
	}
	return items, nil
}

// MarkRead records the in-app read timestamp.
func (r *notificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("id = ?", id).Update("read_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkDismissed records the in-app dismissal timestamp.
func (r *notificationRepository) MarkDismissed(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("id = ?", id).Update("dismissed_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %s dismissed: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// CountForOwnerSince counts notifications created for an owner since the
// given time.
func (r *notificationRepository) CountForOwnerSince(ctx context.Context, ownerID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Notification{}).
		Where("owner_id = ? AND created_at >= ?", ownerID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications for owner %s: %w", ownerID, err)
	}
	return count, nil
}

// DeleteTerminalBefore prunes old terminal notifications. In-app records
// survive until read or dismissed; other channels have no read state.
func (r *notificationRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Where("status IN ? OR (status = ? AND retry_count >= max_retries)",
			[]string{
				entities.NotificationStatusSent,
				entities.NotificationStatusDelivered,
				entities.NotificationStatusBounced,
			},
			entities.NotificationStatusFailed,
		).
		Where("channel <> ? OR read_at IS NOT NULL OR dismissed_at IS NOT NULL", entities.ChannelInApp).
		Delete(&entities.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
