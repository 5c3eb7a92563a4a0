package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/errors"
)

// alertRuleRepository implements AlertRuleRepository.
type alertRuleRepository struct {
	db *gorm.DB
}

// NewAlertRuleRepository creates a new AlertRuleRepository.
func NewAlertRuleRepository(db *gorm.DB) AlertRuleRepository {
	return &alertRuleRepository{db: db}
}

// ListRules returns alert rules matching the given filter.
func (r *alertRuleRepository) ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error) {
	var rules []entities.AlertRule
	query := r.db.WithContext(ctx)

	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}

	if err := query.Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	return rules, nil
}

// GetRule returns a single alert rule by ID.
// Returns ErrAlertRuleNotFound if the rule does not exist.
func (r *alertRuleRepository) GetRule(ctx context.Context, id string) (*entities.AlertRule, error) {
	var rule entities.AlertRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertRuleNotFound
		}
		return nil, fmt.Errorf("failed to get alert rule %s: %w", id, err)
	}
	return &rule, nil
}

// CreateRule validates and creates a new alert rule.
func (r *alertRuleRepository) CreateRule(ctx context.Context, rule *entities.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return errors.New(err).Component("repository").Category(errors.CategoryValidation).Build()
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

// UpdateRule saves owner-editable fields of an existing rule. Trigger
// bookkeeping fields are excluded so a concurrent MarkTriggered is never
// overwritten by a stale in-memory copy.
func (r *alertRuleRepository) UpdateRule(ctx context.Context, rule *entities.AlertRule) error {
	if rule.ID == "" {
		return fmt.Errorf("failed to update alert rule: missing rule ID")
	}
	if err := rule.Validate(); err != nil {
		return errors.New(err).Component("repository").Category(errors.CategoryValidation).Build()
	}
	result := r.db.WithContext(ctx).Model(&entities.AlertRule{}).
		Where("id = ?", rule.ID).
		Select("name", "type", "symbol", "metric", "operator", "threshold",
			"secondary_threshold", "timeframe", "frequency", "enabled",
			"cooldown_minutes", "channels", "priority", "expires_at").
		Updates(rule)
	if result.Error != nil {
		return fmt.Errorf("failed to update alert rule %s: %w", rule.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

// DeleteRule deletes an alert rule.
func (r *alertRuleRepository) DeleteRule(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&entities.AlertRule{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert rule %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

// ToggleRule enables or disables an alert rule.
func (r *alertRuleRepository) ToggleRule(ctx context.Context, id string, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle alert rule %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

// GetEligibleRules returns enabled, unexpired rules of the given type.
func (r *alertRuleRepository) GetEligibleRules(ctx context.Context, ruleType string, now time.Time) ([]entities.AlertRule, error) {
	var rules []entities.AlertRule
	err := r.db.WithContext(ctx).
		Where("type = ? AND enabled = ?", ruleType, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get eligible %s rules: %w", ruleType, err)
	}
	return rules, nil
}

// MarkTriggered performs the compare-and-swap trigger write.
func (r *alertRuleRepository) MarkTriggered(ctx context.Context, id string, prev *time.Time, now time.Time) (bool, error) {
	query := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("id = ?", id)
	if prev == nil {
		query = query.Where("last_triggered IS NULL")
	} else {
		query = query.Where("last_triggered = ?", *prev)
	}
	result := query.Updates(map[string]any{
		"last_triggered": now,
		"trigger_count":  gorm.Expr("trigger_count + 1"),
	})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark rule %s triggered: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
