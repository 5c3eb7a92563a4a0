package repository

import (
	"context"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// AlertRuleRepository handles alert rule CRUD and trigger bookkeeping.
type AlertRuleRepository interface {
	// Rule CRUD
	ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error)
	GetRule(ctx context.Context, id string) (*entities.AlertRule, error)
	CreateRule(ctx context.Context, rule *entities.AlertRule) error
	UpdateRule(ctx context.Context, rule *entities.AlertRule) error
	DeleteRule(ctx context.Context, id string) error
	ToggleRule(ctx context.Context, id string, enabled bool) error

	// GetEligibleRules returns enabled, unexpired rules of the given type.
	// Cooldown and frequency gating happens in memory via CanTriggerAt;
	// this query only prunes what the database can cheaply exclude.
	GetEligibleRules(ctx context.Context, ruleType string, now time.Time) ([]entities.AlertRule, error)

	// MarkTriggered records a firing with a compare-and-swap on
	// last_triggered: the update applies only if the stored value still
	// equals prev. Returns false when a concurrent evaluation won the
	// race, in which case the caller must not produce an alert.
	MarkTriggered(ctx context.Context, id string, prev *time.Time, now time.Time) (bool, error)
}

// AlertRuleFilter controls rule listing queries.
type AlertRuleFilter struct {
	OwnerID string
	Type    string
	Enabled *bool
}
