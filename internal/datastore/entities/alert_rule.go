package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rule types define what kind of value a rule watches.
const (
	RuleTypePrice      = "price"
	RuleTypePercentage = "percentage"
	RuleTypePortfolio  = "portfolio"
	RuleTypeVolume     = "volume"
	RuleTypeNews       = "news"
	RuleTypePattern    = "pattern"
	RuleTypeCustom     = "custom"
)

// Condition operators define how the current value is compared to the
// rule's threshold.
const (
	OperatorAbove    = "above"
	OperatorBelow    = "below"
	OperatorEquals   = "equals"
	OperatorChange   = "change"
	OperatorIncrease = "increase"
	OperatorDecrease = "decrease"
	OperatorBetween  = "between"
)

// Trigger frequencies limit how often a rule may fire.
const (
	FrequencyOnce   = "once"
	FrequencyDaily  = "daily"
	FrequencyAlways = "always"
)

// AlertRule is a user-owned, persistent trigger definition. The pipeline
// mutates only LastTriggered and TriggerCount; everything else belongs to
// the owner.
type AlertRule struct {
	ID      string `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID string `gorm:"type:uuid;not null;index:idx_alert_rules_owner_enabled,priority:1" json:"owner_id"`
	Name    string `gorm:"size:255;not null" json:"name"`
	Type    string `gorm:"size:20;not null;index" json:"type"`

	// Condition fields.
	Symbol             string   `gorm:"size:50;default:''" json:"symbol"`
	Metric             string   `gorm:"size:100;default:''" json:"metric"`
	Operator           string   `gorm:"size:20;not null" json:"operator"`
	Threshold          float64  `gorm:"not null" json:"threshold"`
	SecondaryThreshold *float64 `json:"secondary_threshold,omitempty"`
	Timeframe          string   `gorm:"size:20;default:''" json:"timeframe"`
	Frequency          string   `gorm:"size:10;not null;default:'always'" json:"frequency"`

	Enabled         bool       `gorm:"not null;index:idx_alert_rules_owner_enabled,priority:2" json:"enabled"`
	LastTriggered   *time.Time `json:"last_triggered,omitempty"`
	TriggerCount    int        `gorm:"not null;default:0" json:"trigger_count"`
	CooldownMinutes int        `gorm:"not null;default:0" json:"cooldown_minutes"`
	Channels        StringList `gorm:"type:text" json:"channels"`
	Priority        string     `gorm:"size:10;not null;default:'medium'" json:"priority"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}

// BeforeCreate assigns a UUID primary key if unset.
func (r *AlertRule) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Subject returns the symbol or metric the rule watches.
func (r *AlertRule) Subject() string {
	if r.Symbol != "" {
		return r.Symbol
	}
	return r.Metric
}

// Validate checks structural invariants before the rule is persisted.
func (r *AlertRule) Validate() error {
	if r.Operator == OperatorBetween {
		if r.SecondaryThreshold == nil {
			return fmt.Errorf("operator %q requires a secondary threshold", OperatorBetween)
		}
		if r.Threshold > *r.SecondaryThreshold {
			return fmt.Errorf("threshold %.4f exceeds secondary threshold %.4f", r.Threshold, *r.SecondaryThreshold)
		}
	}
	switch r.Frequency {
	case FrequencyOnce, FrequencyDaily, FrequencyAlways:
	default:
		return fmt.Errorf("unknown frequency %q", r.Frequency)
	}
	return nil
}

// CanTriggerAt reports whether the rule is eligible to fire at the given
// instant. It checks, in order: enabled flag, expiry, cooldown window,
// once-frequency lifetime cap, and the daily-frequency calendar gate.
//
// The daily gate compares local calendar dates rather than elapsed hours:
// a daily rule that fired at 23:50 is eligible again at 00:00, so it fires
// at most once per calendar day regardless of when it last fired.
func (r *AlertRule) CanTriggerAt(now time.Time) bool {
	if !r.Enabled {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	if r.LastTriggered != nil && r.CooldownMinutes > 0 {
		cooldown := time.Duration(r.CooldownMinutes) * time.Minute
		if now.Sub(*r.LastTriggered) < cooldown {
			return false
		}
	}
	switch r.Frequency {
	case FrequencyOnce:
		if r.TriggerCount > 0 {
			return false
		}
	case FrequencyDaily:
		if r.LastTriggered != nil {
			last := r.LastTriggered.In(now.Location())
			ly, lm, ld := last.Date()
			ny, nm, nd := now.Date()
			if ly == ny && lm == nm && ld == nd {
				return false
			}
		}
	}
	return true
}
