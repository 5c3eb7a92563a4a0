package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Alert statuses.
const (
	AlertStatusActive       = "active"
	AlertStatusTriggered    = "triggered"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusExpired      = "expired"
	AlertStatusCancelled    = "cancelled"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert records one firing of a rule, or a manually submitted equivalent.
// Once triggered, TriggeredAt and TriggeredValue are immutable; delivery
// receipts only ever append.
type Alert struct {
	ID      string  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID string  `gorm:"type:uuid;not null;index:idx_alerts_owner_status,priority:1" json:"owner_id"`
	RuleID  *string `gorm:"type:uuid;index" json:"rule_id,omitempty"`
	Type    string  `gorm:"size:20;not null" json:"type"`
	Status  string  `gorm:"size:20;not null;index:idx_alerts_owner_status,priority:2" json:"status"`

	// Snapshot of the firing condition.
	TriggeredValue float64    `json:"triggered_value"`
	Threshold      float64    `json:"threshold"`
	Operator       string     `gorm:"size:20;default:''" json:"operator"`
	Symbol         string     `gorm:"size:50;default:''" json:"symbol"`
	TriggeredAt    *time.Time `json:"triggered_at,omitempty"`

	Message  string `gorm:"size:2000;default:''" json:"message"`
	Severity string `gorm:"size:10;not null;default:'info'" json:"severity"`

	Receipts []DeliveryReceipt `gorm:"foreignKey:AlertID;constraint:OnDelete:CASCADE" json:"receipts"`

	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

// BeforeCreate assigns a UUID primary key if unset.
func (a *Alert) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Terminal reports whether the alert has reached a final status.
func (a *Alert) Terminal() bool {
	switch a.Status {
	case AlertStatusAcknowledged, AlertStatusExpired, AlertStatusCancelled:
		return true
	}
	return false
}

// DeliveryReceipt is one append-only record of a channel delivery outcome
// for an alert.
type DeliveryReceipt struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AlertID        string    `gorm:"type:uuid;not null;index" json:"alert_id"`
	Channel        string    `gorm:"size:20;not null" json:"channel"`
	NotificationID string    `gorm:"type:uuid;not null" json:"notification_id"`
	Status         string    `gorm:"size:20;not null" json:"status"`
	SentAt         time.Time `gorm:"not null" json:"sent_at"`
}

// TableName returns the table name for GORM.
func (DeliveryReceipt) TableName() string {
	return "alert_delivery_receipts"
}
