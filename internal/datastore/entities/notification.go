package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification channels.
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelPush    = "push"
	ChannelWebhook = "webhook"
	ChannelInApp   = "inapp"
)

// Notification statuses.
const (
	NotificationStatusPending   = "pending"
	NotificationStatusQueued    = "queued"
	NotificationStatusSending   = "sending"
	NotificationStatusSent      = "sent"
	NotificationStatusDelivered = "delivered"
	NotificationStatusFailed    = "failed"
	NotificationStatusBounced   = "bounced"
)

// Notification priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// DefaultMaxRetries is the retry budget applied when none is configured.
const DefaultMaxRetries = 3

// PriorityRank maps a priority to its ordering weight, higher first.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Notification is one delivery attempt unit for one channel.
type Notification struct {
	ID      string  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID string  `gorm:"type:uuid;not null;index:idx_notifications_owner_status,priority:1" json:"owner_id"`
	AlertID *string `gorm:"type:uuid;index" json:"alert_id,omitempty"`
	Channel string  `gorm:"size:20;not null" json:"channel"`
	Status  string  `gorm:"size:20;not null;index:idx_notifications_owner_status,priority:2;index:idx_notifications_status_priority,priority:1" json:"status"`

	Subject      string  `gorm:"size:500;default:''" json:"subject"`
	Message      string  `gorm:"size:4000;default:''" json:"message"`
	Template     string  `gorm:"size:100;default:''" json:"template"`
	TemplateData JSONMap `gorm:"type:text" json:"template_data,omitempty"`
	Recipient    string  `gorm:"size:500;not null" json:"recipient"`

	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries  int        `gorm:"not null;default:3" json:"max_retries"`
	NextRetryAt *time.Time `gorm:"index" json:"next_retry_at,omitempty"`
	Priority    string     `gorm:"size:10;not null;default:'medium';index:idx_notifications_status_priority,priority:2" json:"priority"`

	LastError        string `gorm:"size:2000;default:''" json:"last_error,omitempty"`
	ProviderResponse string `gorm:"size:2000;default:''" json:"provider_response,omitempty"`

	// In-app read state, consulted by retention cleanup.
	ReadAt      *time.Time `json:"read_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`

	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns a UUID primary key and default retry budget.
func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.MaxRetries <= 0 {
		n.MaxRetries = DefaultMaxRetries
	}
	return nil
}

// Terminal reports whether no further delivery attempt will be made.
// A failed notification is terminal only once its retry budget is spent.
func (n *Notification) Terminal() bool {
	switch n.Status {
	case NotificationStatusSent, NotificationStatusDelivered, NotificationStatusBounced:
		return true
	case NotificationStatusFailed:
		return n.RetryCount >= n.MaxRetries
	}
	return false
}

// Retryable reports whether a failed notification still has retry budget.
func (n *Notification) Retryable() bool {
	return n.Status == NotificationStatusFailed && n.RetryCount < n.MaxRetries
}
