package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelConfig is a per-channel slice of a notification preference.
// Address holds whatever the channel delivers to: an email address, a
// phone number, a webhook URL, or a push device token.
type ChannelConfig struct {
	Enabled  bool   `json:"enabled"`
	Verified bool   `json:"verified"`
	Address  string `json:"address"`
	Secret   string `json:"secret,omitempty"`
}

// NotificationPreference governs delivery gating for one owner.
type NotificationPreference struct {
	ID      string `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID string `gorm:"type:uuid;not null;uniqueIndex" json:"owner_id"`
	Enabled bool   `gorm:"not null;default:true" json:"enabled"`

	// Per-channel sub-configs.
	EmailEnabled  bool   `gorm:"not null;default:true" json:"email_enabled"`
	EmailVerified bool   `gorm:"not null;default:false" json:"email_verified"`
	EmailAddress  string `gorm:"size:320;default:''" json:"email_address"`

	SMSEnabled  bool   `gorm:"not null;default:false" json:"sms_enabled"`
	SMSVerified bool   `gorm:"not null;default:false" json:"sms_verified"`
	PhoneNumber string `gorm:"size:32;default:''" json:"phone_number"`

	PushEnabled bool   `gorm:"not null;default:true" json:"push_enabled"`
	PushToken   string `gorm:"size:500;default:''" json:"push_token"`

	WebhookEnabled bool   `gorm:"not null;default:false" json:"webhook_enabled"`
	WebhookURL     string `gorm:"size:1000;default:''" json:"webhook_url"`
	WebhookSecret  string `gorm:"size:200;default:''" json:"-"`

	InAppEnabled bool `gorm:"not null;default:true" json:"inapp_enabled"`

	// AlertTypeChannels maps an alert type to the channels allowed for it.
	// A missing key allows all channels for that type.
	AlertTypeChannels JSONMap `gorm:"type:text" json:"alert_type_channels,omitempty"`

	// Quiet hours, local to Timezone. "HH:MM" strings; empty disables.
	QuietHoursStart string `gorm:"size:5;default:''" json:"quiet_hours_start"`
	QuietHoursEnd   string `gorm:"size:5;default:''" json:"quiet_hours_end"`
	Timezone        string `gorm:"size:64;default:'UTC'" json:"timezone"`

	// Summary schedule.
	DailySummary  bool `gorm:"not null;default:false" json:"daily_summary"`
	WeeklySummary bool `gorm:"not null;default:false" json:"weekly_summary"`
	SummaryHour   int  `gorm:"not null;default:8" json:"summary_hour"`

	// Rate limits; zero falls back to server defaults.
	MaxPerHour int `gorm:"not null;default:0" json:"max_per_hour"`
	MaxPerDay  int `gorm:"not null;default:0" json:"max_per_day"`

	UnsubscribeToken string     `gorm:"size:64;index;default:''" json:"-"`
	UnsubscribedAt   *time.Time `json:"unsubscribed_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

// BeforeCreate assigns a UUID primary key if unset.
func (p *NotificationPreference) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Channel returns the sub-config for the given channel tag.
func (p *NotificationPreference) Channel(channel string) ChannelConfig {
	switch channel {
	case ChannelEmail:
		return ChannelConfig{Enabled: p.EmailEnabled, Verified: p.EmailVerified, Address: p.EmailAddress}
	case ChannelSMS:
		return ChannelConfig{Enabled: p.SMSEnabled, Verified: p.SMSVerified, Address: p.PhoneNumber}
	case ChannelPush:
		return ChannelConfig{Enabled: p.PushEnabled, Verified: true, Address: p.PushToken}
	case ChannelWebhook:
		return ChannelConfig{Enabled: p.WebhookEnabled, Verified: true, Address: p.WebhookURL, Secret: p.WebhookSecret}
	case ChannelInApp:
		return ChannelConfig{Enabled: p.InAppEnabled, Verified: true, Address: p.OwnerID}
	}
	return ChannelConfig{}
}

// Unsubscribed reports whether the owner has opted out entirely.
func (p *NotificationPreference) Unsubscribed() bool {
	return p.UnsubscribedAt != nil
}

// AllowsType reports whether the given channel is allowed for the alert
// type. An absent allow-list entry allows every channel.
func (p *NotificationPreference) AllowsType(alertType, channel string) bool {
	if len(p.AlertTypeChannels) == 0 {
		return true
	}
	raw, ok := p.AlertTypeChannels[alertType]
	if !ok {
		return true
	}
	allowed, ok := raw.([]any)
	if !ok {
		return true
	}
	for _, c := range allowed {
		if s, ok := c.(string); ok && s == channel {
			return true
		}
	}
	return false
}

// DefaultPreference returns the preference applied to owners who have not
// configured one: in-app only, everything else off until verified.
func DefaultPreference(ownerID string) *NotificationPreference {
	return &NotificationPreference{
		OwnerID:      ownerID,
		Enabled:      true,
		EmailEnabled: true,
		PushEnabled:  true,
		InAppEnabled: true,
		Timezone:     "UTC",
		SummaryHour:  8,
	}
}
