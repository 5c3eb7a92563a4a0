// Package conf loads and holds application settings.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseSettings selects the persistence backend.
type DatabaseSettings struct {
	// Type is "sqlite" or "mysql".
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// RedisSettings configures the durable work queue backend. An empty Addr
// selects the in-process queue.
type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SchedulerSettings holds the evaluation and maintenance cadences.
type SchedulerSettings struct {
	// Per-rule-type evaluation cadences.
	PriceInterval     Duration `mapstructure:"price_interval"`
	PercentInterval   Duration `mapstructure:"percent_interval"`
	PortfolioInterval Duration `mapstructure:"portfolio_interval"`
	VolumeInterval    Duration `mapstructure:"volume_interval"`
	NewsInterval      Duration `mapstructure:"news_interval"`
	PatternInterval   Duration `mapstructure:"pattern_interval"`

	// Delivery maintenance cadences.
	SweepInterval   Duration `mapstructure:"sweep_interval"`
	CleanupInterval Duration `mapstructure:"cleanup_interval"`
}

// EmailSettings configures the SMTP channel sender.
type EmailSettings struct {
	SMTPHost    string `mapstructure:"smtp_host"`
	SMTPPort    int    `mapstructure:"smtp_port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// SMSSettings configures the SMS provider HTTP API.
type SMSSettings struct {
	Provider   string `mapstructure:"provider"`
	APIURL     string `mapstructure:"api_url"`
	APIKey     string `mapstructure:"api_key"`
	FromNumber string `mapstructure:"from_number"`
}

// PushSettings configures the push channel. ServiceURL is a shoutrrr
// service URL template; the notification recipient token is appended
// as the topic/device target.
type PushSettings struct {
	ServiceURL string `mapstructure:"service_url"`
}

// WebhookSettings configures the outbound webhook channel.
type WebhookSettings struct {
	// Secret signs outbound payloads and verifies inbound callbacks.
	Secret  string   `mapstructure:"secret"`
	Timeout Duration `mapstructure:"timeout"`
}

// NotificationSettings holds delivery policy defaults.
type NotificationSettings struct {
	MaxRetries    int `mapstructure:"max_retries"`
	RetentionDays int `mapstructure:"retention_days"`
	// Workers is the number of concurrent queue consumers.
	Workers int `mapstructure:"workers"`
	// Rate-limit defaults applied when a preference has none configured.
	MaxPerHour int `mapstructure:"max_per_hour"`
	MaxPerDay  int `mapstructure:"max_per_day"`
}

// FetcherSettings configures the market value fetcher.
type FetcherSettings struct {
	QuoteURL string   `mapstructure:"quote_url"`
	APIKey   string   `mapstructure:"api_key"`
	CacheTTL Duration `mapstructure:"cache_ttl"`
}

// CallbackSettings configures the inbound webhook callback listener.
type CallbackSettings struct {
	Addr string `mapstructure:"addr"`
}

// Settings is the full application configuration.
type Settings struct {
	LogLevel     string               `mapstructure:"log_level"`
	Database     DatabaseSettings     `mapstructure:"database"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Scheduler    SchedulerSettings    `mapstructure:"scheduler"`
	Email        EmailSettings        `mapstructure:"email"`
	SMS          SMSSettings          `mapstructure:"sms"`
	Push         PushSettings         `mapstructure:"push"`
	Webhook      WebhookSettings      `mapstructure:"webhook"`
	Notification NotificationSettings `mapstructure:"notification"`
	Fetcher      FetcherSettings      `mapstructure:"fetcher"`
	Callback     CallbackSettings     `mapstructure:"callback"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "foliowatch.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("scheduler.price_interval", "1m")
	v.SetDefault("scheduler.percent_interval", "5m")
	v.SetDefault("scheduler.portfolio_interval", "5m")
	v.SetDefault("scheduler.volume_interval", "1m")
	v.SetDefault("scheduler.news_interval", "15m")
	v.SetDefault("scheduler.pattern_interval", "15m")
	v.SetDefault("scheduler.sweep_interval", "1m")
	v.SetDefault("scheduler.cleanup_interval", "24h")
	v.SetDefault("webhook.timeout", "30s")
	v.SetDefault("notification.max_retries", 3)
	v.SetDefault("notification.retention_days", 30)
	v.SetDefault("notification.workers", 4)
	v.SetDefault("notification.max_per_hour", 20)
	v.SetDefault("notification.max_per_day", 100)
	v.SetDefault("fetcher.cache_ttl", "30s")
	v.SetDefault("callback.addr", ":8090")
}

// Load reads settings from the given config file (YAML) plus FOLIOWATCH_*
// environment variables. An empty path loads defaults and environment only.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FOLIOWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &s, nil
}

// Interval returns the evaluation cadence for a rule type, defaulting to
// five minutes for unknown types.
func (s *SchedulerSettings) Interval(ruleType string) time.Duration {
	var d Duration
	switch ruleType {
	case "price":
		d = s.PriceInterval
	case "percentage":
		d = s.PercentInterval
	case "portfolio":
		d = s.PortfolioInterval
	case "volume":
		d = s.VolumeInterval
	case "news":
		d = s.NewsInterval
	case "pattern":
		d = s.PatternInterval
	}
	if d <= 0 {
		return 5 * time.Minute
	}
	return d.Std()
}
