package config

import (
	"log/slog"
	"strings"
	"time"
)

const defaultObservabilityName = "bulkmove"

// ObservabilityConfig groups configuration that controls metrics and failure notifications.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig
	Notifications NotificationsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to StatsD.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"bulkmove"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), ".")
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// NotificationsConfig controls alerts for failed transfers. A sink is active when its
// destination is set.
type NotificationsConfig struct {
	Timeout    time.Duration               `env:"NOTIFY_TIMEOUT"     envDefault:"5s"`
	RetryLimit int                         `env:"NOTIFY_RETRY_LIMIT" envDefault:"2"`
	Slack      SlackNotificationConfig     `                                         envPrefix:"NOTIFY_SLACK_"`
	PagerDuty  PagerDutyNotificationConfig `                                         envPrefix:"NOTIFY_PAGERDUTY_"`
}

// Sanitize normalises notification configuration values.
func (c *NotificationsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	c.Slack.sanitize()
	c.PagerDuty.sanitize()
}

// SlackNotificationConfig controls Slack webhook fan-out.
type SlackNotificationConfig struct {
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"bulkmove"`
}

// Enabled reports whether a webhook is configured.
func (c *SlackNotificationConfig) Enabled() bool { return c.WebhookURL != "" }

func (c *SlackNotificationConfig) sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	if c.Username = strings.TrimSpace(c.Username); c.Username == "" {
		c.Username = defaultObservabilityName
	}
}

// PagerDutyNotificationConfig controls PagerDuty Events API v2 fan-out.
type PagerDutyNotificationConfig struct {
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"bulkmove"`
	Component  string `env:"COMPONENT"   envDefault:"transfer-runner"`
}

// Enabled reports whether a routing key is configured.
func (c *PagerDutyNotificationConfig) Enabled() bool { return c.RoutingKey != "" }

func (c *PagerDutyNotificationConfig) sanitize() {
	c.RoutingKey = strings.TrimSpace(c.RoutingKey)
	if c.Source = strings.TrimSpace(c.Source); c.Source == "" {
		c.Source = defaultObservabilityName
	}
	if c.Component = strings.TrimSpace(c.Component); c.Component == "" {
		c.Component = "transfer-runner"
	}
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// File, when set, receives a copy of every record as JSON lines.
	File string `env:"LOG_FILE"`
}

// Sanitize normalises the level name.
func (c *LoggingConfig) Sanitize() {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	c.File = strings.TrimSpace(c.File)
}

// SlogLevel returns the slog level for Level, defaulting to info.
func (c *LoggingConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
