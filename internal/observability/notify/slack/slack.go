// Package slack posts transfer failure alerts to a Slack incoming webhook.
package slack

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/target/bulkmove/internal/observability/notify"
)

// Config captures the Slack webhook settings.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers transfer failure alerts to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	retryLimit int
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "bulkmove"
	}
	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   username,
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// SendTransferFailure posts a formatted message to Slack.
func (c *Client) SendTransferFailure(ctx context.Context, failure notify.TransferFailure) error {
	msg := c.formatMessage(failure)
	return notify.Retry(ctx, c.retryLimit, func() error {
		return notify.PostJSON(ctx, c.client, c.webhookURL, "slack webhook", msg)
	})
}

func (c *Client) formatMessage(f notify.TransferFailure) map[string]any {
	var text strings.Builder
	text.WriteString("*Transfer failed*")
	if f.JobID != "" {
		text.WriteString(" `" + f.JobID + "`")
	}
	if f.Mode != "" {
		text.WriteString(" (" + f.Mode + ")")
	}
	text.WriteByte('\n')

	severity := f.Severity
	if severity == "" {
		severity = notify.SeverityCritical
	}
	for _, field := range [][2]string{
		{"Severity", severity},
		{"Source", f.SourceID},
		{"Target", f.TargetID},
		{"Progress", f.Progress()},
		{"Error class", f.ErrorClass},
		{"Error", escape(f.Error)},
	} {
		if strings.TrimSpace(field[1]) == "" {
			continue
		}
		text.WriteString("• " + field[0] + ": " + field[1] + "\n")
	}

	ts := f.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	text.WriteString("• Timestamp: " + ts.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
