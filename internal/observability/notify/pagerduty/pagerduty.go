// Package pagerduty triggers PagerDuty incidents for failed transfers.
package pagerduty

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/target/bulkmove/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Endpoint   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client publishes events via the Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	retryLimit int
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client. A routing key is required.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		routingKey: key,
		source:     orDefault(cfg.Source, "bulkmove"),
		component:  orDefault(cfg.Component, "transfer-runner"),
		endpoint:   orDefault(cfg.Endpoint, APIEndpoint),
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// SendTransferFailure submits a trigger event, deduplicated per job.
func (c *Client) SendTransferFailure(ctx context.Context, failure notify.TransferFailure) error {
	event := c.buildEvent(failure)
	return notify.Retry(ctx, c.retryLimit, func() error {
		return notify.PostJSON(ctx, c.client, c.endpoint, "pagerduty api", event)
	})
}

func (c *Client) buildEvent(f notify.TransferFailure) map[string]any {
	occurredAt := f.OccurredAt.UTC()
	if f.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    "transfer:" + orDefault(f.JobID, "unknown"),
		"payload": map[string]any{
			"summary":   "Transfer " + orDefault(f.JobID, "unknown") + " into " + orDefault(f.TargetID, "unknown") + " failed",
			"severity":  orDefault(strings.ToLower(f.Severity), notify.SeverityCritical),
			"source":    c.source,
			"component": c.component,
			"timestamp": occurredAt.Format(time.RFC3339),
			"custom_details": map[string]any{
				"job_id":      f.JobID,
				"mode":        f.Mode,
				"source_id":   f.SourceID,
				"target_id":   f.TargetID,
				"progress":    f.Progress(),
				"error":       f.Error,
				"error_class": f.ErrorClass,
			},
		},
	}
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
