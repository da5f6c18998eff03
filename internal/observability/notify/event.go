// Package notify delivers transfer failure alerts to external channels.
package notify

import (
	"context"
	"strconv"
	"time"
)

// SeverityCritical is the default severity for failure alerts.
const SeverityCritical = "critical"

// TransferFailure describes a transfer job that ended in the failed state.
type TransferFailure struct {
	JobID      string
	Mode       string
	SourceID   string
	TargetID   string
	Processed  int
	Total      int
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
}

// Progress renders processed/total for message bodies.
func (f TransferFailure) Progress() string {
	return strconv.Itoa(f.Processed) + "/" + strconv.Itoa(f.Total)
}

// Sink consumes transfer failure alerts.
type Sink interface {
	SendTransferFailure(ctx context.Context, failure TransferFailure) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, failure TransferFailure) error

// SendTransferFailure implements Sink.
func (f SinkFunc) SendTransferFailure(ctx context.Context, failure TransferFailure) error {
	if f == nil {
		return nil
	}
	return f(ctx, failure)
}

// Retry calls fn up to limit+1 times with linear backoff between attempts.
func Retry(ctx context.Context, limit int, fn func() error) error {
	attempts := max(limit, 0) + 1
	var lastErr error
	for attempt := range attempts {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
