// Package failurenotifier fans transfer failure alerts out to every configured sink.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/target/bulkmove/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service dispatches failure alerts to all registered sinks.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService constructs a failure notifier. Nil sinks are skipped.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = "sink"
		}
		sinks = append(sinks, entry)
	}

	return &Service{
		logger: logger.With("component", "failure_notifier"),
		sinks:  sinks,
	}
}

// NotifyTransferFailure sends the alert to every sink concurrently and waits for all of them.
// Delivery errors are logged only.
func (s *Service) NotifyTransferFailure(ctx context.Context, failure notify.TransferFailure) {
	if s == nil || len(s.sinks) == 0 {
		return
	}
	if failure.Severity == "" {
		failure.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendTransferFailure(ctx, failure); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"job_id", failure.JobID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}

// SinkNames lists the registered sinks in registration order.
func (s *Service) SinkNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.sinks))
	for _, entry := range s.sinks {
		names = append(names, entry.Name)
	}
	return names
}
