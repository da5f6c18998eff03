package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/bulkmove/config"
	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	obserrors "github.com/target/bulkmove/internal/observability/errors"
	"github.com/target/bulkmove/internal/observability/metrics"
	"github.com/target/bulkmove/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Ledger     core.TransferLedger // Required: job ledger
	Dispatcher core.Dispatcher     // Optional: re-dispatches stale queued jobs when set
	Config     config.ReaperConfig // Required: reaper configuration
	Logger     *slog.Logger        // Optional: structured logger
	Metrics    statsd.Sink         // Optional: metrics sink (StatsD-compatible)
	Now        func() time.Time    // Optional: clock, defaults to time.Now
}

// ReaperService keeps the transfer ledger healthy.
//
// This service manages:
// - Re-dispatching queued jobs that no runner picked up.
// - Failing running jobs that stopped making progress.
// - Deleting finished jobs past their retention.
type ReaperService struct {
	ledger     core.TransferLedger
	dispatcher core.Dispatcher
	config     config.ReaperConfig
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Ledger == nil {
		return nil, errors.New("TransferLedger is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"queued_max_age", opts.Config.QueuedMaxAge,
			"running_max_age", opts.Config.RunningMaxAge,
			"finished_max_age", opts.Config.FinishedMaxAge,
		)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &ReaperService{
		ledger:     opts.Ledger,
		dispatcher: opts.Dispatcher,
		config:     opts.Config,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps replicas from sweeping in lockstep
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

type cleanupFunc func(context.Context) (int, error)

type cleanupStep struct {
	fn        cleanupFunc
	operation string
	label     string
}

// RunOnce performs one sweep of every cleanup step. Steps run independently; a failing step
// does not stop the others.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := time.Now()
	steps := []cleanupStep{
		{fn: s.redispatchStaleQueued, operation: "redispatch_queued", label: "redispatch stale queued jobs"},
		{fn: s.failStaleRunning, operation: "fail_running", label: "fail stale running jobs"},
		{fn: s.pruneFinished, operation: "prune_finished", label: "prune finished jobs"},
	}

	var (
		errs        []error
		allCanceled = true
		total       int
	)
	for _, step := range steps {
		count, err := step.fn(ctx)
		total += count
		s.emitOperationMetric(step.operation, count, suppressContextCancellation(err))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			allCanceled = allCanceled && isContextCancellation(err)
		}
	}

	var joined error
	if len(errs) > 0 {
		joined = errors.Join(errs...)
	}
	s.emitCleanupMetrics(total, suppressContextCancellation(joined), time.Since(start))

	if joined != nil {
		if allCanceled {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

// staleJobs returns up to BatchSize jobs in status whose last update is older than maxAge,
// least recently updated first.
func (s *ReaperService) staleJobs(
	ctx context.Context,
	status model.TransferStatus,
	maxAge time.Duration,
) ([]*model.TransferJob, error) {
	cutoff := s.now().Add(-maxAge)
	jobs, err := s.ledger.List(ctx, model.TransferListOptions{
		Status:        &status,
		UpdatedBefore: &cutoff,
		Limit:         s.config.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}
	return jobs, nil
}

// redispatchStaleQueued hands queued jobs back to the dispatcher. Queued jobs that were
// already asked to cancel are finished as cancelled instead.
func (s *ReaperService) redispatchStaleQueued(ctx context.Context) (int, error) {
	if s.dispatcher == nil {
		return 0, nil
	}
	jobs, err := s.staleJobs(ctx, model.TransferStatusQueued, s.config.QueuedMaxAge)
	if err != nil {
		return 0, err
	}

	var (
		count int
		errs  []error
	)
	for _, job := range jobs {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		if job.CancelRequested {
			err = s.ledger.SetStatus(ctx, job.ID, model.StatusUpdate{Status: model.TransferStatusCancelled})
		} else {
			err = s.dispatcher.Dispatch(ctx, job.ID)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}
		count++
	}

	if count > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "redispatched stale queued jobs",
			"count", count,
			"max_age", s.config.QueuedMaxAge,
		)
	}
	return count, errors.Join(errs...)
}

// failStaleRunning fails running jobs whose progress has not moved within RunningMaxAge.
// Their runner is assumed lost; committed batches stay committed.
func (s *ReaperService) failStaleRunning(ctx context.Context) (int, error) {
	jobs, err := s.staleJobs(ctx, model.TransferStatusRunning, s.config.RunningMaxAge)
	if err != nil {
		return 0, err
	}

	var (
		count int
		errs  []error
	)
	for _, job := range jobs {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		err := s.ledger.SetStatus(ctx, job.ID, model.StatusUpdate{
			Status: model.TransferStatusFailed,
			Error:  fmt.Sprintf("no progress since %s", job.UpdatedAt.UTC().Format(time.RFC3339)),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}
		count++
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed stale running job",
				"job_id", job.ID,
				"processed", job.Processed,
				"total", job.Total,
				"updated_at", job.UpdatedAt,
			)
		}
	}
	return count, errors.Join(errs...)
}

// pruneFinished deletes terminal jobs older than FinishedMaxAge.
func (s *ReaperService) pruneFinished(ctx context.Context) (int, error) {
	n, err := s.ledger.Prune(ctx, s.now().Add(-s.config.FinishedMaxAge))
	if err != nil {
		return 0, err
	}
	if n > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "pruned finished jobs", "count", n, "max_age", s.config.FinishedMaxAge)
	}
	return n, nil
}

func (s *ReaperService) emitCleanupMetrics(total int, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	tags := map[string]string{"result": resultTag(total, err)}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *ReaperService) emitOperationMetric(operation string, count int, err error) {
	if s.metrics == nil {
		return
	}

	tags := map[string]string{
		"operation": operation,
		"result":    resultTag(count, err),
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("reaper.jobs_processed", int64(count), metrics.CloneTags(tags))
	}
}

func resultTag(count int, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
