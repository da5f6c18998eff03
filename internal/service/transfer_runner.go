package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/domain/transfer"
	apperrors "github.com/target/bulkmove/internal/errors"
	obserrors "github.com/target/bulkmove/internal/observability/errors"
	"github.com/target/bulkmove/internal/observability/metrics"
	"github.com/target/bulkmove/internal/observability/notify"
	"github.com/target/bulkmove/internal/observability/statsd"
	"github.com/target/bulkmove/internal/service/failurenotifier"
)

// ErrEmptySubset is recorded when a subset job reaches the runner without company ids.
var ErrEmptySubset = errors.New("company_ids required for subset mode")

// RunnerConfig tunes batch execution.
type RunnerConfig struct {
	BatchSize  int           // Zero selects transfer.DefaultBatchSize; capped at transfer.MaxBatchSize
	BatchDelay time.Duration // Pause between batches; zero disables pacing
}

// TransferRunnerOptions groups dependencies for TransferRunner.
type TransferRunnerOptions struct {
	Ledger   core.TransferLedger      // Required: job ledger
	Members  core.MembershipReader    // Required: candidate lookup for mode=all
	Writer   core.BatchWriter         // Required: batch writer
	Config   RunnerConfig             // Optional: batch size and pacing
	Metrics  statsd.Sink              // Optional: lifecycle metrics
	Notifier *failurenotifier.Service // Optional: failure alerts
	Logger   *slog.Logger             // Optional: structured logger
}

// TransferRunner drives one transfer job from queued to a terminal state.
type TransferRunner struct {
	ledger    core.TransferLedger
	members   core.MembershipReader
	writer    core.BatchWriter
	batchSize int
	delay     time.Duration
	metrics   statsd.Sink
	notifier  *failurenotifier.Service
	logger    *slog.Logger
}

var _ core.JobRunner = (*TransferRunner)(nil)

// NewTransferRunner constructs a TransferRunner.
func NewTransferRunner(opts TransferRunnerOptions) (*TransferRunner, error) {
	switch {
	case opts.Ledger == nil:
		return nil, errors.New("TransferLedger is required")
	case opts.Members == nil:
		return nil, errors.New("MembershipReader is required")
	case opts.Writer == nil:
		return nil, errors.New("BatchWriter is required")
	case opts.Config.BatchDelay < 0:
		return nil, errors.New("BatchDelay must not be negative")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "transfer_runner")

	size := transfer.ResolveBatchSize(opts.Config.BatchSize)
	if size.Clamped {
		logger.Warn("transfer batch size out of range",
			"requested", size.Requested,
			"using", size.Size,
			"max", transfer.MaxBatchSize,
		)
	}
	return &TransferRunner{
		ledger:    opts.Ledger,
		members:   opts.Members,
		writer:    opts.Writer,
		batchSize: size.Size,
		delay:     opts.Config.BatchDelay,
		metrics:   opts.Metrics,
		notifier:  opts.Notifier,
		logger:    logger,
	}, nil
}

// MustNewTransferRunner constructs a TransferRunner and panics on error.
func MustNewTransferRunner(opts TransferRunnerOptions) *TransferRunner {
	r, err := NewTransferRunner(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TransferRunner: %v", err))
	}
	return r
}

// Run executes the job. A job that is no longer queued is left untouched, so redelivery is safe.
// Cancellation is honoured between batches only. A batch failure marks the job failed and is
// returned; terminal ledger writes survive cancellation of ctx.
func (r *TransferRunner) Run(ctx context.Context, jobID string) error {
	job, err := r.ledger.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load transfer job: %w", err)
	}
	if job.Status != model.TransferStatusQueued {
		r.logger.InfoContext(ctx, "skipping transfer job that is not queued",
			"job_id", jobID,
			"status", job.Status,
		)
		return nil
	}
	if job.CancelRequested {
		return r.finish(ctx, job, model.StatusUpdate{Status: model.TransferStatusCancelled}, nil, time.Time{})
	}

	candidates, err := r.candidates(ctx, job)
	if err != nil {
		return r.finish(ctx, job, failedUpdate(err), err, time.Time{})
	}

	if err := r.ledger.MarkRunning(ctx, jobID, len(candidates)); err != nil {
		if apperrors.IsConflict(err) {
			r.logger.InfoContext(ctx, "transfer job claimed elsewhere", "job_id", jobID, "error", err)
			return nil
		}
		return fmt.Errorf("mark transfer running: %w", err)
	}
	started := time.Now()
	job.Total = len(candidates)
	metrics.EmitTransferTransition(r.metrics, metrics.TransitionMetric{
		Mode:   string(job.Mode),
		Status: string(model.TransferStatusRunning),
		Result: metrics.ResultSuccess,
	})
	r.logger.InfoContext(ctx, "transfer started",
		"job_id", jobID,
		"mode", job.Mode,
		"target_collection_id", job.TargetCollectionID,
		"total", job.Total,
		"batch_size", r.batchSize,
	)

	for i, batch := range transfer.Batches(candidates, r.batchSize) {
		if i > 0 && r.delay > 0 {
			if err := sleepCtx(ctx, r.delay); err != nil {
				return r.finish(ctx, job, failedUpdate(err), err, started)
			}
		}
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, job, failedUpdate(err), err, started)
		}

		cancelled, err := r.ledger.CancelRequested(ctx, jobID)
		if err != nil {
			return r.finish(ctx, job, failedUpdate(err), err, started)
		}
		if cancelled {
			return r.finish(ctx, job, model.StatusUpdate{Status: model.TransferStatusCancelled}, nil, started)
		}

		res, err := r.writer.WriteBatch(ctx, job.TargetCollectionID, batch)
		if err != nil {
			return r.finish(ctx, job, failedUpdate(err), err, started)
		}
		processed, err := r.ledger.Advance(ctx, jobID, res.Attempted)
		if err != nil {
			return r.finish(ctx, job, failedUpdate(err), err, started)
		}
		job.Processed = processed
		r.logger.DebugContext(ctx, "transfer batch committed",
			"job_id", jobID,
			"batch", i,
			"attempted", res.Attempted,
			"inserted", res.Inserted,
			"processed", processed,
		)
	}

	return r.finish(ctx, job, model.StatusUpdate{Status: model.TransferStatusCompleted}, nil, started)
}

func (r *TransferRunner) candidates(ctx context.Context, job *model.TransferJob) ([]int64, error) {
	switch job.Mode {
	case model.TransferModeSubset:
		if len(job.CompanyIDs) == 0 {
			return nil, ErrEmptySubset
		}
		return job.CompanyIDs, nil
	case model.TransferModeAll:
		if job.SourceCollectionID == nil || *job.SourceCollectionID == "" {
			return nil, apperrors.ValidationField("sourceCollectionId", "source collection required for mode all")
		}
		ids, err := r.members.MemberIDsOf(ctx, *job.SourceCollectionID)
		if err != nil {
			return nil, apperrors.StoreError(err)
		}
		return ids, nil
	default:
		return nil, apperrors.Validationf("unknown transfer mode %q", job.Mode)
	}
}

// finish records the terminal status. cause is returned to the caller for failed jobs.
func (r *TransferRunner) finish(
	ctx context.Context,
	job *model.TransferJob,
	update model.StatusUpdate,
	cause error,
	started time.Time,
) error {
	wctx := context.WithoutCancel(ctx)
	if err := r.ledger.SetStatus(wctx, job.ID, update); err != nil {
		r.logger.ErrorContext(wctx, "record transfer status failed",
			"job_id", job.ID,
			"status", update.Status,
			"error", err,
		)
		return errors.Join(cause, fmt.Errorf("set transfer status %s: %w", update.Status, err))
	}

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = time.Since(started)
	}
	result := metrics.ResultSuccess
	if update.Status == model.TransferStatusFailed {
		result = metrics.ResultError
	}
	metrics.EmitTransferTransition(r.metrics, metrics.TransitionMetric{
		Mode:     string(job.Mode),
		Status:   string(update.Status),
		Result:   result,
		Duration: elapsed,
		Err:      cause,
	})

	attrs := []any{
		"job_id", job.ID,
		"status", update.Status,
		"processed", job.Processed,
		"total", job.Total,
		"duration", elapsed,
	}
	if update.Status != model.TransferStatusFailed {
		r.logger.InfoContext(wctx, "transfer finished", attrs...)
		return nil
	}

	r.logger.ErrorContext(wctx, "transfer failed", append(attrs, "error", cause)...)
	r.notifier.NotifyTransferFailure(wctx, notify.TransferFailure{
		JobID:      job.ID,
		Mode:       string(job.Mode),
		SourceID:   deref(job.SourceCollectionID),
		TargetID:   job.TargetCollectionID,
		Processed:  job.Processed,
		Total:      job.Total,
		Error:      update.Error,
		ErrorClass: obserrors.Classify(cause),
		OccurredAt: time.Now().UTC(),
	})
	return cause
}

func failedUpdate(err error) model.StatusUpdate {
	return model.StatusUpdate{Status: model.TransferStatusFailed, Error: err.Error()}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
