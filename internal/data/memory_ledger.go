package data

import (
	"context"
	"sync"
	"time"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/domain/transfer"
	apperrors "github.com/target/bulkmove/internal/errors"
)

// MemoryLedger is an in-process TransferLedger. Records are copied on the way in and out.
type MemoryLedger struct {
	mu   sync.RWMutex
	jobs map[string]*model.TransferJob
	tp   TimeProvider
}

var _ core.TransferLedger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty MemoryLedger. A nil TimeProvider uses the system clock.
func NewMemoryLedger(tp TimeProvider) *MemoryLedger {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemoryLedger{jobs: make(map[string]*model.TransferJob), tp: tp}
}

// Create stores a new queued job.
func (l *MemoryLedger) Create(_ context.Context, job *model.TransferJob) error {
	if err := validateNewTransfer(job); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.jobs[job.ID]; ok {
		return apperrors.Conflict("transfer job " + job.ID + " already exists")
	}
	now := l.tp.Now().UTC()
	stored := job.Clone()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	l.jobs[job.ID] = stored
	job.CreatedAt, job.UpdatedAt = now, now
	return nil
}

// Get returns a copy of the job.
func (l *MemoryLedger) Get(_ context.Context, id string) (*model.TransferJob, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	job, ok := l.jobs[id]
	if !ok {
		return nil, transferNotFound(id)
	}
	return job.Clone(), nil
}

// MarkRunning moves a queued job to running and records its total.
func (l *MemoryLedger) MarkRunning(_ context.Context, id string, total int) error {
	if total < 0 {
		return apperrors.Validationf("total must be >= 0, got %d", total)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[id]
	if !ok {
		return transferNotFound(id)
	}
	if !transfer.CanTransition(job.Status, model.TransferStatusRunning) {
		return transitionConflict(id, job.Status, model.TransferStatusRunning)
	}
	now := l.tp.Now().UTC()
	job.Status = model.TransferStatusRunning
	job.Total = total
	job.Processed = 0
	job.StartedAt = &now
	job.UpdatedAt = now
	return nil
}

// Advance adds delta to processed while the job is running.
func (l *MemoryLedger) Advance(_ context.Context, id string, delta int) (int, error) {
	if err := validateAdvance(delta); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[id]
	if !ok {
		return 0, transferNotFound(id)
	}
	if job.Status != model.TransferStatusRunning || job.Processed+delta > job.Total {
		return job.Processed, advanceConflict(job.Clone(), delta)
	}
	job.Processed += delta
	job.UpdatedAt = l.tp.Now().UTC()
	return job.Processed, nil
}

// SetStatus applies a forward status transition.
func (l *MemoryLedger) SetStatus(_ context.Context, id string, update model.StatusUpdate) error {
	if err := validateStatusUpdate(update); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[id]
	if !ok {
		return transferNotFound(id)
	}
	if !transfer.CanTransition(job.Status, update.Status) {
		return transitionConflict(id, job.Status, update.Status)
	}
	now := l.tp.Now().UTC()
	job.Status = update.Status
	if update.Error != "" {
		msg := update.Error
		job.Error = &msg
	}
	if update.Status.Terminal() {
		job.FinishedAt = &now
	}
	job.UpdatedAt = now
	return nil
}

// RequestCancel sets the cancel flag on a non-terminal job.
func (l *MemoryLedger) RequestCancel(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[id]
	if !ok {
		return transferNotFound(id)
	}
	if job.Status.Terminal() || job.CancelRequested {
		return nil
	}
	job.CancelRequested = true
	job.UpdatedAt = l.tp.Now().UTC()
	return nil
}

// CancelRequested reports the cancel flag.
func (l *MemoryLedger) CancelRequested(_ context.Context, id string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	job, ok := l.jobs[id]
	if !ok {
		return false, transferNotFound(id)
	}
	return job.CancelRequested, nil
}

// List returns jobs most recent first, or least recently updated first with a staleness cutoff.
func (l *MemoryLedger) List(_ context.Context, opts model.TransferListOptions) ([]*model.TransferJob, error) {
	limit, offset := normalizeTransferList(opts)

	l.mu.RLock()
	matched := make([]*model.TransferJob, 0, len(l.jobs))
	for _, job := range l.jobs {
		if matchesTransferList(job, opts) {
			matched = append(matched, job.Clone())
		}
	}
	l.mu.RUnlock()

	sortTransferList(matched, opts)
	return pageTransferList(matched, limit, offset), nil
}

// Prune removes terminal jobs that finished before olderThan.
func (l *MemoryLedger) Prune(_ context.Context, olderThan time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, job := range l.jobs {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(olderThan) {
			delete(l.jobs, id)
			n++
		}
	}
	return n, nil
}
