package data

import (
	"errors"
	"sort"

	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/domain/transfer"
	apperrors "github.com/target/bulkmove/internal/errors"
)

// Ledger sentinels shared by every TransferLedger backend. They are wrapped in conflict AppErrors.
var (
	// ErrTransferNotRunning is returned when progress is recorded for a job that is not running.
	ErrTransferNotRunning = errors.New("transfer job is not running")
	// ErrProgressOverflow is returned when an advance would push processed past total.
	ErrProgressOverflow = errors.New("progress would exceed total")
)

func transferNotFound(id string) error {
	return apperrors.NotFoundf("transfer job %s not found", id)
}

func transitionConflict(id string, from, to model.TransferStatus) error {
	return apperrors.Wrapf(&transfer.TransitionError{From: from, To: to}, apperrors.ErrCodeConflict, "transfer job %s", id)
}

// advanceConflict explains why an advance on an existing job was rejected.
func advanceConflict(job *model.TransferJob, delta int) error {
	if job.Status != model.TransferStatusRunning {
		return apperrors.Wrapf(ErrTransferNotRunning, apperrors.ErrCodeConflict,
			"transfer job %s is %s", job.ID, job.Status)
	}
	return apperrors.Wrapf(ErrProgressOverflow, apperrors.ErrCodeConflict,
		"transfer job %s: %d + %d exceeds total %d", job.ID, job.Processed, delta, job.Total)
}

func validateAdvance(delta int) error {
	if delta < 0 {
		return apperrors.Validationf("advance delta must be >= 0, got %d", delta)
	}
	return nil
}

func validateStatusUpdate(update model.StatusUpdate) error {
	if !update.Status.Valid() {
		return apperrors.Validationf("invalid transfer status %q", update.Status)
	}
	return nil
}

func validateNewTransfer(job *model.TransferJob) error {
	switch {
	case job == nil:
		return apperrors.Validation("transfer job is required")
	case job.ID == "":
		return apperrors.ValidationField("id", "transfer job id is required")
	case job.Status != model.TransferStatusQueued:
		return apperrors.ValidationField("status", "new transfer jobs must be queued")
	case job.Total < 0 || job.Processed != 0:
		return apperrors.Validation("new transfer jobs start with processed 0 and a non-negative total")
	}
	return nil
}

// matchesTransferList applies the status and staleness filters of opts to job.
func matchesTransferList(job *model.TransferJob, opts model.TransferListOptions) bool {
	if opts.Status != nil && job.Status != *opts.Status {
		return false
	}
	return opts.UpdatedBefore == nil || job.UpdatedAt.Before(*opts.UpdatedBefore)
}

// sortTransferList orders jobs the way List returns them for opts.
func sortTransferList(jobs []*model.TransferJob, opts model.TransferListOptions) {
	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if opts.UpdatedBefore != nil {
			if a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.ID < b.ID
			}
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// pageTransferList returns the [offset, offset+limit) window of sorted jobs.
func pageTransferList(jobs []*model.TransferJob, limit, offset int) []*model.TransferJob {
	if offset >= len(jobs) {
		return []*model.TransferJob{}
	}
	return jobs[offset:min(offset+limit, len(jobs))]
}

func normalizeTransferList(opts model.TransferListOptions) (int, int) {
	limit, offset := opts.Limit, opts.Offset
	if limit <= 0 {
		limit = model.DefaultTransferListLimit
	}
	if limit > model.MaxTransferListLimit {
		limit = model.MaxTransferListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
