package data

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/domain/transfer"
	apperrors "github.com/target/bulkmove/internal/errors"
)

// runLedgerContract exercises the behaviour every TransferLedger backend must share.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) core.TransferLedger) {
	t.Helper()

	newJob := func(total int, ids ...int64) *model.TransferJob {
		src := uuid.NewString()
		job := &model.TransferJob{
			ID:                 uuid.NewString(),
			SourceCollectionID: &src,
			TargetCollectionID: uuid.NewString(),
			Mode:               model.TransferModeAll,
			Total:              total,
			Status:             model.TransferStatusQueued,
		}
		if len(ids) > 0 {
			job.Mode = model.TransferModeSubset
			job.SourceCollectionID = nil
			job.CompanyIDs = ids
		}
		return job
	}

	t.Run("create and get round trip", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		job := newJob(3, 7, 8, 9)
		require.NoError(t, ledger.Create(ctx, job))
		assert.False(t, job.CreatedAt.IsZero())

		got, err := ledger.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Nil(t, got.SourceCollectionID)
		assert.Equal(t, job.TargetCollectionID, got.TargetCollectionID)
		assert.Equal(t, model.TransferModeSubset, got.Mode)
		assert.Equal(t, []int64{7, 8, 9}, got.CompanyIDs)
		assert.Equal(t, 3, got.Total)
		assert.Equal(t, 0, got.Processed)
		assert.Equal(t, model.TransferStatusQueued, got.Status)
		assert.Nil(t, got.Error)
		assert.Nil(t, got.StartedAt)

		got.Processed = 99
		again, err := ledger.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, again.Processed, "returned records must be copies")
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		job := newJob(1)
		require.NoError(t, ledger.Create(ctx, job))
		assert.True(t, apperrors.IsConflict(ledger.Create(ctx, job)))
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		id := uuid.NewString()

		_, err := ledger.Get(ctx, id)
		assert.True(t, apperrors.IsNotFound(err))
		assert.True(t, apperrors.IsNotFound(ledger.RequestCancel(ctx, id)))
		_, err = ledger.CancelRequested(ctx, id)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = ledger.Advance(ctx, id, 1)
		assert.True(t, apperrors.IsNotFound(err))
		assert.True(t, apperrors.IsNotFound(ledger.MarkRunning(ctx, id, 1)))
		assert.True(t, apperrors.IsNotFound(ledger.SetStatus(ctx, id,
			model.StatusUpdate{Status: model.TransferStatusFailed})))
	})

	t.Run("running job advances up to total then completes", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		job := newJob(1)
		require.NoError(t, ledger.Create(ctx, job))

		// Queued jobs do not accept progress.
		_, err := ledger.Advance(ctx, job.ID, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTransferNotRunning))

		// The runner's total replaces the launcher's estimate.
		require.NoError(t, ledger.MarkRunning(ctx, job.ID, 5))
		got, err := ledger.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TransferStatusRunning, got.Status)
		assert.Equal(t, 5, got.Total)
		assert.NotNil(t, got.StartedAt)

		n, err := ledger.Advance(ctx, job.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = ledger.Advance(ctx, job.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		n, err = ledger.Advance(ctx, job.ID, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProgressOverflow))
		assert.True(t, apperrors.IsConflict(err))
		assert.Equal(t, 5, n)

		require.NoError(t, ledger.SetStatus(ctx, job.ID, model.StatusUpdate{Status: model.TransferStatusCompleted}))
		got, err = ledger.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TransferStatusCompleted, got.Status)
		assert.Equal(t, 5, got.Processed)
		assert.NotNil(t, got.FinishedAt)

		_, err = ledger.Advance(ctx, job.ID, 0)
		assert.True(t, errors.Is(err, ErrTransferNotRunning))
	})

	t.Run("terminal states are final", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		job := newJob(2)
		require.NoError(t, ledger.Create(ctx, job))
		require.NoError(t, ledger.MarkRunning(ctx, job.ID, 2))
		require.NoError(t, ledger.SetStatus(ctx, job.ID, model.StatusUpdate{
			Status: model.TransferStatusFailed,
			Error:  "membership store error: boom",
		}))

		err := ledger.SetStatus(ctx, job.ID, model.StatusUpdate{Status: model.TransferStatusCompleted})
		var te *transfer.TransitionError
		require.True(t, errors.As(err, &te), "got %v", err)
		assert.Equal(t, model.TransferStatusFailed, te.From)
		assert.True(t, apperrors.IsConflict(err))

		assert.Error(t, ledger.MarkRunning(ctx, job.ID, 2))

		got, err := ledger.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TransferStatusFailed, got.Status)
		require.NotNil(t, got.Error)
		assert.Equal(t, "membership store error: boom", *got.Error)
	})

	t.Run("mark running only from queued", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		job := newJob(0)
		require.NoError(t, ledger.Create(ctx, job))
		require.NoError(t, ledger.MarkRunning(ctx, job.ID, 0))
		assert.True(t, apperrors.IsConflict(ledger.MarkRunning(ctx, job.ID, 0)))
	})

	t.Run("cancel is idempotent and ignored on terminal jobs", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		job := newJob(4)
		require.NoError(t, ledger.Create(ctx, job))

		requested, err := ledger.CancelRequested(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, requested)

		require.NoError(t, ledger.RequestCancel(ctx, job.ID))
		require.NoError(t, ledger.RequestCancel(ctx, job.ID))
		requested, err = ledger.CancelRequested(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, requested)

		require.NoError(t, ledger.SetStatus(ctx, job.ID, model.StatusUpdate{Status: model.TransferStatusCancelled}))

		done := newJob(1)
		require.NoError(t, ledger.Create(ctx, done))
		require.NoError(t, ledger.MarkRunning(ctx, done.ID, 1))
		_, err = ledger.Advance(ctx, done.ID, 1)
		require.NoError(t, err)
		require.NoError(t, ledger.SetStatus(ctx, done.ID, model.StatusUpdate{Status: model.TransferStatusCompleted}))
		require.NoError(t, ledger.RequestCancel(ctx, done.ID))
		requested, err = ledger.CancelRequested(ctx, done.ID)
		require.NoError(t, err)
		assert.False(t, requested)
	})

	t.Run("concurrent advances are not lost", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		job := newJob(100)
		require.NoError(t, ledger.Create(ctx, job))
		require.NoError(t, ledger.MarkRunning(ctx, job.ID, 100))

		var wg sync.WaitGroup
		errs := make(chan error, 100)
		for w := 0; w < 20; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 5; i++ {
					if _, err := ledger.Advance(ctx, job.ID, 1); err != nil {
						errs <- err
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("advance: %v", err)
		}

		got, err := ledger.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Processed)
	})

	t.Run("list newest first with status filter", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		var ids []string
		for i := 0; i < 3; i++ {
			job := newJob(1)
			require.NoError(t, ledger.Create(ctx, job))
			ids = append(ids, job.ID)
			time.Sleep(5 * time.Millisecond)
		}
		require.NoError(t, ledger.MarkRunning(ctx, ids[1], 1))

		all, err := ledger.List(ctx, model.TransferListOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

		running := model.TransferStatusRunning
		filtered, err := ledger.List(ctx, model.TransferListOptions{Status: &running})
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, ids[1], filtered[0].ID)

		page, err := ledger.List(ctx, model.TransferListOptions{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, ids[1], page[0].ID)
	})

	t.Run("staleness cutoff lists least recently updated first", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		var ids []string
		for i := 0; i < 3; i++ {
			job := newJob(1)
			require.NoError(t, ledger.Create(ctx, job))
			ids = append(ids, job.ID)
			time.Sleep(5 * time.Millisecond)
		}
		cutoff := time.Now()
		time.Sleep(5 * time.Millisecond)
		fresh := newJob(1)
		require.NoError(t, ledger.Create(ctx, fresh))
		require.NoError(t, ledger.RequestCancel(ctx, ids[0]))

		queued := model.TransferStatusQueued
		stale, err := ledger.List(ctx, model.TransferListOptions{Status: &queued, UpdatedBefore: &cutoff})
		require.NoError(t, err)
		require.Len(t, stale, 2)
		assert.Equal(t, []string{ids[1], ids[2]}, []string{stale[0].ID, stale[1].ID})

		first, err := ledger.List(ctx, model.TransferListOptions{UpdatedBefore: &cutoff, Limit: 1})
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, ids[1], first[0].ID)
	})

	t.Run("prune removes finished jobs only", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		finished := newJob(0)
		active := newJob(0)
		require.NoError(t, ledger.Create(ctx, finished))
		require.NoError(t, ledger.Create(ctx, active))
		require.NoError(t, ledger.MarkRunning(ctx, finished.ID, 0))
		require.NoError(t, ledger.SetStatus(ctx, finished.ID, model.StatusUpdate{Status: model.TransferStatusCompleted}))

		n, err := ledger.Prune(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = ledger.Prune(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = ledger.Get(ctx, finished.ID)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = ledger.Get(ctx, active.ID)
		assert.NoError(t, err)
	})
}
