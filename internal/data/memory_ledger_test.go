package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	apperrors "github.com/target/bulkmove/internal/errors"
)

func TestMemoryLedger_Contract(t *testing.T) {
	runLedgerContract(t, func(_ *testing.T) core.TransferLedger {
		return NewMemoryLedger(nil)
	})
}

func TestMemoryLedger_UsesTimeProvider(t *testing.T) {
	clock := NewFixedTimeProvider(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	ledger := NewMemoryLedger(clock)
	ctx := context.Background()

	job := &model.TransferJob{ID: "a", TargetCollectionID: "t", Mode: model.TransferModeAll, Status: model.TransferStatusQueued}
	require.NoError(t, ledger.Create(ctx, job))
	assert.Equal(t, clock.Now(), job.CreatedAt)

	clock.AddTime(time.Minute)
	require.NoError(t, ledger.MarkRunning(ctx, "a", 0))
	clock.AddTime(time.Minute)
	require.NoError(t, ledger.SetStatus(ctx, "a", model.StatusUpdate{Status: model.TransferStatusCompleted}))

	got, err := ledger.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, time.Minute, got.FinishedAt.Sub(*got.StartedAt))
}

func TestMemoryLedger_RejectsMalformedInput(t *testing.T) {
	ledger := NewMemoryLedger(nil)
	ctx := context.Background()

	assert.True(t, apperrors.IsValidation(ledger.Create(ctx, nil)))
	assert.True(t, apperrors.IsValidation(ledger.Create(ctx, &model.TransferJob{ID: "x", Status: model.TransferStatusRunning})))

	require.NoError(t, ledger.Create(ctx, &model.TransferJob{ID: "x", Status: model.TransferStatusQueued}))
	assert.True(t, apperrors.IsValidation(ledger.MarkRunning(ctx, "x", -1)))
	_, err := ledger.Advance(ctx, "x", -1)
	assert.True(t, apperrors.IsValidation(err))
	assert.True(t, apperrors.IsValidation(ledger.SetStatus(ctx, "x", model.StatusUpdate{Status: "paused"})))
}

func TestNormalizeTransferList(t *testing.T) {
	limit, offset := normalizeTransferList(model.TransferListOptions{})
	assert.Equal(t, model.DefaultTransferListLimit, limit)
	assert.Equal(t, 0, offset)

	limit, offset = normalizeTransferList(model.TransferListOptions{Limit: 1_000_000, Offset: -4})
	assert.Equal(t, model.MaxTransferListLimit, limit)
	assert.Equal(t, 0, offset)
}
